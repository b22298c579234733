// Package workspace manages per-session scratch directories.
//
// Each session owns two workspaces: one for Chat mode and one for Agent
// mode. The agent workspace is seeded with planning templates the first
// time research starts.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const progressTemplate = `# Progress

<!-- Flexible strategic plan - overwrite when strategy changes
- Overall goal: [What does user want?]
- Current stage: [Research? Analysis? Writing?]
- Strategy: [Current plan]
-->
`

const notesTemplate = `# References

<!-- Analysis notes for each article
- Key information and data
- Ideas and insights
- Valuable quotes
-->
`

const draftTemplate = `# Draft

<!-- Compose final answer based on notes.md
- Organize ideas and refine wording
- Use [1][2] for citations
- Add References section at end
-->
`

// Workspace is a directory all file tools are confined to.
type Workspace struct {
	dir string
}

func New(dir string) *Workspace { return &Workspace{dir: dir} }

// Dir returns the workspace root.
func (w *Workspace) Dir() string { return w.dir }

// Ensure creates the directory if missing.
func (w *Workspace) Ensure() error {
	return os.MkdirAll(w.dir, 0o755)
}

// Seed creates the directory and writes the planning templates plus a
// cache/ dir for fetched pages. Existing files are left alone so a
// resumed research session keeps its notes.
func (w *Workspace) Seed() error {
	if err := w.Ensure(); err != nil {
		return err
	}
	templates := map[string]string{
		"progress.md": progressTemplate,
		"notes.md":    notesTemplate,
		"draft.md":    draftTemplate,
	}
	for name, content := range templates {
		path := filepath.Join(w.dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("workspace: seed %s: %w", name, err)
		}
	}
	for _, dir := range []string{"cache", "analysis/images", "analysis/data", "analysis/reports"} {
		if err := os.MkdirAll(filepath.Join(w.dir, dir), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Read returns a file's contents after containment checks.
func (w *Workspace) Read(path string) (string, error) {
	resolved, err := w.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write stores a file, creating parent directories inside the
// workspace. With append=true the content is added to the end instead
// of overwriting.
func (w *Workspace) Write(path, content string, append bool) error {
	resolved, err := w.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return err
	}
	if append {
		f, err := os.OpenFile(resolved, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = f.WriteString(content)
		return err
	}
	return os.WriteFile(resolved, []byte(content), 0o644)
}

// Edit replaces exactly one occurrence of oldText with newText.
// Zero occurrences or more than one is an error; the caller must
// disambiguate rather than risk a wrong replacement.
func (w *Workspace) Edit(path, oldText, newText string) error {
	resolved, err := w.Resolve(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return err
	}
	content := string(data)
	switch n := strings.Count(content, oldText); {
	case n == 0:
		return fmt.Errorf("text not found in %s", path)
	case n > 1:
		return fmt.Errorf("text appears %d times in %s, provide a more specific match", n, path)
	}
	content = strings.Replace(content, oldText, newText, 1)
	return os.WriteFile(resolved, []byte(content), 0o644)
}

// Entry is one file in a recursive listing.
type Entry struct {
	Path  string
	Size  int64
	IsDir bool
}

// List walks a workspace directory recursively, returning
// workspace-relative paths with sizes.
func (w *Workspace) List(path string) ([]Entry, error) {
	resolved, err := w.Resolve(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	err = filepath.WalkDir(resolved, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == resolved {
			return nil
		}
		rel, relErr := filepath.Rel(w.dir, p)
		if relErr != nil {
			return relErr
		}
		e := Entry{Path: rel, IsDir: d.IsDir()}
		if !d.IsDir() {
			if info, infoErr := d.Info(); infoErr == nil {
				e.Size = info.Size()
			}
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// NextSequence scans a workspace directory for names matching
// prefix_NNN.* and returns the next free number.
func (w *Workspace) NextSequence(dir, prefix string) int {
	resolved, err := w.Resolve(dir)
	if err != nil {
		return 1
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return 1
	}
	max := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix+"_") {
			continue
		}
		rest := strings.TrimPrefix(name, prefix+"_")
		if i := strings.IndexByte(rest, '.'); i > 0 {
			rest = rest[:i]
		}
		var n int
		if _, err := fmt.Sscanf(rest, "%d", &n); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

// Cleanup removes the workspace root recursively.
func (w *Workspace) Cleanup() error {
	return os.RemoveAll(w.dir)
}
