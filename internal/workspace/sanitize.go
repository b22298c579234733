package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeFilename turns an arbitrary title into a safe cache filename
// stem: characters outside word/whitespace/hyphen are stripped,
// whitespace collapses to underscores, and the result is truncated.
func SanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	name := b.String()
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	name = strings.Trim(name, "_")
	if name == "" {
		name = "untitled"
	}
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}

// CachePage writes page text under cache/ with a title header and
// returns the workspace-relative path. Name collisions get a numeric
// suffix.
func (w *Workspace) CachePage(title, url, age, content string) (string, error) {
	if err := os.MkdirAll(filepath.Join(w.dir, "cache"), 0o755); err != nil {
		return "", err
	}
	body := fmt.Sprintf("# %s\n\n**URL**: %s\n**Published**: %s\n\n---\n\n%s", title, url, age, content)
	stem := SanitizeFilename(title)
	rel := filepath.Join("cache", stem+".md")
	for i := 1; ; i++ {
		resolved, err := w.Resolve(rel)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(resolved); os.IsNotExist(err) {
			if err := os.WriteFile(resolved, []byte(body), 0o644); err != nil {
				return "", err
			}
			return rel, nil
		}
		rel = filepath.Join("cache", fmt.Sprintf("%s_%d.md", stem, i))
	}
}
