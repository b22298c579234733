package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/nextlevelbuilder/verina/internal/sandbox"
	"github.com/nextlevelbuilder/verina/internal/workspace"
)

const executeCeiling = 10 * time.Minute

// ExecutePythonTool runs Python in a cloud sandbox. The sandbox session
// is created lazily on first use and reused across calls in the same
// turn; the engine calls Reset at end of turn to tear it down.
type ExecutePythonTool struct {
	provider sandbox.Provider
	ws       *workspace.Workspace

	mu      sync.Mutex
	session sandbox.Session
}

func NewExecutePythonTool(provider sandbox.Provider, ws *workspace.Workspace) *ExecutePythonTool {
	return &ExecutePythonTool{provider: provider, ws: ws}
}

func (t *ExecutePythonTool) Name() string { return "execute_python" }

func (t *ExecutePythonTool) Description() string {
	return "Execute Python code in an isolated sandbox. Variables persist between calls. " +
		"Plots and data files are saved into the workspace analysis/ directory."
}

func (t *ExecutePythonTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Python code to execute",
			},
		},
		"required": []string{"code"},
	}
}

func (t *ExecutePythonTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	code, _ := args["code"].(string)
	if code == "" {
		return ErrorResult("code is required")
	}

	ctx, cancel := context.WithTimeout(ctx, executeCeiling)
	defer cancel()

	sess, err := t.acquire(ctx)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Tool execution failed: sandbox unavailable: %v", err)).WithError(err)
	}

	start := time.Now()
	exec, err := sess.Execute(ctx, code)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Tool execution failed: %v", err)).WithError(err)
	}

	output := exec.Render()
	files := t.persistArtifacts(exec)
	if len(files) > 0 {
		output += "\n\nGenerated files:"
		for _, f := range files {
			output += "\n- " + f
		}
	}
	output += fmt.Sprintf("\n\nExecution time: %.2fs", time.Since(start).Seconds())

	if exec.Failed() {
		return ErrorResult("Tool execution failed:\n" + output)
	}
	return NewResult(output)
}

// persistArtifacts routes rich results into the workspace by format:
// images to analysis/images, data to analysis/data, documents to
// analysis/reports, each with continuation numbering.
func (t *ExecutePythonTool) persistArtifacts(exec *sandbox.Execution) []string {
	if t.ws == nil {
		return nil
	}
	var files []string
	add := func(rel string, ok bool) {
		if ok {
			files = append(files, rel)
		}
	}
	for _, r := range exec.Results {
		if r.PNG != "" {
			add(t.saveDecoded("analysis/images", "plot", "png", r.PNG))
		}
		if r.JPEG != "" {
			add(t.saveDecoded("analysis/images", "plot", "jpeg", r.JPEG))
		}
		if r.SVG != "" {
			add(t.saveText("analysis/data", "output", "svg", r.SVG))
		}
		if r.PDF != "" {
			add(t.saveDecoded("analysis/reports", "report", "pdf", r.PDF))
		}
		if r.HTML != "" {
			add(t.saveText("analysis/reports", "report", "html", r.HTML))
		}
		if r.Markdown != "" {
			add(t.saveText("analysis/reports", "report", "md", r.Markdown))
		}
		if r.JSON != "" {
			add(t.saveText("analysis/data", "output", "json", r.JSON))
		}
	}
	return files
}

// saveDecoded writes a base64 payload (images, pdf) into dir.
func (t *ExecutePythonTool) saveDecoded(dir, prefix, ext, b64 string) (string, bool) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		slog.Warn("execute_python: bad artifact payload", "format", ext, "error", err)
		return "", false
	}
	return t.saveText(dir, prefix, ext, string(data))
}

func (t *ExecutePythonTool) saveText(dir, prefix, ext, content string) (string, bool) {
	seq := t.ws.NextSequence(dir, prefix)
	rel := filepath.Join(dir, fmt.Sprintf("%s_%03d.%s", prefix, seq, ext))
	if err := t.ws.Write(rel, content, false); err != nil {
		slog.Warn("execute_python: save artifact failed", "path", rel, "error", err)
		return "", false
	}
	return rel, true
}

func (t *ExecutePythonTool) acquire(ctx context.Context) (sandbox.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		return t.session, nil
	}
	sess, err := t.provider.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	t.session = sess
	return sess, nil
}

// Reset tears down the sandbox session. Called at end of turn.
func (t *ExecutePythonTool) Reset() {
	t.mu.Lock()
	sess := t.session
	t.session = nil
	t.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}
