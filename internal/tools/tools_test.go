package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/verina/internal/sandbox"
	"github.com/nextlevelbuilder/verina/internal/search"
	"github.com/nextlevelbuilder/verina/internal/workspace"
	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

type fakeSearcher struct {
	results  []search.Result
	err      error
	lastOpts search.Options
}

func (f *fakeSearcher) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	f.lastOpts = opts
	return f.results, f.err
}

func newTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws := workspace.New(filepath.Join(t.TempDir(), "ws"))
	if err := ws.Ensure(); err != nil {
		t.Fatal(err)
	}
	return ws
}

func TestSourceTrackerDenseAndDeduped(t *testing.T) {
	tr := NewSourceTracker()

	if idx := tr.Add(protocol.Source{URL: "https://a.example"}); idx != 1 {
		t.Errorf("first idx = %d, want 1", idx)
	}
	if idx := tr.Add(protocol.Source{URL: "https://b.example"}); idx != 2 {
		t.Errorf("second idx = %d, want 2", idx)
	}
	if idx := tr.Add(protocol.Source{URL: "https://a.example"}); idx != 1 {
		t.Errorf("repeat URL idx = %d, want 1", idx)
	}

	list := tr.List()
	if len(list) != 2 {
		t.Fatalf("got %d sources, want 2", len(list))
	}
	for i, src := range list {
		if src.Idx != i+1 {
			t.Errorf("source %d has idx %d", i, src.Idx)
		}
	}
}

func TestRegistryDefinitionsKeepRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewStopAnswerTool())
	reg.Register(NewStartResearchTool())

	defs := reg.Definitions()
	if len(defs) != 2 {
		t.Fatalf("got %d defs, want 2", len(defs))
	}
	if defs[0].Function.Name != "stop_answer" || defs[1].Function.Name != "start_research" {
		t.Errorf("order = %s, %s", defs[0].Function.Name, defs[1].Function.Name)
	}

	reg.Unregister("stop_answer")
	if _, ok := reg.Get("stop_answer"); ok {
		t.Error("stop_answer still registered")
	}
	if len(reg.Definitions()) != 1 {
		t.Error("definitions not updated after unregister")
	}
}

func TestWebSearchRendersLabelsAndCaches(t *testing.T) {
	ws := newTestWorkspace(t)
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Go Blog", URL: "https://go.dev/blog", Text: "Full article body"},
		{Title: "Go Spec", URL: "https://go.dev/ref/spec", Text: "The spec body"},
	}}
	tool := NewWebSearchTool(searcher, ws, true)

	tracker := NewSourceTracker()
	ctx := WithSourceTracker(context.Background(), tracker)
	result := tool.Execute(ctx, map[string]interface{}{"query": "golang"})

	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "[1] Go Blog") || !strings.Contains(result.ForLLM, "[2] Go Spec") {
		t.Errorf("missing numbered labels:\n%s", result.ForLLM)
	}
	if !strings.Contains(result.ForLLM, "Cite sources inline") {
		t.Error("missing citation footer")
	}
	if !strings.Contains(result.ForLLM, "Cached: cache/Go_Blog.md") {
		t.Errorf("missing cache path:\n%s", result.ForLLM)
	}
	content, err := ws.Read("cache/Go_Blog.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(content, "# Go Blog\n\n**URL**: https://go.dev/blog\n") {
		t.Errorf("cached page missing header: %q", content)
	}
	if !strings.HasSuffix(content, "---\n\nFull article body") {
		t.Errorf("cached page missing body: %q", content)
	}
	if len(tracker.List()) != 2 {
		t.Errorf("tracker has %d sources, want 2", len(tracker.List()))
	}
	if len(result.URLs) != 2 {
		t.Errorf("result URLs = %v", result.URLs)
	}
}

func TestWebSearchWithoutLabels(t *testing.T) {
	ws := newTestWorkspace(t)
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Plain", URL: "https://example.com"},
	}}
	tool := NewWebSearchTool(searcher, ws, false)

	result := tool.Execute(context.Background(), map[string]interface{}{"query": "q"})
	if !strings.Contains(result.ForLLM, "- Plain") {
		t.Errorf("expected bullet rendering:\n%s", result.ForLLM)
	}
	if strings.Contains(result.ForLLM, "Cite sources inline") {
		t.Error("citation footer should be suppressed without labels")
	}
}

func TestWebSearchClampsExplicitCount(t *testing.T) {
	ws := newTestWorkspace(t)
	searcher := &fakeSearcher{}

	tests := []struct {
		name string
		arg  float64
		want int
	}{
		{"below minimum", 0, 1},
		{"above maximum", 25, 10},
		{"in range", 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewWebSearchTool(searcher, ws, false)
			tool.Execute(context.Background(), map[string]interface{}{
				"query":       "q",
				"num_results": tt.arg,
			})
			if searcher.lastOpts.NumResults != tt.want {
				t.Errorf("NumResults = %d, want %d", searcher.lastOpts.NumResults, tt.want)
			}
		})
	}
}

func TestWebSearchVendorErrorStaysInBand(t *testing.T) {
	ws := newTestWorkspace(t)
	searcher := &fakeSearcher{err: fmt.Errorf("upstream unavailable")}
	tool := NewWebSearchTool(searcher, ws, true)

	result := tool.Execute(context.Background(), map[string]interface{}{"query": "q"})
	if result.IsError {
		t.Error("vendor failure must not be an error result")
	}
	if !strings.Contains(result.ForLLM, "returned an error") {
		t.Errorf("unexpected output: %s", result.ForLLM)
	}
}

func TestFileToolsRoundTrip(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	write := NewFileWriteTool(ws)
	if r := write.Execute(ctx, map[string]interface{}{"filename": "notes.md", "content": "alpha"}); r.IsError {
		t.Fatalf("write failed: %s", r.ForLLM)
	}
	if r := write.Execute(ctx, map[string]interface{}{"filename": "notes.md", "content": " beta", "append": true}); !strings.Contains(r.ForLLM, "Appended to") {
		t.Errorf("append output: %s", r.ForLLM)
	}

	read := NewFileReadTool(ws)
	if r := read.Execute(ctx, map[string]interface{}{"filename": "notes.md"}); r.ForLLM != "alpha beta" {
		t.Errorf("read = %q", r.ForLLM)
	}
	if r := read.Execute(ctx, map[string]interface{}{"filename": "missing.md"}); !r.IsError || !strings.HasPrefix(r.ForLLM, "Failed to read") {
		t.Errorf("missing file result: %+v", r)
	}

	edit := NewFileEditTool(ws)
	if r := edit.Execute(ctx, map[string]interface{}{"filename": "notes.md", "old_text": "beta", "new_text": "gamma"}); r.IsError {
		t.Errorf("edit failed: %s", r.ForLLM)
	}
	if r := edit.Execute(ctx, map[string]interface{}{"filename": "notes.md", "old_text": "nope", "new_text": "x"}); !r.IsError {
		t.Error("edit of missing text should fail")
	}

	list := NewFileListTool(ws)
	if r := list.Execute(ctx, map[string]interface{}{}); !strings.Contains(r.ForLLM, "notes.md (11 bytes)") {
		t.Errorf("list output: %s", r.ForLLM)
	}
}

func TestControlToolsSignal(t *testing.T) {
	ctx := context.Background()

	start := NewStartResearchTool().Execute(ctx, nil)
	if start.Signal != SignalStartResearch {
		t.Errorf("signal = %q", start.Signal)
	}
	if !strings.Contains(start.Prompt, "Research Mode Activated") {
		t.Error("start_research prompt missing guidance")
	}

	stop := NewStopAnswerTool().Execute(ctx, nil)
	if stop.Signal != SignalStopAnswer {
		t.Errorf("signal = %q", stop.Signal)
	}
	if stop.ForLLM != "ok" || !stop.Silent {
		t.Errorf("signal result shape: %+v", stop)
	}
}

type fakeSandboxSession struct {
	exec   *sandbox.Execution
	closed bool
}

func (s *fakeSandboxSession) Execute(ctx context.Context, code string) (*sandbox.Execution, error) {
	return s.exec, nil
}

func (s *fakeSandboxSession) Close() { s.closed = true }

type fakeSandboxProvider struct {
	session *fakeSandboxSession
}

func (p *fakeSandboxProvider) NewSession(ctx context.Context) (sandbox.Session, error) {
	return p.session, nil
}

func TestExecutePythonRoutesArtifactsByFormat(t *testing.T) {
	ws := newTestWorkspace(t)
	session := &fakeSandboxSession{exec: &sandbox.Execution{
		Stdout: []string{"done\n"},
		Results: []sandbox.ExecutionResult{
			{PNG: base64.StdEncoding.EncodeToString([]byte("png bytes"))},
			{SVG: "<svg></svg>"},
			{PDF: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))},
			{Markdown: "## Findings"},
			{JSON: `{"rows": 3}`},
		},
	}}
	tool := NewExecutePythonTool(&fakeSandboxProvider{session: session}, ws)

	result := tool.Execute(context.Background(), map[string]interface{}{"code": "run()"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.ForLLM)
	}

	tests := []struct {
		rel  string
		want string
	}{
		{filepath.Join("analysis", "images", "plot_001.png"), "png bytes"},
		{filepath.Join("analysis", "data", "output_001.svg"), "<svg></svg>"},
		{filepath.Join("analysis", "reports", "report_001.pdf"), "%PDF-1.4"},
		{filepath.Join("analysis", "reports", "report_002.md"), "## Findings"},
		{filepath.Join("analysis", "data", "output_002.json"), `{"rows": 3}`},
	}
	for _, tt := range tests {
		got, err := ws.Read(tt.rel)
		if err != nil {
			t.Errorf("read %s: %v", tt.rel, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.rel, got, tt.want)
		}
		if !strings.Contains(result.ForLLM, tt.rel) {
			t.Errorf("output missing generated file %s:\n%s", tt.rel, result.ForLLM)
		}
	}

	tool.Reset()
	if !session.closed {
		t.Error("session not closed on reset")
	}
}

type fakeCompactor struct {
	removed int
	err     error
}

func (f *fakeCompactor) Compact(ctx context.Context) (int, error) { return f.removed, f.err }

func TestCompactContextTool(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		compactor *fakeCompactor
		want      string
		isErr     bool
	}{
		{"compacted", &fakeCompactor{removed: 12}, "Compacted 12 older messages", false},
		{"already compact", &fakeCompactor{removed: 0}, "already compact", false},
		{"failure", &fakeCompactor{err: fmt.Errorf("model down")}, "Failed to compact context", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCompactContextTool(tt.compactor).Execute(ctx, nil)
			if r.IsError != tt.isErr {
				t.Errorf("IsError = %v, want %v", r.IsError, tt.isErr)
			}
			if !strings.Contains(r.ForLLM, tt.want) {
				t.Errorf("output %q missing %q", r.ForLLM, tt.want)
			}
		})
	}
}
