package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/verina/internal/agent"
	"github.com/nextlevelbuilder/verina/internal/config"
	"github.com/nextlevelbuilder/verina/internal/providers"
	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

type titleProvider struct {
	content string
	err     error
	calls   int
}

func (p *titleProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &providers.ChatResponse{Content: p.content}, nil
}

func (p *titleProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func (p *titleProvider) DefaultModel() string { return "test-model" }
func (p *titleProvider) Name() string         { return "test" }

func newTestRegistry(t *testing.T, provider providers.Provider) *Registry {
	t.Helper()
	cfg := config.Default()
	cfg.DataBaseDir = t.TempDir()
	return NewRegistry(agent.Deps{Config: cfg, Provider: provider})
}

func seedHistory(t *testing.T, r *Registry, sessionID string, messages ...string) {
	t.Helper()
	for _, msg := range messages {
		err := r.AppendResponse(sessionID, &protocol.ChatResponse{
			ResponseID:  "resp_test",
			SessionID:   sessionID,
			UserMessage: msg,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	dir := t.TempDir()

	h, err := OpenHistory(dir, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Responses) != 0 {
		t.Fatalf("fresh history has %d responses", len(h.Responses))
	}

	h.Append(&protocol.ChatResponse{UserMessage: "first"})
	h.Append(&protocol.ChatResponse{UserMessage: "second"})
	if h.CreatedAt.IsZero() || h.UpdatedAt.Before(h.CreatedAt) {
		t.Error("timestamps not advanced")
	}
	if err := h.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := OpenHistory(dir, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(reloaded.Responses) != 2 {
		t.Fatalf("reloaded %d responses, want 2", len(reloaded.Responses))
	}
	if reloaded.Responses[0].UserMessage != "first" {
		t.Errorf("first message = %q", reloaded.Responses[0].UserMessage)
	}
	if !reloaded.CreatedAt.Equal(h.CreatedAt) {
		t.Error("created_at not preserved")
	}
	if _, err := os.Stat(filepath.Join(dir, "chat_history.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestListSortsNewestFirst(t *testing.T) {
	r := newTestRegistry(t, nil)

	seedHistory(t, r, "older", "old question")
	time.Sleep(5 * time.Millisecond)
	seedHistory(t, r, "newer", "new question")

	sessions, err := r.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("listed %d sessions, want 2", len(sessions))
	}
	if sessions[0].SessionID != "newer" || sessions[1].SessionID != "older" {
		t.Errorf("order = %s, %s", sessions[0].SessionID, sessions[1].SessionID)
	}
	if sessions[0].FirstMessage != "new question" {
		t.Errorf("first message = %q", sessions[0].FirstMessage)
	}
	if sessions[0].MessageCount != 1 {
		t.Errorf("message count = %d", sessions[0].MessageCount)
	}
}

func TestListEmptyRoot(t *testing.T) {
	r := newTestRegistry(t, nil)
	sessions, err := r.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("listed %d sessions from empty root", len(sessions))
	}
}

func TestGetAndDelete(t *testing.T) {
	r := newTestRegistry(t, nil)
	seedHistory(t, r, "s1", "hello", "again")

	summary, history, err := r.Get("s1")
	if err != nil {
		t.Fatal(err)
	}
	if summary.MessageCount != 2 || len(history.Responses) != 2 {
		t.Errorf("summary count %d, history count %d", summary.MessageCount, len(history.Responses))
	}

	if err := r.Delete("s1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Get("s1"); err != ErrNotFound {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
	if err := r.Delete("s1"); err != ErrNotFound {
		t.Errorf("double delete err = %v, want ErrNotFound", err)
	}
}

func TestCancelUnknownSession(t *testing.T) {
	r := newTestRegistry(t, nil)
	if err := r.Cancel("ghost"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	seedHistory(t, r, "idle", "msg")
	if err := r.Cancel("idle"); err != nil {
		t.Errorf("cancel without live engine = %v", err)
	}
}

func TestEnsureDisplayNameIdempotent(t *testing.T) {
	provider := &titleProvider{content: `"Comparing Go web frameworks"`}
	r := newTestRegistry(t, provider)

	name := r.EnsureDisplayName(context.Background(), "s1", "which go web framework should I use?")
	if name != "Comparing Go web frameworks" {
		t.Errorf("name = %q", name)
	}

	// Second call reads the stored name without hitting the model.
	again := r.EnsureDisplayName(context.Background(), "s1", "ignored")
	if again != name {
		t.Errorf("second call = %q, want %q", again, name)
	}
	if provider.calls != 1 {
		t.Errorf("model called %d times, want 1", provider.calls)
	}
}

func TestEnsureDisplayNameFallsBackOnError(t *testing.T) {
	provider := &titleProvider{err: context.DeadlineExceeded}
	r := newTestRegistry(t, provider)

	name := r.EnsureDisplayName(context.Background(), "s1", "  what   is\tthe capital of France?  ")
	if name != "what is the capital of France?" {
		t.Errorf("fallback name = %q", name)
	}
}

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "New conversation"},
		{"whitespace only", "   \n\t", "New conversation"},
		{"short", "Hello world", "Hello world"},
		{"collapses whitespace", "a  b\n c", "a b c"},
		{"long", strings.Repeat("x", 100), strings.Repeat("x", 80) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateTitle(tt.in); got != tt.want {
				t.Errorf("truncateTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
