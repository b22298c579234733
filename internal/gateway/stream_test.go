package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/verina/internal/agent"
	"github.com/nextlevelbuilder/verina/internal/config"
	"github.com/nextlevelbuilder/verina/internal/providers"
	"github.com/nextlevelbuilder/verina/internal/search"
	"github.com/nextlevelbuilder/verina/internal/session"
	"github.com/nextlevelbuilder/verina/internal/tokens"
	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

type cannedProvider struct {
	content string
}

func (p *cannedProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return &providers.ChatResponse{Content: p.content, FinishReason: "stop"}, nil
}

func (p *cannedProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return nil, fmt.Errorf("not scripted")
}

func (p *cannedProvider) DefaultModel() string { return "test-model" }
func (p *cannedProvider) Name() string         { return "canned" }

type emptySearcher struct{}

func (emptySearcher) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.DataBaseDir = t.TempDir()
	registry := session.NewRegistry(agent.Deps{
		Config:    cfg,
		Provider:  &cannedProvider{content: "the answer"},
		Searcher:  emptySearcher{},
		Estimator: tokens.NewEstimator(),
	})
	t.Cleanup(registry.CloseAll)
	return NewServer(cfg, registry, nil)
}

func TestRunTurnPersistsHistoryBeforeCompleteEvent(t *testing.T) {
	s := newTestServer(t)

	var sessionID string
	var histAtComplete int
	var types []string
	emit := func(ev protocol.Event) {
		types = append(types, ev.Type)
		switch ev.Type {
		case protocol.EventSessionCreated:
			sessionID = ev.SessionID
		case protocol.EventComplete:
			// A client reconnecting right after this event must already
			// see the turn in history.
			history, err := s.registry.History(sessionID)
			if err != nil {
				t.Errorf("history unavailable at complete: %v", err)
				return
			}
			histAtComplete = len(history.Responses)
		}
	}

	s.runTurn(context.Background(), protocol.ChatRequest{Message: "q", Mode: "chat"}, emit)

	if sessionID == "" {
		t.Fatalf("no session_created event: %v", types)
	}
	if histAtComplete != 1 {
		t.Errorf("history had %d responses when complete was emitted, want 1", histAtComplete)
	}

	history, err := s.registry.History(sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history.Responses) != 1 || history.Responses[0].AssistantMessage != "the answer" {
		t.Errorf("persisted history = %+v", history.Responses)
	}

	// runTurn writes the display name from a background goroutine; wait
	// for it so TempDir cleanup does not race the write.
	nameFile := filepath.Join(s.registry.Root(), sessionID, "display_name.txt")
	for i := 0; i < 200; i++ {
		if _, err := os.Stat(nameFile); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
}
