// Package agent implements the per-session react engine: the mode and
// stage machine, the tool-calling loop, final-answer generation and
// context compaction.
package agent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nextlevelbuilder/verina/internal/config"
	"github.com/nextlevelbuilder/verina/internal/mcp"
	"github.com/nextlevelbuilder/verina/internal/msglog"
	"github.com/nextlevelbuilder/verina/internal/providers"
	"github.com/nextlevelbuilder/verina/internal/sandbox"
	"github.com/nextlevelbuilder/verina/internal/search"
	"github.com/nextlevelbuilder/verina/internal/tokens"
	"github.com/nextlevelbuilder/verina/internal/tools"
	"github.com/nextlevelbuilder/verina/internal/workspace"
	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

// ErrTurnInProgress is returned when a turn arrives while the session
// is still processing a previous one.
var ErrTurnInProgress = fmt.Errorf("a turn is already in progress for this session")

// Engine owns one session: its transcript, workspaces, mode/stage and
// cancel flag. Turns execute one at a time.
type Engine struct {
	sessionID string
	cfg       *config.Config
	provider  providers.Provider
	searcher  search.Searcher
	sandboxes sandbox.Provider // nil disables execute_python
	bridge    *mcp.Manager     // nil when no MCP servers configured
	estimator *tokens.Estimator

	log     *msglog.Log
	chatWS  *workspace.Workspace
	agentWS *workspace.Workspace

	mode  string
	stage string

	cancelFlag atomic.Bool
	turnMu     sync.Mutex
}

// Deps bundles the process-wide collaborators shared by all engines.
type Deps struct {
	Config    *config.Config
	Provider  providers.Provider
	Searcher  search.Searcher
	Sandboxes sandbox.Provider
	Bridge    *mcp.Manager
	Estimator *tokens.Estimator
}

// NewEngine opens (or creates) a session rooted at dir.
func NewEngine(sessionID, dir string, deps Deps) (*Engine, error) {
	log, err := msglog.Open(filepath.Join(dir, "messages.json"))
	if err != nil {
		return nil, err
	}
	return &Engine{
		sessionID: sessionID,
		cfg:       deps.Config,
		provider:  deps.Provider,
		searcher:  deps.Searcher,
		sandboxes: deps.Sandboxes,
		bridge:    deps.Bridge,
		estimator: deps.Estimator,
		log:       log,
		chatWS:    workspace.New(filepath.Join(dir, "workspace_chat")),
		agentWS:   workspace.New(filepath.Join(dir, "workspace_agent")),
		stage:     protocol.StageHIL,
	}, nil
}

// Cancel sets the advisory cancel flag. The loop observes it at the
// top of each iteration.
func (e *Engine) Cancel() { e.cancelFlag.Store(true) }

// Stage returns the current agent stage.
func (e *Engine) Stage() string { return e.stage }

// Mode returns the mode of the last turn.
func (e *Engine) Mode() string { return e.mode }

// Log exposes the transcript for read-only inspection.
func (e *Engine) Log() *msglog.Log { return e.log }

// ClearLog erases the transcript but keeps the system prompt.
func (e *Engine) ClearLog() error {
	e.turnMu.Lock()
	defer e.turnMu.Unlock()
	if len(e.log.Messages) > 0 && e.log.Messages[0].Role == "system" {
		e.log.Reset(e.log.Messages[:1])
	} else {
		e.log.Reset(nil)
	}
	return e.log.Save()
}

// Close tears down per-session resources.
func (e *Engine) Close() {
	_ = e.chatWS.Cleanup()
	_ = e.agentWS.Cleanup()
}

// Run executes one turn. Events are emitted in order on emit; exactly
// one terminal event (complete, cancelled or error) is produced. The
// returned response is non-nil only on the complete path.
func (e *Engine) Run(ctx context.Context, req protocol.ChatRequest, emit func(protocol.Event)) (*protocol.ChatResponse, error) {
	if !e.turnMu.TryLock() {
		return nil, ErrTurnInProgress
	}
	defer e.turnMu.Unlock()

	mode := req.Mode
	if mode == "" {
		mode = protocol.ModeChat
	}

	if mode != e.mode || len(e.log.Messages) == 0 {
		e.log.ReplaceSystem(systemPrompt(mode, time.Now()))
		e.mode = mode
		if mode == protocol.ModeAgent {
			e.stage = protocol.StageHIL
		}
	}

	// A rehydrated session may have been shut down mid-research; if the
	// last assistant message shows research already concluded, start
	// the next turn back in HIL.
	if mode == protocol.ModeAgent && e.stage == protocol.StageResearch {
		last := e.log.LastAssistantText()
		if strings.Contains(last, "<!DOCTYPE html>") || strings.Contains(last, "Research completed") {
			e.stage = protocol.StageHIL
		}
	}

	ws := e.chatWS
	wsInit := ws.Ensure
	if mode == protocol.ModeAgent {
		ws = e.agentWS
		wsInit = ws.Seed
	}
	if err := wsInit(); err != nil {
		emit(protocol.ErrorEvent(fmt.Sprintf("workspace init failed: %v", err)))
		return nil, err
	}

	t := &turn{
		e:         e,
		req:       req,
		mode:      mode,
		emit:      emit,
		ws:        ws,
		tracker:   tools.NewSourceTracker(),
		toolsUsed: make(map[string]bool),
		start:     time.Now(),
	}
	t.registry = e.buildRegistry(mode, e.stage, ws, t)

	ctx = tools.WithSourceTracker(ctx, t.tracker)

	resp, err := t.run(ctx)

	// Terminal housekeeping regardless of outcome: clear the cancel
	// flag, tear down the sandbox, wipe the workspace, reset stage.
	e.cancelFlag.Store(false)
	if t.execTool != nil {
		t.execTool.Reset()
	}
	if cleanupErr := ws.Cleanup(); cleanupErr != nil {
		slog.Warn("workspace cleanup failed", "session", e.sessionID, "error", cleanupErr)
	}
	if mode == protocol.ModeAgent && e.stage == protocol.StageResearch {
		e.stage = protocol.StageHIL
	}
	return resp, err
}

// buildRegistry assembles the tool set for a mode/stage.
func (e *Engine) buildRegistry(mode, stage string, ws *workspace.Workspace, t *turn) *tools.Registry {
	reg := tools.NewRegistry()

	switch {
	case mode == protocol.ModeChat:
		reg.Register(tools.NewWebSearchTool(e.searcher, ws, true))
		if e.sandboxes != nil {
			t.execTool = tools.NewExecutePythonTool(e.sandboxes, ws)
			reg.Register(t.execTool)
		}
		reg.Register(tools.NewFileReadTool(ws))
		e.registerBridgeTools(reg)

	case stage == protocol.StageHIL:
		reg.Register(tools.NewWebSearchTool(e.searcher, ws, false))
		reg.Register(tools.NewStartResearchTool())

	default: // Agent / Research
		reg.Register(tools.NewWebSearchTool(e.searcher, ws, false))
		if e.sandboxes != nil {
			t.execTool = tools.NewExecutePythonTool(e.sandboxes, ws)
			reg.Register(t.execTool)
		}
		reg.Register(tools.NewFileReadTool(ws))
		reg.Register(tools.NewFileWriteTool(ws))
		reg.Register(tools.NewFileListTool(ws))
		reg.Register(tools.NewFileEditTool(ws))
		reg.Register(tools.NewResearchAssistantTool(e.provider, e.cfg.Models.Assistant, ws))
		reg.Register(tools.NewCompactContextTool(e))
		reg.Register(tools.NewStopAnswerTool())
		e.registerBridgeTools(reg)
	}
	return reg
}

func (e *Engine) registerBridgeTools(reg *tools.Registry) {
	if e.bridge == nil {
		return
	}
	for _, bt := range e.bridge.BridgeTools() {
		reg.Register(bt)
	}
}

// model returns the model ID for the current mode.
func (e *Engine) model(mode string) string {
	if mode == protocol.ModeChat && e.cfg.Models.ChatMode != "" {
		return e.cfg.Models.ChatMode
	}
	return e.cfg.Models.Default
}

// newResponseID mints an identifier like resp_20250824_153012_a1b2c3.
func newResponseID(now time.Time) string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("resp_%s_%s", now.UTC().Format("20060102_150405"), hex.EncodeToString(buf))
}
