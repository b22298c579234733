package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/verina/internal/msglog"
	"github.com/nextlevelbuilder/verina/internal/providers"
	"github.com/nextlevelbuilder/verina/internal/tools"
	"github.com/nextlevelbuilder/verina/internal/tracing"
	"github.com/nextlevelbuilder/verina/internal/workspace"
	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

// turn carries the mutable state of a single react loop execution.
type turn struct {
	e    *Engine
	req  protocol.ChatRequest
	mode string
	emit func(protocol.Event)

	registry *tools.Registry
	ws       *workspace.Workspace
	tracker  *tools.SourceTracker

	steps        []protocol.ThinkingStep
	toolsUsed    map[string]bool
	promptTokens int
	start        time.Time
	execTool     *tools.ExecutePythonTool
}

func (t *turn) temperature() float64 {
	if t.req.Temperature != nil {
		return *t.req.Temperature
	}
	return t.e.cfg.Models.Temperature
}

// estimateTokens approximates prompt size locally when the provider
// omits usage accounting.
func (t *turn) estimateTokens() int {
	texts := make([]string, 0, len(t.e.log.Messages))
	for _, m := range t.e.log.Messages {
		texts = append(texts, m.Text())
	}
	return t.e.estimator.CountAll(texts)
}

func (t *turn) maxIterations() int {
	if t.req.MaxIterations != nil && *t.req.MaxIterations > 0 {
		return *t.req.MaxIterations
	}
	return t.e.cfg.Context.MaxIterations
}

// run drives the react loop for one turn. It returns the completed
// response on the happy path; on the cancelled and error paths the
// terminal event has already been emitted and the response is nil.
func (t *turn) run(ctx context.Context) (*protocol.ChatResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "agent.turn")
	defer span.End()

	e := t.e
	e.log.Append(msglog.User(t.req.Message))
	if err := e.log.Save(); err != nil {
		slog.Warn("transcript save failed", "session", e.sessionID, "error", err)
	}

	maxIter := t.maxIterations()
	for iteration := 0; iteration < maxIter; iteration++ {
		if e.cancelFlag.Load() {
			slog.Info("turn cancelled", "session", e.sessionID, "iteration", iteration, "steps", len(t.steps))
			_ = e.log.Save()
			stage := ""
			if t.mode == protocol.ModeAgent {
				stage = e.stage
			}
			t.emit(protocol.Cancelled("Processing stopped by user", len(t.steps), stage))
			return nil, nil
		}

		resp, err := e.provider.Chat(ctx, providers.ChatRequest{
			Messages: msglog.ToProvider(e.log.Messages),
			Tools:    t.registry.Definitions(),
			Model:    e.model(t.mode),
			Options:  map[string]interface{}{providers.OptTemperature: t.temperature()},
		})
		if err != nil {
			t.emit(protocol.ErrorEvent(classifyError(err)))
			return nil, err
		}
		if resp.Usage != nil && resp.Usage.PromptTokens > 0 {
			t.promptTokens = resp.Usage.PromptTokens
		} else {
			t.promptTokens = t.estimateTokens()
		}

		if len(resp.ToolCalls) == 0 {
			if t.mode == protocol.ModeAgent && e.stage == protocol.StageResearch {
				// Tool use is mandatory in research; push the model back
				// into the loop.
				e.log.Append(msglog.Assistant(resp.Content))
				e.log.Append(msglog.User(researchToolError))
				continue
			}
			e.log.Append(msglog.Assistant(resp.Content))
			if err := e.log.Save(); err != nil {
				slog.Warn("transcript save failed", "session", e.sessionID, "error", err)
			}
			return t.complete(resp.Content, nil), nil
		}

		// Control proposals take precedence over whatever else the model
		// proposed in the same response; sibling calls are discarded.
		if call := t.findControl(resp.ToolCalls); call != nil {
			done, response := t.handleControl(ctx, call, resp)
			if done {
				return response, nil
			}
			continue
		}

		e.log.Append(msglog.AssistantToolCalls(resp.Content, msglog.FromProviderCalls(resp.ToolCalls)))
		for _, call := range resp.ToolCalls {
			output := t.executeCall(ctx, call, resp.Thinking)
			e.log.Append(msglog.Tool(call.ID, output))
		}
		// One usage report per tool batch so the model can pace itself
		// against the context window.
		if t.mode == protocol.ModeAgent && e.stage == protocol.StageResearch && t.promptTokens > 0 {
			e.log.Append(msglog.User(contextUsage(t.promptTokens, e.cfg.Context.Window)))
		}
		if err := e.log.Save(); err != nil {
			slog.Warn("transcript save failed", "session", e.sessionID, "error", err)
		}

		if t.mode == protocol.ModeAgent && e.stage == protocol.StageResearch &&
			t.promptTokens > e.cfg.Context.AutoCompactThreshold {
			slog.Info("forced compaction", "session", e.sessionID, "prompt_tokens", t.promptTokens)
			if _, err := e.Compact(ctx); err != nil {
				slog.Warn("forced compaction failed", "session", e.sessionID, "error", err)
			}
		}
	}

	// Iteration budget exhausted: close the turn with a fixed message
	// rather than an error.
	e.log.Append(msglog.Assistant(maxIterationsMessage))
	if err := e.log.Save(); err != nil {
		slog.Warn("transcript save failed", "session", e.sessionID, "error", err)
	}
	return t.complete(maxIterationsMessage, nil), nil
}

// findControl returns the winning control proposal, if any.
// start_research wins in HIL; stop_answer wins in Research.
func (t *turn) findControl(calls []providers.ToolCall) *providers.ToolCall {
	for i := range calls {
		switch calls[i].Name {
		case "start_research":
			if t.mode == protocol.ModeAgent && t.e.stage == protocol.StageHIL {
				return &calls[i]
			}
		case "stop_answer":
			if t.e.stage == protocol.StageResearch {
				return &calls[i]
			}
		}
	}
	return nil
}

// handleControl executes a control proposal. The assistant turn is
// recorded with only the winning call so the transcript stays
// consistent with what was actually executed.
func (t *turn) handleControl(ctx context.Context, call *providers.ToolCall, resp *providers.ChatResponse) (bool, *protocol.ChatResponse) {
	e := t.e
	tool, ok := t.registry.Get(call.Name)
	if !ok {
		return false, nil
	}
	result := tool.Execute(ctx, nil)

	e.log.Append(msglog.AssistantToolCalls(resp.Content, msglog.FromProviderCalls([]providers.ToolCall{*call})))
	e.log.Append(msglog.Tool(call.ID, result.ForLLM))

	t.recordStep(call.Name, map[string]interface{}{}, result, resp.Thinking)

	switch result.Signal {
	case tools.SignalStartResearch:
		e.stage = protocol.StageResearch
		t.registry = e.buildRegistry(t.mode, e.stage, t.ws, t)
		e.log.Append(msglog.User(result.Prompt))
		if err := e.log.Save(); err != nil {
			slog.Warn("transcript save failed", "session", e.sessionID, "error", err)
		}
		t.emit(protocol.StageSwitch(protocol.StageResearch))
		slog.Info("stage switch", "session", e.sessionID, "stage", e.stage)
		return false, nil

	case tools.SignalStopAnswer:
		prompt := result.Prompt
		if e.stage == protocol.StageResearch {
			draft, _ := t.ws.Read("draft.md")
			notes, _ := t.ws.Read("notes.md")
			prompt = blogPrompt(draft, notes)
		}
		response, err := t.finalize(ctx, prompt)
		if err != nil {
			t.emit(protocol.ErrorEvent(classifyError(err)))
			return true, nil
		}
		return true, response
	}
	return false, nil
}

// executeCall runs one non-control tool proposal and returns the text
// recorded as its tool result.
func (t *turn) executeCall(ctx context.Context, call providers.ToolCall, thinking string) string {
	var args map[string]interface{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			output := fmt.Sprintf("Failed to parse tool arguments: %v", err)
			t.recordStep(call.Name, map[string]interface{}{"raw": call.Arguments}, tools.ErrorResult(output), thinking)
			return output
		}
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	tool, ok := t.registry.Get(call.Name)
	if !ok {
		output := fmt.Sprintf("Tool '%s' not found", call.Name)
		t.recordStep(call.Name, args, tools.ErrorResult(output), thinking)
		return output
	}

	started := time.Now()
	result := tool.Execute(ctx, args)
	slog.Debug("tool executed",
		"session", t.e.sessionID,
		"tool", call.Name,
		"duration", time.Since(started).Round(time.Millisecond),
		"error", result.IsError)

	t.toolsUsed[call.Name] = true
	t.recordStep(call.Name, args, result, thinking)
	return result.ForLLM
}

// recordStep builds and emits the thinking step for one tool call.
func (t *turn) recordStep(name string, args map[string]interface{}, result *tools.Result, thinking string) {
	step := buildStep(len(t.steps)+1, name, args, result, thinking, time.Now())
	t.steps = append(t.steps, step)
	t.emit(protocol.ThinkingStepEvent(step))
}

// classifyError maps provider failures to user-facing messages.
func classifyError(err error) string {
	var httpErr *providers.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Status {
		case 401, 403:
			return "Authentication with the model provider failed. Check the configured API key."
		case 402:
			return "The model provider rejected the request: insufficient credits."
		case 429:
			return "The model provider is rate limiting requests. Please try again shortly."
		}
		return fmt.Sprintf("The model provider returned an error (HTTP %d).", httpErr.Status)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "The request to the model provider timed out."
	}
	return fmt.Sprintf("Failed to reach the model provider: %v", err)
}
