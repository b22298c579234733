package tools

import "github.com/nextlevelbuilder/verina/pkg/protocol"

// Control signals emitted by stage-transition tools.
const (
	SignalStartResearch = "SWITCH_TO_RESEARCH"
	SignalStopAnswer    = "STOP_AND_ANSWER"
)

// Result is the unified return type from tool execution.
type Result struct {
	ForLLM  string `json:"for_llm"`            // content sent to the LLM
	ForUser string `json:"for_user,omitempty"` // content shown to the user
	Silent  bool   `json:"silent"`             // suppress user message
	IsError bool   `json:"is_error"`           // marks error
	Err     error  `json:"-"`                  // internal error (not serialized)

	// Signal marks a control-flow transition (stage switch, final answer).
	// Prompt carries guidance injected into the transcript alongside it.
	Signal string `json:"-"`
	Prompt string `json:"-"`

	// Sources holds citations registered by search tools during this call.
	Sources []protocol.Source `json:"-"`

	// URLs observed in the call, surfaced on the thinking step.
	URLs []string `json:"-"`
}

func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

func SilentResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM, Silent: true}
}

func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

func SignalResult(signal, prompt string) *Result {
	return &Result{ForLLM: "ok", Signal: signal, Prompt: prompt, Silent: true}
}

func (r *Result) WithError(err error) *Result {
	r.Err = err
	return r
}
