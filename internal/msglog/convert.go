package msglog

import "github.com/nextlevelbuilder/verina/internal/providers"

// ToProvider converts transcript entries to the provider call shape.
func ToProvider(msgs []Message) []providers.Message {
	out := make([]providers.Message, len(msgs))
	for i, m := range msgs {
		pm := providers.Message{
			Role:       m.Role,
			Content:    m.Text(),
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			pm.ToolCalls = append(pm.ToolCalls, providers.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		out[i] = pm
	}
	return out
}

// FromProviderCalls converts requested tool calls to the wire shape
// stored in the transcript.
func FromProviderCalls(calls []providers.ToolCall) []ToolCall {
	out := make([]ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = ToolCall{
			ID:       tc.ID,
			Type:     "function",
			Function: FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		}
	}
	return out
}
