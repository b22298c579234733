package tools

import (
	"context"
	"fmt"
)

// Compactor is implemented by the engine; the tool only triggers it.
type Compactor interface {
	Compact(ctx context.Context) (removed int, err error)
}

// CompactContextTool lets the model shrink its own context when it
// notices the window filling up. The loop also forces compaction past
// a hard token threshold regardless of this tool.
type CompactContextTool struct {
	compactor Compactor
}

func NewCompactContextTool(c Compactor) *CompactContextTool {
	return &CompactContextTool{compactor: c}
}

func (t *CompactContextTool) Name() string { return "compact_context" }

func (t *CompactContextTool) Description() string {
	return "Compress older conversation history into a structured summary to free context space. " +
		"Recent messages are kept verbatim. Use when the context usage reported to you grows large."
}

func (t *CompactContextTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []string{},
	}
}

func (t *CompactContextTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	removed, err := t.compactor.Compact(ctx)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Failed to compact context: %v", err)).WithError(err)
	}
	if removed == 0 {
		return NewResult("Context is already compact, nothing to summarize yet.")
	}
	return NewResult(fmt.Sprintf("Compacted %d older messages into a summary.", removed))
}
