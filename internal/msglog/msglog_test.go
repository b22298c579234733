package msglog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenMissingFileIsEmpty(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "messages.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(log.Messages) != 0 {
		t.Errorf("got %d messages, want 0", len(log.Messages))
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	log, _ := Open(path)
	log.Append(
		System("sys"),
		User("hello"),
		AssistantToolCalls("", []ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: FunctionCall{Name: "web_search", Arguments: `{"query":"go"}`},
		}}),
		Tool("call_1", "results"),
		Assistant("done"),
	)
	if err := log.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(reloaded.Messages) != 5 {
		t.Fatalf("got %d messages, want 5", len(reloaded.Messages))
	}

	// Assistant tool-call entries with no text must round-trip as null
	// content, matching the wire format.
	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), `"content": null`) {
		t.Error("tool-call assistant message did not serialize null content")
	}
	if reloaded.Messages[2].Content != nil {
		t.Error("tool-call assistant content should stay nil")
	}
	if got := reloaded.Messages[2].ToolCalls[0].Function.Arguments; got != `{"query":"go"}` {
		t.Errorf("arguments = %q", got)
	}
	if got := reloaded.Messages[3].ToolCallID; got != "call_1" {
		t.Errorf("tool_call_id = %q", got)
	}
}

func TestReplaceSystem(t *testing.T) {
	t.Run("swap in place", func(t *testing.T) {
		log, _ := Open(filepath.Join(t.TempDir(), "m.json"))
		log.Append(System("old"), User("hi"))
		log.ReplaceSystem("new")
		if len(log.Messages) != 2 {
			t.Fatalf("got %d messages, want 2", len(log.Messages))
		}
		if log.Messages[0].Text() != "new" {
			t.Errorf("system = %q, want %q", log.Messages[0].Text(), "new")
		}
	})

	t.Run("prepend when absent", func(t *testing.T) {
		log, _ := Open(filepath.Join(t.TempDir(), "m.json"))
		log.Append(User("hi"))
		log.ReplaceSystem("sys")
		if len(log.Messages) != 2 || log.Messages[0].Role != "system" {
			t.Fatalf("system prompt not prepended: %+v", log.Messages)
		}
	})
}

func TestLastAssistantText(t *testing.T) {
	log, _ := Open(filepath.Join(t.TempDir(), "m.json"))
	if got := log.LastAssistantText(); got != "" {
		t.Errorf("empty log: got %q", got)
	}
	log.Append(System("s"), User("q"), Assistant("first"), User("q2"), Assistant("second"))
	if got := log.LastAssistantText(); got != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}
}

func TestMessagesForDisplay(t *testing.T) {
	log, _ := Open(filepath.Join(t.TempDir(), "m.json"))
	log.Append(
		System("sys"),
		User("hello"),
		AssistantToolCalls("", []ToolCall{
			{ID: "c1", Type: "function", Function: FunctionCall{Name: "web_search"}},
			{ID: "c2", Type: "function", Function: FunctionCall{Name: "file_read"}},
		}),
		Tool("c1", "results"),
		Assistant("done"),
	)

	out := log.MessagesForDisplay()
	if len(out) != 4 {
		t.Fatalf("got %d messages, want 4 (system dropped)", len(out))
	}
	if out[0].Role != "user" || out[0].Content != "hello" {
		t.Errorf("first = %+v", out[0])
	}
	if out[1].Content != "Using tools: web_search, file_read" {
		t.Errorf("tool-call summary = %q", out[1].Content)
	}
	if len(out[1].ToolCalls) != 2 {
		t.Errorf("tool names = %v", out[1].ToolCalls)
	}
	if !out[2].IsToolResult {
		t.Error("tool result not flagged")
	}
	if out[3].Content != "done" || out[3].IsToolResult {
		t.Errorf("last = %+v", out[3])
	}
}

func TestConvertRoundTrip(t *testing.T) {
	msgs := []Message{
		System("sys"),
		AssistantToolCalls("thinking text", []ToolCall{{
			ID:       "c1",
			Type:     "function",
			Function: FunctionCall{Name: "file_read", Arguments: `{"filename":"notes.md"}`},
		}}),
		Tool("c1", "contents"),
	}

	pm := ToProvider(msgs)
	if len(pm) != 3 {
		t.Fatalf("got %d, want 3", len(pm))
	}
	if pm[1].ToolCalls[0].Name != "file_read" || pm[1].ToolCalls[0].Arguments != `{"filename":"notes.md"}` {
		t.Errorf("tool call mangled: %+v", pm[1].ToolCalls[0])
	}
	if pm[2].ToolCallID != "c1" {
		t.Errorf("tool_call_id = %q", pm[2].ToolCallID)
	}

	back := FromProviderCalls(pm[1].ToolCalls)
	if back[0].Function.Name != "file_read" || back[0].Type != "function" {
		t.Errorf("round trip mangled: %+v", back[0])
	}
}
