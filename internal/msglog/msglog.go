// Package msglog persists a session's model-facing transcript.
//
// The on-disk shape mirrors the chat-completions wire format exactly so
// a saved transcript can be replayed against the provider unchanged.
package msglog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Message is one transcript entry in wire shape. Content is a pointer
// so assistant messages that carry only tool_calls round-trip as null.
type Message struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is the wire form of a requested tool invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall keeps arguments as the raw JSON string the model produced.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Text returns the content string, empty when null.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// System, User, Assistant and Tool build transcript entries.

func System(content string) Message {
	return Message{Role: "system", Content: &content}
}

func User(content string) Message {
	return Message{Role: "user", Content: &content}
}

func Assistant(content string) Message {
	return Message{Role: "assistant", Content: &content}
}

// AssistantToolCalls builds an assistant entry requesting tool calls.
// Content stays null when the model produced no accompanying text.
func AssistantToolCalls(content string, calls []ToolCall) Message {
	m := Message{Role: "assistant", ToolCalls: calls}
	if content != "" {
		m.Content = &content
	}
	return m
}

func Tool(toolCallID, content string) Message {
	return Message{Role: "tool", Content: &content, ToolCallID: toolCallID}
}

// Log is a session's transcript bound to its file on disk.
type Log struct {
	path     string
	Messages []Message
}

// Open loads a transcript, returning an empty log if the file does not
// exist yet.
func Open(path string) (*Log, error) {
	l := &Log{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("msglog: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &l.Messages); err != nil {
		return nil, fmt.Errorf("msglog: parse %s: %w", path, err)
	}
	return l, nil
}

// Append adds entries without saving; call Save to persist.
func (l *Log) Append(msgs ...Message) {
	l.Messages = append(l.Messages, msgs...)
}

// ReplaceSystem swaps the system prompt in place at position 0, or
// prepends one if the transcript has none.
func (l *Log) ReplaceSystem(content string) {
	if len(l.Messages) > 0 && l.Messages[0].Role == "system" {
		l.Messages[0] = System(content)
		return
	}
	l.Messages = append([]Message{System(content)}, l.Messages...)
}

// Reset replaces the entire transcript, used after compaction.
func (l *Log) Reset(msgs []Message) {
	l.Messages = msgs
}

// LastAssistantText returns the content of the most recent assistant
// message, or "" if there is none.
func (l *Log) LastAssistantText() string {
	for i := len(l.Messages) - 1; i >= 0; i-- {
		if l.Messages[i].Role == "assistant" {
			return l.Messages[i].Text()
		}
	}
	return ""
}

// DisplayMessage is the frontend projection of a transcript entry.
type DisplayMessage struct {
	Role         string   `json:"role"`
	Content      string   `json:"content"`
	ToolCalls    []string `json:"tool_calls,omitempty"`
	IsToolResult bool     `json:"is_tool_result,omitempty"`
}

// MessagesForDisplay projects the transcript for the frontend: system
// messages are dropped, tool-call entries carry the tool names, and an
// assistant entry with no text gets a generated summary line.
func (l *Log) MessagesForDisplay() []DisplayMessage {
	var out []DisplayMessage
	for _, m := range l.Messages {
		if m.Role == "system" {
			continue
		}
		dm := DisplayMessage{Role: m.Role, Content: m.Text()}
		if len(m.ToolCalls) > 0 {
			names := make([]string, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				names = append(names, tc.Function.Name)
			}
			dm.ToolCalls = names
			if dm.Content == "" {
				dm.Content = "Using tools: " + strings.Join(names, ", ")
			}
		}
		if m.ToolCallID != "" {
			dm.IsToolResult = true
		}
		out = append(out, dm)
	}
	return out
}

// Save writes the transcript atomically (temp file then rename).
func (l *Log) Save() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("msglog: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(l.Messages, "", "  ")
	if err != nil {
		return fmt.Errorf("msglog: marshal: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("msglog: write: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("msglog: rename: %w", err)
	}
	return nil
}
