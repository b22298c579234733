package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

// History is the persisted per-session record of completed turns,
// stored as chat_history.json next to the transcript.
type History struct {
	SessionID string                   `json:"session_id"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
	Responses []*protocol.ChatResponse `json:"responses"`

	path string
}

// OpenHistory loads a session's history, returning an empty record when
// none exists yet.
func OpenHistory(dir, sessionID string) (*History, error) {
	h := &History{
		SessionID: sessionID,
		path:      filepath.Join(dir, "chat_history.json"),
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, fmt.Errorf("history: read %s: %w", h.path, err)
	}
	if err := json.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("history: parse %s: %w", h.path, err)
	}
	h.SessionID = sessionID
	return h, nil
}

// Append records a completed turn and advances the timestamps.
func (h *History) Append(resp *protocol.ChatResponse) {
	now := time.Now().UTC()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now
	h.Responses = append(h.Responses, resp)
}

// Save writes the history atomically.
func (h *History) Save() error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("history: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("history: rename: %w", err)
	}
	return nil
}
