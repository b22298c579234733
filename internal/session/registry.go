// Package session manages the lifecycle of chat sessions: lazy engine
// creation, on-disk rehydration, history persistence and display names.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/verina/internal/agent"
	"github.com/nextlevelbuilder/verina/internal/config"
	"github.com/nextlevelbuilder/verina/internal/msglog"
	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

// ErrNotFound is returned for operations on an unknown session.
var ErrNotFound = fmt.Errorf("session not found")

// Registry maps session IDs to engines. Engines are created lazily on
// the first turn; listing history never instantiates one.
type Registry struct {
	mu      sync.Mutex
	deps    agent.Deps
	root    string
	engines map[string]*agent.Engine
}

func NewRegistry(deps agent.Deps) *Registry {
	root := filepath.Join(config.ExpandHome(deps.Config.DataBaseDir), "chats")
	return &Registry{
		deps:    deps,
		root:    root,
		engines: make(map[string]*agent.Engine),
	}
}

// Root returns the chats directory.
func (r *Registry) Root() string { return r.root }

// NewSessionID mints an identifier like chat_20250824_153012_a1b2c3d4.
func NewSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("chat_%s_%s", time.Now().UTC().Format("20060102_150405"), suffix)
}

func (r *Registry) dir(sessionID string) string {
	return filepath.Join(r.root, sessionID)
}

// Engine returns the engine for a session, creating it on first use.
// With create=false an unknown session yields ErrNotFound.
func (r *Registry) Engine(sessionID string, create bool) (*agent.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[sessionID]; ok {
		return e, nil
	}
	dir := r.dir(sessionID)
	if !create {
		if _, err := os.Stat(dir); err != nil {
			return nil, ErrNotFound
		}
	}
	e, err := agent.NewEngine(sessionID, dir, r.deps)
	if err != nil {
		return nil, err
	}
	r.engines[sessionID] = e
	slog.Debug("engine created", "session", sessionID)
	return e, nil
}

// Cancel sets the cancel flag for a running session. It is a no-op for
// sessions that have no live engine.
func (r *Registry) Cancel(sessionID string) error {
	r.mu.Lock()
	e, ok := r.engines[sessionID]
	r.mu.Unlock()
	if !ok {
		if _, err := os.Stat(r.dir(sessionID)); err != nil {
			return ErrNotFound
		}
		return nil
	}
	e.Cancel()
	return nil
}

// Delete removes a session's engine and all its persisted state.
func (r *Registry) Delete(sessionID string) error {
	r.mu.Lock()
	if e, ok := r.engines[sessionID]; ok {
		e.Close()
		delete(r.engines, sessionID)
	}
	r.mu.Unlock()

	dir := r.dir(sessionID)
	if _, err := os.Stat(dir); err != nil {
		return ErrNotFound
	}
	return os.RemoveAll(dir)
}

// Clear erases a session's transcript while keeping the session (and
// its system prompt) alive.
func (r *Registry) Clear(sessionID string) error {
	e, err := r.Engine(sessionID, false)
	if err != nil {
		return err
	}
	return e.ClearLog()
}

// List scans the chats directory and returns one summary per session,
// newest first. No engines are created.
func (r *Registry) List() ([]protocol.SessionSummary, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []protocol.SessionSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		summary, err := r.summarize(entry.Name())
		if err != nil {
			slog.Warn("skipping unreadable session", "session", entry.Name(), "error", err)
			continue
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Get returns the summary plus full response history for one session.
func (r *Registry) Get(sessionID string) (*protocol.SessionSummary, *History, error) {
	if _, err := os.Stat(r.dir(sessionID)); err != nil {
		return nil, nil, ErrNotFound
	}
	summary, err := r.summarize(sessionID)
	if err != nil {
		return nil, nil, err
	}
	history, err := OpenHistory(r.dir(sessionID), sessionID)
	if err != nil {
		return nil, nil, err
	}
	return &summary, history, nil
}

// Messages returns the frontend projection of a session's transcript.
// The transcript is read from disk; no engine is created.
func (r *Registry) Messages(sessionID string) ([]msglog.DisplayMessage, error) {
	dir := r.dir(sessionID)
	if _, err := os.Stat(dir); err != nil {
		return nil, ErrNotFound
	}
	log, err := msglog.Open(filepath.Join(dir, "messages.json"))
	if err != nil {
		return nil, err
	}
	return log.MessagesForDisplay(), nil
}

// History returns the persisted response history for a session.
func (r *Registry) History(sessionID string) (*History, error) {
	if _, err := os.Stat(r.dir(sessionID)); err != nil {
		return nil, ErrNotFound
	}
	return OpenHistory(r.dir(sessionID), sessionID)
}

// AppendResponse persists a completed turn to the session's history.
func (r *Registry) AppendResponse(sessionID string, resp *protocol.ChatResponse) error {
	history, err := OpenHistory(r.dir(sessionID), sessionID)
	if err != nil {
		return err
	}
	history.Append(resp)
	return history.Save()
}

func (r *Registry) summarize(sessionID string) (protocol.SessionSummary, error) {
	dir := r.dir(sessionID)
	history, err := OpenHistory(dir, sessionID)
	if err != nil {
		return protocol.SessionSummary{}, err
	}

	summary := protocol.SessionSummary{
		SessionID:    sessionID,
		MessageCount: len(history.Responses),
		CreatedAt:    history.CreatedAt,
		UpdatedAt:    history.UpdatedAt,
	}
	if len(history.Responses) > 0 {
		summary.FirstMessage = history.Responses[0].UserMessage
	}
	summary.DisplayName = readDisplayName(dir)
	if summary.CreatedAt.IsZero() {
		if info, statErr := os.Stat(dir); statErr == nil {
			summary.CreatedAt = info.ModTime().UTC()
			summary.UpdatedAt = summary.CreatedAt
		}
	}
	return summary, nil
}

// CloseAll tears down every live engine, used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.engines {
		e.Close()
		delete(r.engines, id)
	}
}

// EnsureDisplayName synthesizes and stores a session title from its
// first message if one is not set yet. Best effort; failures fall back
// to truncation.
func (r *Registry) EnsureDisplayName(ctx context.Context, sessionID, firstMessage string) string {
	dir := r.dir(sessionID)
	if name := readDisplayName(dir); name != "" {
		return name
	}
	name := r.synthesizeDisplayName(ctx, firstMessage)
	if err := writeDisplayName(dir, name); err != nil {
		slog.Warn("display name save failed", "session", sessionID, "error", err)
	}
	return name
}

func readDisplayName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "display_name.txt"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func writeDisplayName(dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "display_name.txt"), []byte(name+"\n"), 0o644)
}
