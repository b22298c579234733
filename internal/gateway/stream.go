package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/verina/internal/agent"
	"github.com/nextlevelbuilder/verina/internal/session"
	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

// handleChatStream runs one turn and streams its events as SSE frames.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req protocol.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	emit := func(ev protocol.Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("event marshal failed", "type", ev.Type, "error", err)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	s.runTurn(r.Context(), req, emit)
	emit(protocol.Done())
}

// runTurn resolves the session, executes the turn and persists the
// outcome. History is written before the complete event reaches the
// client, so a reconnect right after the event sees the new messages.
func (s *Server) runTurn(ctx context.Context, req protocol.ChatRequest, emit func(protocol.Event)) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.NewSessionID()
		req.SessionID = sessionID
		emit(protocol.SessionCreated(sessionID))
	}

	engine, err := s.registry.Engine(sessionID, true)
	if err != nil {
		emit(protocol.ErrorEvent(fmt.Sprintf("failed to open session: %v", err)))
		return
	}

	persisting := func(ev protocol.Event) {
		if ev.Type == protocol.EventComplete {
			if resp, ok := ev.Data.(*protocol.ChatResponse); ok {
				if err := s.registry.AppendResponse(sessionID, resp); err != nil {
					slog.Warn("history save failed", "session", sessionID, "error", err)
				}
			}
		}
		emit(ev)
	}

	resp, err := engine.Run(ctx, req, persisting)
	if err != nil {
		if errors.Is(err, agent.ErrTurnInProgress) {
			emit(protocol.ErrorEvent("A message is already being processed for this session."))
		}
		// Other errors already produced a terminal event inside Run.
		return
	}
	if resp == nil {
		return
	}

	go s.registry.EnsureDisplayName(context.Background(), sessionID, req.Message)
}
