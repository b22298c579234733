package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/verina/pkg/protocol"
)

// handleWebSocket mirrors the SSE stream over a WebSocket: the client
// sends one ChatRequest per message and receives the event stream for
// each turn, closed by a done sentinel.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Writes are serialized: thinking steps arrive from the turn
	// goroutine while pings could come from elsewhere.
	var writeMu sync.Mutex
	send := func(ev protocol.Event) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(ev); err != nil {
			slog.Debug("websocket write failed", "error", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed", "error", err)
			}
			return
		}

		var req protocol.ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			send(protocol.ErrorEvent("invalid request payload"))
			send(protocol.Done())
			continue
		}
		if req.Message == "" {
			send(protocol.ErrorEvent("message is required"))
			send(protocol.Done())
			continue
		}

		s.runTurn(r.Context(), req, send)
		send(protocol.Done())
	}
}
