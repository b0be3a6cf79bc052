package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	keyFrameLimit = 512
	keyWriteWait  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Keys handles GET /api/sessions/{id}/keys. Every text frame is a KeyRequest;
// the reply frame is the resulting state or an error body.
func (h *Handler) Keys(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := h.svc.State(r.Context(), id); err != nil {
		writeError(w, err, nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.String("session", id), slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(keyFrameLimit)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("key stream closed", slog.String("session", id), slog.String("error", err.Error()))
			}
			return
		}

		var reply any
		var req KeyRequest
		if err := json.Unmarshal(data, &req); err != nil {
			reply = errorBody("invalid JSON frame")
		} else if view, err := h.svc.Key(r.Context(), id, req.Key); err != nil {
			reply = stateErrResponse{Error: err.Error(), State: view}
		} else {
			reply = view
		}

		_ = conn.SetWriteDeadline(time.Now().Add(keyWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}
