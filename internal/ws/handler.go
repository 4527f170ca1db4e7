// Package ws streams session updates to a websocket client and accepts actions
// on the same connection.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/arcade-sessions/internal/dispatch"
	"github.com/DoyleJ11/arcade-sessions/internal/hub"
	"github.com/DoyleJ11/arcade-sessions/pkg/types"
)

const (
	outboxSize   = 8
	writeTimeout = 3 * time.Second
	readTimeout  = 2 * time.Minute
)

// Handler serves /sessions/{id}/stream. The optional actor query parameter is
// used for actions that do not name their actor.
func Handler(d *dispatch.Dispatcher, h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")
		if _, err := d.Get(sessionID); err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		actor := r.URL.Query().Get("actor")

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		log := log.With(zap.String("session_id", sessionID), zap.String("client_id", clientID))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		updates, err := h.Subscribe(ctx, sessionID, clientID, outboxSize)
		if err != nil {
			conn.Close(websocket.StatusTryAgainLater, "shutting down")
			return
		}
		defer h.Unsubscribe(sessionID, clientID)

		// Writer goroutine
		go func() {
			defer cancel()
			for u := range updates {
				if err := write(ctx, conn, types.ServerMessage{Type: types.MsgUpdate, Update: &u}); err != nil {
					log.Debug("write update", zap.Error(err))
					return
				}
			}
			// Final update delivered, or this client fell too far behind.
			conn.Close(websocket.StatusNormalClosure, "session over")
		}()

		// Reader loop
		for {
			rctx, rcancel := context.WithTimeout(ctx, readTimeout)
			_, data, err := conn.Read(rctx)
			rcancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil || cm.Type != types.MsgAction {
				_ = write(ctx, conn, types.ServerMessage{Type: types.MsgNotice, Notice: "bad message"})
				continue
			}
			if cm.Action.Actor == "" {
				cm.Action.Actor = actor
			}
			in, err := dispatch.ActionFromRequest(sessionID, cm.Action)
			if err != nil {
				_ = write(ctx, conn, types.ServerMessage{Type: types.MsgNotice, Notice: dispatch.Notice(err)})
				continue
			}
			// Successful actions reach this client through the hub.
			if out, err := d.Dispatch(ctx, in); err != nil {
				_ = write(ctx, conn, types.ServerMessage{Type: types.MsgNotice, Notice: out.Notice})
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
