// Package hub fans session updates out to subscribed clients. All state is
// owned by a single goroutine and mutated only through the inbox.
package hub

import (
	"bytes"
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/arcade-sessions/pkg/types"
)

var ErrClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

// Subscribe registers Outbox for a session. The last update, if any, is
// replayed immediately, so Outbox must be buffered.
type Subscribe struct {
	SessionID string
	ClientID  string
	Outbox    chan types.Update
}

type Unsubscribe struct {
	SessionID string
	ClientID  string
}

type Publish struct {
	Update types.Update
}

type GetView struct {
	SessionID string
	Reply     chan View
}

type ShutdownHub struct{}

func (Subscribe) isHubMsg()   {}
func (Unsubscribe) isHubMsg() {}
func (Publish) isHubMsg()     {}
func (GetView) isHubMsg()     {}
func (ShutdownHub) isHubMsg() {}

// View is a point-in-time look at one session's room.
type View struct {
	Subscribers int
	Last        *types.Update
	Published   int
}

type room struct {
	clients   map[string]chan types.Update
	last      *types.Update
	published int
}

const maxRetired = 1024

type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room
	retired []string
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Present publishes an update. Publishing content identical to the session's
// last update is a no-op.
func (h *Hub) Present(ctx context.Context, u types.Update) error {
	if h.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case h.inbox <- Publish{Update: u}:
		return nil
	case <-h.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a client and returns its update channel. The channel is
// closed after the session's final update, on Unsubscribe, when the client
// falls behind, or on shutdown.
func (h *Hub) Subscribe(ctx context.Context, sessionID, clientID string, buffer int) (<-chan types.Update, error) {
	out := make(chan types.Update, max(buffer, 1))
	if h.ctx.Err() != nil {
		return nil, ErrClosed
	}
	select {
	case h.inbox <- Subscribe{SessionID: sessionID, ClientID: clientID, Outbox: out}:
		return out, nil
	case <-h.ctx.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Unsubscribe(sessionID, clientID string) {
	select {
	case h.inbox <- Unsubscribe{SessionID: sessionID, ClientID: clientID}:
	case <-h.ctx.Done():
	}
}

// Close shuts the hub down and waits for the loop to exit.
func (h *Hub) Close() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Subscribe:
				r := h.room(msg.SessionID)
				if r.last != nil {
					msg.Outbox <- *r.last // Outbox always has room for one
					if r.last.Final {
						close(msg.Outbox)
						break
					}
				}
				r.clients[msg.ClientID] = msg.Outbox

			case Unsubscribe:
				if r, ok := h.rooms[msg.SessionID]; ok {
					if ch, ok := r.clients[msg.ClientID]; ok {
						close(ch)
						delete(r.clients, msg.ClientID)
					}
				}

			case Publish:
				h.publish(msg.Update)

			case GetView:
				// test-only: reflect internal state without data races
				v := View{}
				if r, ok := h.rooms[msg.SessionID]; ok {
					v.Subscribers = len(r.clients)
					v.Published = r.published
					if r.last != nil {
						last := *r.last
						v.Last = &last
					}
				}
				msg.Reply <- v

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) room(id string) *room {
	r, ok := h.rooms[id]
	if !ok {
		r = &room{clients: make(map[string]chan types.Update)}
		h.rooms[id] = r
	}
	return r
}

// publish never moves a room backwards: updates older than the last one, and
// anything after a final update, are dropped.
func (h *Hub) publish(u types.Update) {
	r := h.room(u.SessionID)
	if r.last != nil {
		if sameUpdate(*r.last, u) {
			return
		}
		if r.last.Final || u.Version < r.last.Version {
			h.log.Debug("dropping out-of-order update",
				zap.String("session_id", u.SessionID),
				zap.Int64("version", u.Version),
				zap.Int64("last_version", r.last.Version),
				zap.Bool("last_final", r.last.Final),
			)
			return
		}
	}
	r.last = &u
	r.published++
	h.broadcast(u.SessionID, r, u)

	if u.Final {
		h.closeRoom(u.SessionID)
		h.retire(u.SessionID, r.published, u)
	}
}

// retire keeps the final update of a finished session so late subscribers
// still see how it ended. Only the most recent maxRetired are kept.
func (h *Hub) retire(id string, published int, u types.Update) {
	h.rooms[id] = &room{clients: make(map[string]chan types.Update), last: &u, published: published}
	h.retired = append(h.retired, id)
	if len(h.retired) > maxRetired {
		oldest := h.retired[0]
		h.retired = h.retired[1:]
		if r, ok := h.rooms[oldest]; ok && len(r.clients) == 0 && r.last != nil && r.last.Final {
			delete(h.rooms, oldest)
		}
	}
}

func (h *Hub) broadcast(sessionID string, r *room, u types.Update) {
	for id, ch := range r.clients {
		select {
		case ch <- u:
			// ok
		default:
			// Client is slow/full - drop them.
			h.log.Debug("dropping slow subscriber", zap.String("session_id", sessionID), zap.String("client_id", id))
			close(ch)
			delete(r.clients, id)
		}
	}
}

func (h *Hub) closeRoom(id string) {
	r, ok := h.rooms[id]
	if !ok {
		return
	}
	for cid, ch := range r.clients {
		close(ch)
		delete(r.clients, cid)
	}
	delete(h.rooms, id)
}

func (h *Hub) shutdown() {
	for id := range h.rooms {
		h.closeRoom(id)
	}
}

func sameUpdate(a, b types.Update) bool {
	return a.SessionID == b.SessionID &&
		a.Version == b.Version &&
		a.Text == b.Text &&
		a.Final == b.Final &&
		slices.Equal(a.Actions, b.Actions) &&
		bytes.Equal(a.Image, b.Image)
}
