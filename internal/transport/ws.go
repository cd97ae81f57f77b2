package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atmx/ledgercore/internal/metrics"
)

// WSMessage is a JSON message broadcast to balance-event feed subscribers.
type WSMessage struct {
	Type      string `json:"type"`
	AccountID string `json:"account_id"`
	Ts        int64  `json:"ts"`
	Delta     int64  `json:"delta"`
}

// subscriber is one connected WebSocket client. Each subscriber owns its own
// outbound buffer so one slow reader never stalls delivery to the rest —
// a balance-event burst (e.g. a drain applying a dozen due payments)
// fans out to every subscriber's buffer independently, and a subscriber that
// can't keep its buffer drained gets dropped rather than backing up the hub.
type subscriber struct {
	conn      *websocket.Conn
	send      chan []byte
	accountID string // non-empty: only deliver events for this account
}

// Hub fans out balance events to connected WebSocket subscribers. Unlike a
// single shared write loop, each subscriber drains its own channel in its
// own writePump goroutine, so Hub.Run only ever decides *which* subscribers
// a message goes to, never blocks on a socket write itself.
type Hub struct {
	subscribers map[*subscriber]bool
	publish     chan WSMessage
	register    chan *subscriber
	unregister  chan *subscriber
	mu          sync.RWMutex
}

// NewHub creates an empty hub. Call Run in a goroutine before serving.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]bool),
		publish:     make(chan WSMessage, 256),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
	}
}

// Run is the hub's dispatch loop: it owns the subscriber set and decides
// fan-out, but every actual socket write happens in a subscriber's own
// writePump. Returns when done is closed.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			h.mu.Lock()
			for sub := range h.subscribers {
				close(sub.send)
			}
			h.subscribers = nil
			h.mu.Unlock()
			return

		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			n := len(h.subscribers)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			slog.Info("balance feed subscriber connected", "total", n)

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
			}
			n := len(h.subscribers)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))

		case msg := <-h.publish:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for sub := range h.subscribers {
				if sub.accountID != "" && sub.accountID != msg.AccountID {
					continue
				}
				select {
				case sub.send <- data:
				default:
					// Subscriber's own buffer is saturated: it is falling
					// behind the event stream. Drop it instead of stalling
					// fan-out to every other subscriber.
					go func(s *subscriber) { h.unregister <- s }(sub)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast enqueues a balance event for fan-out, dropping it rather than
// blocking the ledger call that produced it if the hub itself is backed up.
func (h *Hub) Broadcast(msg WSMessage) {
	select {
	case h.publish <- msg:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleWS upgrades GET /api/v1/ws to a WebSocket balance-event feed. An
// optional ?account_id= query parameter scopes the feed to one account;
// omitted, the subscriber sees every account's events.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	sub := &subscriber{
		conn:      conn,
		send:      make(chan []byte, 64),
		accountID: r.URL.Query().Get("account_id"),
	}
	h.register <- sub

	go sub.writePump()
	go sub.readPump(h)
}

// writePump drains send and writes to the socket, interleaving a periodic
// ping so idle connections survive intermediary proxy timeouts. Exits (and
// closes the connection) once send is closed by the hub.
func (s *subscriber) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only exists to detect the client going away (balance-event
// subscribers never send anything meaningful themselves); any read error or
// the client closing its side triggers unregistration.
func (s *subscriber) readPump(h *Hub) {
	defer func() { h.unregister <- s }()
	s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
