// Package notify fans lifecycle notifications out to websocket observers and
// accepts create-session commands from them.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grovetools/wagate/internal/gateway/metrics"
	"github.com/grovetools/wagate/logging"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 100
)

// Sessions is what the hub needs from the session manager.
type Sessions interface {
	Snapshot(ctx context.Context) ([]models.SessionRecord, error)
	CreateSession(ctx context.Context, id, description string) error
}

// Options configures a Hub.
type Options struct {
	// AllowedOrigins lists accepted Origin headers. Empty or "*" accepts all.
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Logger         *logrus.Entry
}

// Hub keeps the set of connected observers.
type Hub struct {
	mu        sync.Mutex
	observers map[*observer]struct{}
	closed    bool

	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

type observer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	// Guarded by Hub.mu. Until joined, broadcasts queue in backlog so none
	// can overtake the init frame.
	joined  bool
	backlog [][]byte
}

func (o *observer) close() {
	o.once.Do(func() { close(o.done) })
}

// NewHub creates an empty hub.
func NewHub(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("notify")
	}
	h := &Hub{
		observers: make(map[*observer]struct{}),
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Publish broadcasts n to every observer. Slow observers miss frames
// instead of blocking the caller.
func (h *Hub) Publish(n models.Notification) {
	data, err := json.Marshal(models.Envelope{Event: n.Kind, Data: n.Payload})
	if err != nil {
		h.log.WithError(err).WithField("event", n.Kind).Error("Failed to encode notification")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for o := range h.observers {
		if !o.joined {
			if len(o.backlog) < sendBuffer {
				o.backlog = append(o.backlog, data)
			} else {
				h.log.WithField("observer", o.id).WithField("event", n.Kind).Warn("Observer backlog full, dropping notification")
			}
			continue
		}
		select {
		case o.send <- data:
		default:
			h.log.WithField("observer", o.id).WithField("event", n.Kind).Warn("Observer buffer full, dropping notification")
		}
	}
}

// Len returns the number of connected observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Close disconnects every observer and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for o := range h.observers {
		o.close()
		delete(h.observers, o)
		h.metrics.ObserverDisconnected()
	}
}

func (h *Hub) register(o *observer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.observers[o] = struct{}{}
	h.metrics.ObserverConnected()
	return true
}

// join queues the init frame followed by every broadcast held since register.
func (h *Hub) join(o *observer, initFrame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o.send <- initFrame
	for _, data := range o.backlog {
		select {
		case o.send <- data:
		default:
			h.log.WithField("observer", o.id).Warn("Observer buffer full, dropping notification")
		}
	}
	o.backlog = nil
	o.joined = true
}

func (h *Hub) unregister(o *observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.observers[o]; ok {
		delete(h.observers, o)
		h.metrics.ObserverDisconnected()
	}
	o.close()
}

// Handler returns the websocket endpoint. Each new observer first receives an
// init frame with the current session snapshot, then every notification
// published after it was registered. Events raced with the snapshot may be
// seen twice but never lost.
func (h *Hub) Handler(sessions Sessions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.WithError(err).Debug("Websocket upgrade failed")
			return
		}

		o := &observer{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, sendBuffer),
			done: make(chan struct{}),
		}
		log := h.log.WithField("observer", o.id)

		if !h.register(o) {
			conn.Close()
			return
		}

		records, err := sessions.Snapshot(r.Context())
		if err != nil {
			log.WithError(err).Warn("Failed to load session snapshot")
			records = []models.SessionRecord{}
		}
		initFrame, _ := json.Marshal(models.Envelope{Event: models.EventInit, Data: records})
		h.join(o, initFrame)
		log.Debug("Observer connected")

		go h.writePump(o)
		h.readPump(o, sessions, log)
		log.Debug("Observer disconnected")
	})
}

type inbound struct {
	Event models.EventKind `json:"event"`
	Data  json.RawMessage  `json:"data"`
}

func (h *Hub) readPump(o *observer, sessions Sessions, log *logrus.Entry) {
	defer func() {
		h.unregister(o)
		o.conn.Close()
	}()

	o.conn.SetReadLimit(maxMessageSize)
	o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error {
		o.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg inbound
		if err := o.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("Observer read failed")
			}
			return
		}

		switch msg.Event {
		case models.EventCreateSession:
			var payload models.CreateSessionPayload
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				log.WithError(err).Warn("Malformed create-session payload")
				continue
			}
			log.WithField("id", payload.ID).Info("Observer requested session")
			if err := sessions.CreateSession(context.Background(), payload.ID, payload.Description); err != nil {
				log.WithError(err).WithField("id", payload.ID).Warn("create-session failed")
				h.reply(o, models.Envelope{
					Event: models.EventMessage,
					Data:  models.MessagePayload{ID: payload.ID, Text: err.Error()},
				})
			}
		default:
			log.WithField("event", msg.Event).Debug("Ignoring unknown observer event")
		}
	}
}

func (h *Hub) reply(o *observer, env models.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case o.send <- data:
	default:
	}
}

func (h *Hub) writePump(o *observer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		o.conn.Close()
	}()

	for {
		select {
		case data := <-o.send:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				o.close()
				return
			}
		case <-ticker.C:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				o.close()
				return
			}
		case <-o.done:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			o.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
