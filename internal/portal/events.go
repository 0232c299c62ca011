package portal

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
)

// Portal status values carried by StatusEvent
const (
	StatusIdle       = "idle"
	StatusWaiting    = "waiting"
	StatusSaving     = "saving"
	StatusConnecting = "connecting"
	StatusConnected  = "connected"
	StatusFailed     = "failed"
	StatusClosed     = "closed"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// StatusEvent is one message on the /events stream
type StatusEvent struct {
	State       string `json:"state"`
	AccessPoint string `json:"access_point,omitempty"`
	SSID        string `json:"ssid,omitempty"`
	Error       string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// hub fans status events out to websocket subscribers. Slow subscribers
// miss intermediate events rather than block the session.
type hub struct {
	mu   sync.Mutex
	subs map[chan StatusEvent]struct{}
	last StatusEvent
}

func newHub() *hub {
	return &hub{
		subs: make(map[chan StatusEvent]struct{}),
		last: StatusEvent{State: StatusIdle},
	}
}

func (h *hub) publish(ev StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = ev
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// subscribe returns a channel primed with the latest event
func (h *hub) subscribe() (chan StatusEvent, func()) {
	ch := make(chan StatusEvent, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	ch <- h.last
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// closeAll ends every current subscription
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (p *Portal) streamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logging.Debug("Event stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := p.events.subscribe()
	defer unsubscribe()

	// Reader: handles pongs and notices when the client goes away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "portal closed"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logging.Debug("Event stream write failed",
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-gone:
			return
		}
	}
}
