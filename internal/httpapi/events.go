package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camerarecorder/cctv-service/internal/logging"
)

// event is one camera/recording/schedule state-transition notification
// broadcast to connected operator tooling.
type event struct {
	Kind     string                 `json:"kind"` // "camera", "recording", "schedule", "transfer"
	EntityID string                 `json:"entity_id"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

// eventHub fans out published events to every connected /events
// subscriber. Connection accounting mirrors the teacher's websocket event
// manager: a registry of per-connection send channels guarded by a mutex,
// slow consumers are dropped rather than allowed to block publishers.
type eventHub struct {
	logger *logging.Logger

	mu   sync.Mutex
	subs map[chan event]struct{}

	upgrader websocket.Upgrader
}

func newEventHub(logger *logging.Logger) *eventHub {
	return &eventHub{
		logger: logger,
		subs:   make(map[chan event]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *eventHub) subscribe() chan event {
	ch := make(chan event, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(ch chan event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *eventHub) publish(e event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.Warn("dropping event for slow /events subscriber")
		}
	}
}

// HandleEvents upgrades the connection and streams published events as
// JSON text frames until the client disconnects.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.events.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := s.events.subscribe()
	defer s.events.unsubscribe(ch)

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
