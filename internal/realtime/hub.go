// Package realtime pushes lot availability changes to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/logging"
	"github.com/iliyamo/parking-reservation/internal/model"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	sendBuffer   = 16
)

// Update is the message sent to subscribers.
type Update struct {
	LotID          uint64          `json:"lot_id"`
	AvailableCount int             `json:"available_count"`
	Type           model.EventType `json:"type"`
}

type client struct {
	lotID uint64 // 0 subscribes to every lot
	send  chan []byte
}

// Hub tracks websocket subscribers per lot.  Publish never blocks on a
// slow client: when its buffer is full the update is dropped for that
// client only.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: map[*client]struct{}{},
		log:     logging.OrNop(log).Named("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Publish forwards an availability change to the lot's subscribers.  It
// satisfies both service.EventPublisher and queue.Handler.  Events
// without an available count are ignored.
func (h *Hub) Publish(_ context.Context, ev model.ReservationEvent) error {
	if ev.AvailableCount == nil {
		return nil
	}
	msg, err := json.Marshal(Update{LotID: ev.LotID, AvailableCount: *ev.AvailableCount, Type: ev.Type})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.lotID != 0 && c.lotID != ev.LotID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.log.Warn("dropping update, client buffer full", zap.Uint64("lot_id", ev.LotID))
		}
	}
	return nil
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribe(lotID uint64) *client {
	c := &client{lotID: lotID, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ParseLotID reads the optional lot_id query parameter; 0 means all lots.
func ParseLotID(r *http.Request) (uint64, bool) {
	raw := r.URL.Query().Get("lot_id")
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// ServeWS upgrades the request and streams updates until the client
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	lotID, ok := ParseLotID(r)
	if !ok {
		http.Error(w, `{"error":"invalid lot_id"}`, http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := h.subscribe(lotID)
	h.log.Debug("subscriber connected", zap.Uint64("lot_id", lotID))
	go h.writePump(conn, c)
	h.readPump(conn, c)
}

// readPump only handles control frames; clients do not send data.
func (h *Hub) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		h.unsubscribe(c)
		_ = conn.Close()
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read closed", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
