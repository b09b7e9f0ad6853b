// Package realtime pushes readings and alert changes to live subscribers
// over WebSocket, SSE and Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/metrics"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before the connection is dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxControlMessage bounds join/leave frames read from clients.
	maxControlMessage = 1024

	// DefaultSendBuffer is the per-subscriber outgoing queue depth.
	DefaultSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks belong to the reverse proxy in front of the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope delivered to subscribers.
type Message struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Frame is one queued event for a subscriber. Payload is the encoded Message.
type Frame struct {
	Event   string
	Payload []byte
}

// controlMessage is sent by WebSocket clients to change room membership.
type controlMessage struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

// Hub tracks subscribers and their rooms and delivers published events to
// every member of the target room.
type Hub struct {
	bufSize int
	logger  *zap.Logger

	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	rooms       map[string]map[*Subscription]struct{}
}

// Subscription is one live subscriber, backed by a WebSocket connection or
// an SSE stream.
type Subscription struct {
	hub    *Hub
	send   chan Frame
	rooms  map[string]struct{} // guarded by hub.mu
	closed bool                // guarded by hub.mu
	once   sync.Once
}

// NewHub creates a hub. bufSize <= 0 selects DefaultSendBuffer.
func NewHub(bufSize int, logger *zap.Logger) *Hub {
	if bufSize <= 0 {
		bufSize = DefaultSendBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		bufSize:     bufSize,
		logger:      logger.Named("realtime"),
		subscribers: make(map[*Subscription]struct{}),
		rooms:       make(map[string]map[*Subscription]struct{}),
	}
}

// DeviceRoom returns the room name for a device.
func DeviceRoom(deviceID string) string { return "device:" + deviceID }

// UserRoom returns the room name for a device owner.
func UserRoom(userID string) string { return "user:" + userID }

// ValidRoom reports whether room is global or a non-empty device or user room.
func ValidRoom(room string) bool {
	if room == RoomGlobal {
		return true
	}
	for _, prefix := range []string{"device:", "user:"} {
		if strings.HasPrefix(room, prefix) && len(room) > len(prefix) {
			return true
		}
	}
	return false
}

// RoomsFromQuery returns the global room plus the device and user rooms
// named by the device and user query parameters.
func RoomsFromQuery(r *http.Request) []string {
	rooms := []string{RoomGlobal}
	q := r.URL.Query()
	if d := strings.TrimSpace(q.Get("device")); d != "" {
		rooms = append(rooms, DeviceRoom(d))
	}
	if u := strings.TrimSpace(q.Get("user")); u != "" {
		rooms = append(rooms, UserRoom(u))
	}
	return rooms
}

// Subscribe registers a subscriber in the given rooms.
func (h *Hub) Subscribe(rooms ...string) *Subscription {
	s := &Subscription{
		hub:   h,
		send:  make(chan Frame, h.bufSize),
		rooms: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	for _, room := range rooms {
		h.joinLocked(s, room)
	}
	n := len(h.subscribers)
	h.mu.Unlock()

	metrics.RealtimeClients.Set(float64(n))
	return s
}

// C returns the subscriber's event queue. It is closed by Close.
func (s *Subscription) C() <-chan Frame {
	return s.send
}

// Join adds the subscriber to room.
func (s *Subscription) Join(room string) {
	s.hub.mu.Lock()
	if !s.closed {
		s.hub.joinLocked(s, room)
	}
	s.hub.mu.Unlock()
}

// Leave removes the subscriber from room.
func (s *Subscription) Leave(room string) {
	s.hub.mu.Lock()
	s.hub.leaveLocked(s, room)
	s.hub.mu.Unlock()
}

// Rooms returns the rooms the subscriber is in.
func (s *Subscription) Rooms() []string {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	out := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		out = append(out, room)
	}
	return out
}

// Close unregisters the subscriber and closes its queue.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		for room := range s.rooms {
			h.leaveLocked(s, room)
		}
		delete(h.subscribers, s)
		s.closed = true
		close(s.send)
		n := len(h.subscribers)
		h.mu.Unlock()

		metrics.RealtimeClients.Set(float64(n))
	})
}

func (h *Hub) joinLocked(s *Subscription, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Subscription]struct{})
		h.rooms[room] = members
	}
	members[s] = struct{}{}
	s.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(s *Subscription, room string) {
	delete(s.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Publish delivers event to every subscriber in room. A subscriber whose
// queue is full misses the event.
func (h *Hub) Publish(_ context.Context, room, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	payload, err := json.Marshal(Message{Room: room, Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("encode %s message: %w", event, err)
	}
	frame := Frame{Event: event, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[room] {
		select {
		case s.send <- frame:
		default:
			metrics.RealtimeDropped.Inc()
			h.logger.Debug("subscriber queue full, event dropped",
				zap.String("room", room), zap.String("event", event))
		}
	}
	return nil
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// RoomSize returns the number of subscribers in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		s.Close()
	}
}

// ServeHTTP upgrades the request to a WebSocket and serves the client until
// it disconnects. The client starts in the rooms named by RoomsFromQuery.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	s := h.Subscribe(RoomsFromQuery(r)...)
	defer s.Close()

	go writePump(conn, s)
	h.readPump(conn, s)
}

// writePump forwards queued frames to the connection and sends pings.
func writePump(conn *websocket.Conn, s *Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame.Payload); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump applies join/leave frames and detects disconnects.
func (h *Hub) readPump(conn *websocket.Conn, s *Subscription) {
	defer conn.Close()
	conn.SetReadLimit(maxControlMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil || !ValidRoom(msg.Room) {
			h.logger.Debug("ignoring malformed control message", zap.ByteString("data", data))
			continue
		}
		switch msg.Action {
		case "join":
			s.Join(msg.Room)
		case "leave":
			s.Leave(msg.Room)
		}
	}
}
