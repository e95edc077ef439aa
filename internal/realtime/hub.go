package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/savorahq/savora/pkg/logger"
	"github.com/savorahq/savora/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16 // 64 KiB; control frames are tiny

	defaultBufferSize = 64
)

// Message represents a JSON payload delivered to realtime subscribers.
type Message struct {
	Room  string `json:"room"`
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type controlMessage struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

// Hub coordinates room-scoped realtime broadcast for connected clients.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]map[*connection]struct{} // room -> userID -> conns
	origins  map[string]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub() *Hub {
	h := &Hub{
		rooms: make(map[string]map[string]map[*connection]struct{}),
		log:   logger.WithModule("realtime"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// AllowOrigins registers additional origins permitted to open WebSocket
// connections. Same-origin and loopback requests are always allowed.
func (h *Hub) AllowOrigins(origins []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, origin := range origins {
		host := hostWithoutPort(origin)
		if host == "" {
			continue
		}
		if h.origins == nil {
			h.origins = make(map[string]struct{})
		}
		h.origins[strings.ToLower(host)] = struct{}{}
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originHost := hostWithoutPort(origin)
	requestHost := hostWithoutPort(r.Host)
	if originHost == requestHost || isLoopback(originHost) {
		return true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.origins[strings.ToLower(originHost)]
	return ok
}

// Shutdown closes every active connection. New upgrades are still accepted;
// callers stop routing traffic before invoking it.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make(map[*connection]struct{})
	for _, byUser := range h.rooms {
		for _, conns := range byUser {
			for client := range conns {
				clients[client] = struct{}{}
			}
		}
	}
	h.mu.RUnlock()

	for client := range clients {
		client.close()
	}
}

// Serve upgrades the HTTP connection to a WebSocket and registers the client.
// Every connection lands in the user's notification feed; admin connections
// are additionally placed in the admin room.
func (h *Hub) Serve(userID string, isAdmin bool, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := newConnection(h, conn, userID, isAdmin)

	h.join(client, RoomNotifications)
	if isAdmin {
		h.join(client, RoomAdmin)
	}

	metrics.RealtimeConnections.Inc()

	go client.writeLoop()
	client.readLoop()
}

// BroadcastToUser delivers a message to all of the user's connections
// subscribed to the given room.
func (h *Hub) BroadcastToUser(room, userID string, message Message) {
	room = normalizeRoom(room)
	if room == "" || userID == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	byUser, ok := h.rooms[room]
	if !ok {
		return
	}

	targets := byUser[userID]
	if len(targets) == 0 {
		return
	}

	message.Room = room
	for client := range targets {
		h.enqueue(client, message)
	}
}

// BroadcastRoom delivers a message to every subscriber of the room.
func (h *Hub) BroadcastRoom(room string, message Message) {
	room = normalizeRoom(room)
	if room == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	byUser, ok := h.rooms[room]
	if !ok {
		return
	}

	message.Room = room
	for _, clients := range byUser {
		for client := range clients {
			h.enqueue(client, message)
		}
	}
}

// RoomSize reports how many connections are subscribed to a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.rooms[normalizeRoom(room)] {
		total += len(clients)
	}
	return total
}

func (h *Hub) join(client *connection, room string) {
	room = normalizeRoom(room)
	if room == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if client.rooms == nil {
		client.rooms = make(map[string]struct{})
	}
	if _, exists := client.rooms[room]; exists {
		return
	}

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]map[*connection]struct{})
	}
	if h.rooms[room][client.userID] == nil {
		h.rooms[room][client.userID] = make(map[*connection]struct{})
	}

	client.rooms[room] = struct{}{}
	h.rooms[room][client.userID][client] = struct{}{}
}

func (h *Hub) leave(client *connection, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeMembershipLocked(client, room)
	delete(client.rooms, normalizeRoom(room))
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range client.rooms {
		h.removeMembershipLocked(client, room)
	}
	client.rooms = nil
}

func (h *Hub) removeMembershipLocked(client *connection, room string) {
	room = normalizeRoom(room)
	if room == "" {
		return
	}

	byUser, ok := h.rooms[room]
	if !ok {
		return
	}

	userConns := byUser[client.userID]
	if len(userConns) == 0 {
		return
	}

	delete(userConns, client)
	if len(userConns) == 0 {
		delete(byUser, client.userID)
	}
	if len(byUser) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) enqueue(client *connection, message Message) {
	select {
	case client.send <- message:
		metrics.RealtimeEventsDelivered.WithLabelValues(roomKind(message.Room)).Inc()
	default:
		metrics.RealtimeEventsDropped.Inc()
		h.log.Warn("dropping backpressure client", zap.String("user_id", client.userID))
		// Callers hold the hub read lock; close unregisters under the
		// write lock, so it must run outside this goroutine.
		go client.close()
	}
}

type connection struct {
	hub     *Hub
	socket  *websocket.Conn
	userID  string
	isAdmin bool
	rooms   map[string]struct{}
	send    chan Message
	once    sync.Once

	// sendMu orders trySend against close: the read goroutine answers pings
	// via the send channel while other goroutines may be closing it.
	sendMu sync.Mutex
	closed bool
}

func newConnection(hub *Hub, conn *websocket.Conn, userID string, isAdmin bool) *connection {
	return &connection{
		hub:     hub,
		socket:  conn,
		userID:  userID,
		isAdmin: isAdmin,
		send:    make(chan Message, defaultBufferSize),
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("unexpected close", zap.String("user_id", c.userID), zap.Error(err))
			}
			break
		}

		if len(payload) == 0 {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			c.hub.log.Warn("invalid control payload", zap.String("user_id", c.userID), zap.Error(err))
			continue
		}

		c.handleControl(ctrl)
	}
}

// handleControl applies a room-control frame. Join/leave are fire-and-forget;
// no acknowledgement is sent.
func (c *connection) handleControl(ctrl controlMessage) {
	action := strings.ToLower(strings.TrimSpace(ctrl.Action))
	id := strings.TrimSpace(ctrl.ID)

	switch action {
	case ActionJoinOrderRoom:
		c.joinChecked(OrderRoom(id))
	case ActionLeaveOrderRoom:
		c.hub.leave(c, OrderRoom(id))
	case ActionJoinPaymentRoom:
		c.joinChecked(PaymentRoom(id))
	case ActionLeavePaymentRoom:
		c.hub.leave(c, PaymentRoom(id))
	case ActionPing:
		c.trySend(Message{Event: "pong"})
	default:
		c.hub.log.Warn("unsupported control action",
			zap.String("action", ctrl.Action), zap.String("user_id", c.userID))
	}
}

func (c *connection) joinChecked(room string) {
	if !joinableRoom(room) || strings.HasSuffix(room, ":") {
		c.hub.log.Warn("ignoring join for unjoinable room",
			zap.String("room", room), zap.String("user_id", c.userID))
		return
	}
	c.hub.join(c, room)
}

func (c *connection) trySend(message Message) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- message:
	default:
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)

		c.sendMu.Lock()
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()

		_ = c.socket.Close()
		metrics.RealtimeConnections.Dec()
	})
}

func roomKind(room string) string {
	switch {
	case strings.HasPrefix(room, orderRoomPrefix):
		return "order"
	case strings.HasPrefix(room, paymentRoomPrefix):
		return "payment"
	default:
		return room
	}
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.Contains(host, "://") {
		if parsed, err := url.Parse(host); err == nil && parsed.Host != "" {
			return hostWithoutPort(parsed.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

func normalizeRoom(room string) string {
	return strings.ToLower(strings.TrimSpace(room))
}
