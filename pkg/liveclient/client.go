package liveclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/savorahq/savora/pkg/logger"
)

const (
	defaultMaxRetries       = 5
	defaultBaseBackoff      = 500 * time.Millisecond
	defaultMaxBackoff       = 10 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultPendingLimit     = 32
)

// ErrNoCredential is reported when a connection is requested without a token.
var ErrNoCredential = errors.New("liveclient: no credential configured")

// Handler receives a pushed message. Handlers run on the client's read
// goroutine and must not block.
type Handler func(msg Message)

// HandlerID identifies a registered handler for removal via Off.
type HandlerID uint64

// Config describes how the client connects.
type Config struct {
	// URL is the WebSocket endpoint, e.g. wss://host/api/realtime/stream.
	URL string
	// Token is the bearer credential. An empty token means no connection
	// is established.
	Token string

	// MaxRetries bounds dial attempts per connection cycle.
	MaxRetries int
	// BaseBackoff is the initial retry delay; it doubles per attempt up
	// to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	HandshakeTimeout time.Duration
	// PendingEmitLimit bounds room-control frames queued while the
	// connection is down.
	PendingEmitLimit int
}

type controlFrame struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

// Client owns the single realtime connection for one credential. All methods
// are safe for concurrent use.
type Client struct {
	cfg Config
	log *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	lastErr   error
	closed    bool
	gen       uint64

	handlers map[string]map[HandlerID]Handler
	nextID   HandlerID

	pending []controlFrame
}

// NewClient constructs a client. No connection is opened until Connect.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.PendingEmitLimit <= 0 {
		cfg.PendingEmitLimit = defaultPendingLimit
	}

	return &Client{
		cfg:      cfg,
		log:      logger.WithModule("liveclient"),
		handlers: make(map[string]map[HandlerID]Handler),
	}
}

// Connect dials the realtime endpoint with bounded, capped-backoff retries.
// Failure leaves the client in a disconnected, non-fatal error state; the
// application keeps working without live updates.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("liveclient: client closed")
	}
	token := strings.TrimSpace(c.cfg.Token)
	c.mu.Unlock()

	if token == "" {
		c.setError(ErrNoCredential)
		return ErrNoCredential
	}

	return c.dialLoop(ctx, token)
}

// UpdateCredential swaps the token. Any existing connection is closed before
// a replacement is dialed; an empty token leaves the client disconnected.
func (c *Client) UpdateCredential(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)

	c.mu.Lock()
	c.cfg.Token = token
	c.mu.Unlock()

	c.dropConnection(nil)

	if token == "" {
		c.setError(ErrNoCredential)
		return nil
	}
	return c.dialLoop(ctx, token)
}

// Close shuts the connection down permanently.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.dropConnection(nil)
	return nil
}

// IsConnected reports whether a live connection currently exists.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastError returns the most recent connection-level failure, or nil.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// On registers a handler for a push event and returns its id for Off.
func (c *Client) On(event string, fn Handler) HandlerID {
	if fn == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[HandlerID]Handler)
	}
	c.handlers[event][id] = fn
	return id
}

// Off removes a previously registered handler.
func (c *Client) Off(event string, id HandlerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if set, ok := c.handlers[event]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(c.handlers, event)
		}
	}
}

// Emit sends a room-control frame. While disconnected, join/leave frames are
// queued (bounded) and flushed in order once the connection is live; other
// actions are dropped.
func (c *Client) Emit(action, id string) {
	frame := controlFrame{Action: action, ID: id}

	c.mu.Lock()
	if !c.connected || c.conn == nil {
		if isRoomControl(action) {
			if len(c.pending) < c.cfg.PendingEmitLimit {
				c.pending = append(c.pending, frame)
			} else {
				c.log.Warn("pending emit queue full, dropping frame", zap.String("action", action))
			}
		}
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeFrame(conn, frame)
}

func isRoomControl(action string) bool {
	switch action {
	case ActionJoinOrderRoom, ActionLeaveOrderRoom, ActionJoinPaymentRoom, ActionLeavePaymentRoom:
		return true
	}
	return false
}

func (c *Client) dialLoop(ctx context.Context, token string) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	header := http.Header{"Authorization": []string{"Bearer " + token}}

	backoff := c.cfg.BaseBackoff
	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.setError(ctx.Err())
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
		}

		conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			lastErr = err
			continue
		}

		c.adopt(conn)
		return nil
	}

	c.setError(lastErr)
	c.log.Warn("connection failed, live updates disabled", zap.Error(lastErr))
	return lastErr
}

// adopt installs a freshly dialed connection, flushes queued room-control
// frames in order, and starts the read loop.
func (c *Client) adopt(conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	old := c.conn
	c.conn = conn
	c.connected = true
	c.lastErr = nil
	c.gen++
	gen := c.gen
	flush := c.pending
	c.pending = nil
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	for _, frame := range flush {
		c.writeFrame(conn, frame)
	}

	go c.readLoop(conn, gen)
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, gen, err)
			return
		}

		var msg Message
		if unmarshalErr := json.Unmarshal(payload, &msg); unmarshalErr != nil {
			c.log.Warn("discarding malformed frame", zap.Error(unmarshalErr))
			continue
		}

		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	c.mu.Lock()
	set := c.handlers[msg.Event]
	snapshot := make([]Handler, 0, len(set))
	for _, fn := range set {
		snapshot = append(snapshot, fn)
	}
	c.mu.Unlock()

	for _, fn := range snapshot {
		fn(msg)
	}
}

// handleDisconnect marks the connection lost and attempts a bounded
// background reconnect unless the loss was caused by an intentional close or
// a newer connection already replaced this one.
func (c *Client) handleDisconnect(conn *websocket.Conn, gen uint64, cause error) {
	c.mu.Lock()
	if c.closed || c.gen != gen || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	c.lastErr = cause
	token := strings.TrimSpace(c.cfg.Token)
	c.mu.Unlock()

	_ = conn.Close()

	if token == "" {
		return
	}

	c.log.Warn("connection lost, reconnecting", zap.Error(cause))
	_ = c.dialLoop(context.Background(), token)
}

func (c *Client) dropConnection(cause error) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	if cause != nil {
		c.lastErr = cause
	}
	c.gen++
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.lastErr = err
}

func (c *Client) writeFrame(conn *websocket.Conn, frame controlFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(frame); err != nil {
		c.log.Warn("emit failed", zap.String("action", frame.Action), zap.Error(err))
	}
}
