// Package notifyclient is the client side of the notification hub: a single
// reusable connection handle that stays dormant until Connect is called,
// registers the user once per live connection and retries a bounded number
// of times when the transport fails.
//
// A Client built with an empty URL is inert and never dials.
package notifyclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrDisabled     = errors.New("notifyclient: no hub url configured")
	ErrClosed       = errors.New("notifyclient: client closed")
	ErrNotConnected = errors.New("notifyclient: not connected")
)

// Lifecycle events dispatched to On handlers with nil data, except
// EventReconnectAttempt which carries the attempt number.
const (
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventReconnectAttempt = "reconnect_attempt"
	EventReconnect        = "reconnect"
	EventReconnectFailed  = "reconnect_failed"

	eventRegister = "register"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateFailed // reconnection attempts exhausted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handler receives the raw data of a server event.
type Handler func(data json.RawMessage)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Client struct {
	url      string
	header   http.Header
	dialer   Dialer
	delay    time.Duration
	maxDelay time.Duration
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	closed   bool
	session  uint64 // bumped by Connect; stale loops compare and quit
	conn     *websocket.Conn
	userID   json.RawMessage
	handlers map[string][]Handler

	writeMu sync.Mutex
}

// New builds a dormant client for url. No connection is attempted until
// Connect. An empty url yields an inert client.
func New(url string, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:      strings.TrimSpace(url),
		header:   http.Header{},
		delay:    ReconnectDelay,
		maxDelay: ReconnectDelayMax,
		log:      slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[string][]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = defaultDialer()
	}
	return c
}

// NewFromEnv reads the hub URL from NOTIFY_URL.
func NewFromEnv(opts ...Option) *Client {
	return New(os.Getenv(EnvURL), opts...)
}

// Enabled reports whether the client has a URL to connect to.
func (c *Client) Enabled() bool { return c.url != "" }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On subscribes h to event. Handlers for one event run in subscription
// order on the client's internal goroutines and must not block.
func (c *Client) On(event string, h Handler) {
	if h == nil {
		return
	}
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
}

// Connect starts the handshake. It returns the outcome of the first attempt;
// on failure up to ReconnectAttempts further attempts run in the background,
// after which the client stays in StateFailed until Connect is called again.
// Connect is a no-op while connected or connecting.
func (c *Client) Connect(ctx context.Context) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.session++
	session := c.session
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err == nil {
		c.open(session, conn)
		return nil
	}

	c.log.Warn("notify connect failed", "url", c.url, "err", err)
	go c.reconnect(session)
	return fmt.Errorf("notifyclient: connect: %w", err)
}

// Register remembers userID and sends it to the hub. It is re-sent after
// every successful reconnect.
func (c *Client) Register(userID any) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	raw, err := json.Marshal(userID)
	if err != nil {
		return fmt.Errorf("notifyclient: encode user id: %w", err)
	}

	c.mu.Lock()
	c.userID = raw
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.write(conn, envelope{Event: eventRegister, Data: raw})
}

// Close stops reconnection and closes the live connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}

// --- internal ---------------------------------------------------------------

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// open installs conn as the live connection for session. It returns false
// and closes conn when the session is stale.
func (c *Client) open(session uint64, conn *websocket.Conn) bool {
	c.mu.Lock()
	if c.closed || c.session != session {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.state = StateConnected
	userID := c.userID
	c.mu.Unlock()

	go c.readLoop(session, conn)

	if userID != nil {
		if err := c.write(conn, envelope{Event: eventRegister, Data: userID}); err != nil {
			c.log.Debug("notify register failed", "err", err)
		}
	}
	c.dispatch(EventConnect, nil)
	return true
}

func (c *Client) readLoop(session uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			continue
		}
		c.dispatch(msg.Event, msg.Data)
	}

	c.mu.Lock()
	if c.closed || c.session != session || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateConnecting
	c.mu.Unlock()

	_ = conn.Close()
	c.dispatch(EventDisconnect, nil)
	c.reconnect(session)
}

func (c *Client) reconnect(session uint64) {
	delay := c.delay
	for attempt := 1; attempt <= ReconnectAttempts; attempt++ {
		t := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if !c.current(session) {
			return
		}

		c.dispatch(EventReconnectAttempt, json.RawMessage(fmt.Sprint(attempt)))
		conn, err := c.dial(c.ctx)
		if err == nil {
			if c.open(session, conn) {
				c.dispatch(EventReconnect, nil)
			}
			return
		}
		c.log.Debug("notify reconnect failed", "attempt", attempt, "err", err)

		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}

	c.mu.Lock()
	if c.closed || c.session != session {
		c.mu.Unlock()
		return
	}
	c.state = StateFailed
	c.mu.Unlock()

	c.log.Warn("notify reconnect gave up", "url", c.url, "attempts", ReconnectAttempts)
	c.dispatch(EventReconnectFailed, nil)
}

func (c *Client) current(session uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.session == session
}

func (c *Client) write(conn *websocket.Conn, msg envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(HandshakeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	hs := append([]Handler(nil), c.handlers[event]...)
	c.mu.Unlock()

	for _, h := range hs {
		h(data)
	}
}
