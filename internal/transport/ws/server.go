package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/notify-service/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// TokenVerifier resolves an access token to the user id it was issued for.
type TokenVerifier interface {
	UserID(token string) (string, error)
}

type Options struct {
	PingPeriod time.Duration // must be less than PongWait
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
	ReadLimit  int64

	// Inbound messages per second and burst per connection.
	MessageRate  float64
	MessageBurst int

	// Verifier enables token-checked registration. nil keeps registration
	// trust based: any connection may claim any user id.
	Verifier TokenVerifier

	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
}

func DefaultOptions() Options {
	return Options{
		PingPeriod:   25 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    10 * time.Second,
		SendBuffer:   64,
		ReadLimit:    4096,
		MessageRate:  5,
		MessageBurst: 10,
	}
}

type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	opts     Options
}

func NewServer(hub *Hub, opts Options) *Server {
	def := DefaultOptions()
	if opts.PongWait <= 0 {
		opts.PongWait = def.PongWait
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = def.WriteWait
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = def.ReadLimit
	}
	if opts.MessageRate <= 0 {
		opts.MessageRate = def.MessageRate
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = def.MessageBurst
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Server{
		hub:  hub,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// HandleWS serves GET /ws. With a verifier configured the handshake must
// carry an access token (?access_token= or Authorization: Bearer).
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	var subject string
	if s.opts.Verifier != nil {
		token := accessToken(r)
		if token == "" {
			http.Error(w, "missing access_token", http.StatusUnauthorized)
			return
		}
		uid, err := s.opts.Verifier.UserID(token)
		if err != nil {
			slog.Warn("ws handshake rejected", "remote", r.RemoteAddr, "err", err)
			http.Error(w, "invalid access_token", http.StatusUnauthorized)
			return
		}
		subject = uid
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response
		slog.Debug("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, uuid.NewString(), subject, s.opts.SendBuffer)
	s.hub.Connect(c)

	go s.writeLoop(c)
	s.readLoop(c)

	s.hub.Disconnect(c)
	_ = c.Close()
}

func (s *Server) readLoop(c *wsConn) {
	limiter := rate.NewLimiter(rate.Limit(s.opts.MessageRate), s.opts.MessageBurst)

	c.conn.SetReadLimit(s.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws read failed", "conn_id", c.id, "err", err)
			}
			return
		}
		if !limiter.Allow() {
			metrics.RateLimited.Inc()
			slog.Debug("ws message rate limited", "conn_id", c.id)
			continue
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("ws malformed frame", "conn_id", c.id, "err", err)
			continue
		}

		switch msg.Event {
		case EventRegister:
			s.register(c, UserIDString(msg.Data))
		default:
			// clients only send register
		}
	}
}

func (s *Server) register(c *wsConn, userID string) {
	if s.opts.Verifier != nil && userID != c.subject {
		metrics.Registrations.WithLabelValues("forbidden").Inc()
		slog.Warn("ws register refused", "conn_id", c.id, "user_id", userID, "subject", c.subject)
		c.sendMessage(Message{
			Event: EventError,
			Data: ErrorPayload{
				Code:    "forbidden",
				Message: "user id does not match access token",
			},
		})
		return
	}

	group, added := s.hub.Register(c, userID)
	if added {
		metrics.Registrations.WithLabelValues("joined").Inc()
		slog.Info("ws registered", "conn_id", c.id, "group", group)
	} else {
		metrics.Registrations.WithLabelValues("duplicate").Inc()
	}

	c.sendMessage(Message{Event: EventRegistered, Data: RegisteredPayload{Group: group}})
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(s.opts.WriteWait))
			return
		}
	}
}

// AllowOrigins returns a CheckOrigin accepting requests without an Origin
// header and those whose Origin is listed. "*" or an empty list allows all.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
}

func accessToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("access_token")); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return ""
}

// wsConn is the gorilla-backed Conn. Only writeLoop writes to the socket.
type wsConn struct {
	conn      *websocket.Conn
	id        string
	subject   string
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, id, subject string, buf int) *wsConn {
	return &wsConn{
		conn:    c,
		id:      id,
		subject: subject,
		send:    make(chan []byte, buf),
		closed:  make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(frame []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close signals writeLoop to send a close frame and stop; readLoop then
// fails on the closed socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *wsConn) sendMessage(msg Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := c.Send(frame); err != nil {
		slog.Debug("ws reply dropped", "conn_id", c.id, "event", msg.Event, "err", err)
	}
}
