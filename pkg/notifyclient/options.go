package notifyclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// EnvURL holds the hub URL, e.g. ws://localhost:8090/ws.
	EnvURL = "NOTIFY_URL"

	HandshakeTimeout  = 10 * time.Second
	ReconnectAttempts = 3
	ReconnectDelay    = 1 * time.Second
	ReconnectDelayMax = 5 * time.Second
)

// Dialer opens the transport. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type Option func(*Client)

// WithDialer replaces the default gorilla dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithAccessToken sends the token as a bearer header on every handshake.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithHeader adds a handshake header.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Add(key, value) }
}

// WithReconnectDelay overrides the initial and maximum delay between
// reconnection attempts.
func WithReconnectDelay(initial, maxDelay time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.delay = initial
		}
		if maxDelay >= c.delay {
			c.maxDelay = maxDelay
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func defaultDialer() *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: HandshakeTimeout,
	}
}
