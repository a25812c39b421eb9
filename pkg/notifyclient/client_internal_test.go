package notifyclient

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := New("ws://localhost/ws")

	d, ok := c.dialer.(*websocket.Dialer)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, d.HandshakeTimeout)
	assert.Equal(t, time.Second, c.delay)
	assert.Equal(t, 5*time.Second, c.maxDelay)
	assert.Equal(t, 3, ReconnectAttempts)
}

func TestWithAccessToken(t *testing.T) {
	c := New("ws://localhost/ws", WithAccessToken("tok"), WithHeader("X-Client", "web"))
	assert.Equal(t, "Bearer tok", c.header.Get("Authorization"))
	assert.Equal(t, "web", c.header.Get("X-Client"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
