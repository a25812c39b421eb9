package ws_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/notify-service/internal/security"
	"github.com/cwrk-planet/notify-service/internal/transport/ws"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ----------------------------------------------------------------

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startServer(t *testing.T, opts ws.Options) (string, *ws.Hub) {
	t.Helper()
	hub := ws.NewHub()
	srv := httptest.NewServer(http.HandlerFunc(ws.NewServer(hub, opts).HandleWS))
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func register(t *testing.T, conn *websocket.Conn, userID any) string {
	t.Helper()
	send(t, conn, ws.EventRegister, userID)
	f := read(t, conn)
	require.Equal(t, ws.EventRegistered, f.Event)
	var p ws.RegisteredPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	return p.Group
}

// --- tests ------------------------------------------------------------------

func TestServer_EndToEnd_LikeCountUpdated(t *testing.T) {
	url, hub := startServer(t, ws.Options{})

	c1 := dial(t, url)
	c2 := dial(t, url)
	assert.Equal(t, "user-42", register(t, c1, "42"))

	n, err := hub.Emit("user-42", "likeCount-updated", map[string]int{"likeCount": 5})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f := read(t, c1)
	assert.Equal(t, "likeCount-updated", f.Event)
	assert.JSONEq(t, `{"likeCount":5}`, string(f.Data))

	require.NoError(t, c2.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = c2.ReadMessage()
	assert.Error(t, err, "unregistered connection must not receive the event")
}

func TestServer_NumericUserID(t *testing.T) {
	url, hub := startServer(t, ws.Options{})
	c := dial(t, url)

	assert.Equal(t, "user-42", register(t, c, 42))
	assert.Equal(t, 1, hub.Members("user-42"))
}

func TestServer_DuplicateRegisterSingleDelivery(t *testing.T) {
	url, hub := startServer(t, ws.Options{})
	c := dial(t, url)

	register(t, c, "42")
	register(t, c, "42")
	assert.Equal(t, 1, hub.Members("user-42"))

	n, err := hub.Emit("user-42", "post-liked", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "post-liked", read(t, c).Event)
}

func TestServer_DisconnectLeavesGroup(t *testing.T) {
	url, hub := startServer(t, ws.Options{})
	c := dial(t, url)
	register(t, c, "A")
	require.Equal(t, 1, hub.Members("user-A"))

	c.Close()

	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	n, err := hub.Emit("user-A", "likeCount-updated", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestServer_IgnoresGarbage(t *testing.T) {
	url, hub := startServer(t, ws.Options{})
	c := dial(t, url)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("not json")))
	send(t, c, "something-else", 1)
	assert.Equal(t, "user-9", register(t, c, "9"))
	assert.Equal(t, 1, hub.Count())
}

func TestServer_RateLimitDropsFlood(t *testing.T) {
	url, hub := startServer(t, ws.Options{MessageRate: 0.001, MessageBurst: 1})
	c := dial(t, url)

	register(t, c, "1")
	send(t, c, ws.EventRegister, "2")

	require.NoError(t, c.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := c.ReadMessage()
	assert.Error(t, err, "rate limited register must not be acknowledged")
	assert.Zero(t, hub.Members("user-2"))
}

func TestServer_NonWebSocketRequest_Returns400(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(ws.NewServer(ws.NewHub(), ws.Options{}).HandleWS))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_TokenCheckedRegistration(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer := security.NewSigner(key, "auth-service", "notify", time.Minute)
	verifier := security.NewVerifier(&key.PublicKey, "auth-service", "notify", 0)

	url, hub := startServer(t, ws.Options{Verifier: verifier})

	t.Run("missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("bad token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(url+"?access_token=nope", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	tok, err := signer.Sign("42", time.Now())
	require.NoError(t, err)

	t.Run("own user id", func(t *testing.T) {
		c := dial(t, url+"?access_token="+tok)
		assert.Equal(t, "user-42", register(t, c, 42))
	})

	t.Run("foreign user id", func(t *testing.T) {
		h := http.Header{}
		h.Set("Authorization", "Bearer "+tok)
		c, _, err := websocket.DefaultDialer.Dial(url, h)
		require.NoError(t, err)
		defer c.Close()

		send(t, c, ws.EventRegister, "7")
		f := read(t, c)
		require.Equal(t, ws.EventError, f.Event)
		var p ws.ErrorPayload
		require.NoError(t, json.Unmarshal(f.Data, &p))
		assert.Equal(t, "forbidden", p.Code)
		assert.Zero(t, hub.Members("user-7"))
	})
}

func TestServer_AllowOrigins(t *testing.T) {
	url, _ := startServer(t, ws.Options{CheckOrigin: ws.AllowOrigins([]string{"https://app.example/"})})

	h := http.Header{}
	h.Set("Origin", "https://app.example")
	c, _, err := websocket.DefaultDialer.Dial(url, h)
	require.NoError(t, err)
	c.Close()

	h.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, h)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.True(t, ws.AllowOrigins(nil)(&http.Request{Header: http.Header{"Origin": {"https://x"}}}))
}
