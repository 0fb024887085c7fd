package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("ws-secret")

type exported struct {
	To   string `json:"-"`
	Kind string `json:"kind"`
}

func (e exported) Recipient() string { return e.To }

func newServer(t *testing.T) (*Hub, string, context.CancelFunc) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, secret) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", cancel
}

func signed(t *testing.T, key []byte, subject string) string {
	t.Helper()
	claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
	if subject != "" {
		claims["sub"] = subject
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func dial(t *testing.T, url, subject string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+signed(t, secret, subject), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn, wait time.Duration) (string, error) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, msg, err := conn.ReadMessage()
	return string(msg), err
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	hub, url, _ := newServer(t)
	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Publish(map[string]string{"type": "maintenance"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg, err := read(t, conn, 2*time.Second)
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"maintenance"}`, msg)
	}
}

func TestTargetedEventReachesOnlyRecipient(t *testing.T) {
	hub, url, _ := newServer(t)
	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Publish(exported{To: "alice", Kind: "pdf"})
	hub.Publish(exported{To: "", Kind: "csv"})

	msg, err := read(t, alice, 2*time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"pdf"}`, msg)

	_, err = read(t, bob, 200*time.Millisecond)
	assert.Error(t, err)
	_, err = read(t, alice, 200*time.Millisecond)
	assert.Error(t, err)
}

func TestServeWsRejectsBadTokens(t *testing.T) {
	_, url, _ := newServer(t)

	for name, query := range map[string]string{
		"missing":    "",
		"wrong key":  "?token=" + signed(t, []byte("other"), "alice"),
		"not a jwt":  "?token=abc",
		"no subject": "?token=" + signed(t, secret, ""),
	} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(url+query, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestStoppingHubDisconnectsClients(t *testing.T) {
	hub, url, stop := newServer(t)
	conn := dial(t, url, "alice")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	stop()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
	_, err := read(t, conn, 2*time.Second)
	assert.Error(t, err)
}

func TestPublishWithoutRunningHubDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Publish(map[string]int{"n": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}
