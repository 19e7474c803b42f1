package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/models"
)

type recordingRouter struct {
	mu           sync.Mutex
	connected    []string
	events       []models.InboundEvent
	disconnected []string
}

func (r *recordingRouter) Connect(ctx context.Context, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = append(r.connected, conn.UserID())
}

func (r *recordingRouter) HandleEvent(ctx context.Context, conn Conn, evt models.InboundEvent) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	conn.Send(models.Event{Type: "echo", Data: evt.Type})
}

func (r *recordingRouter) Disconnect(ctx context.Context, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, conn.UserID())
}

func (r *recordingRouter) disconnects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.disconnected)
}

func newTestServer(t *testing.T, router Router) (*httptest.Server, *auth.JWTVerifier, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	verifier := auth.NewJWTVerifier("secret")
	hub := NewHub()
	engine := gin.New()
	engine.GET("/ws", NewHandler(hub, router, verifier, 8).Handle)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, verifier, hub
}

func TestHandlerRejectsMissingToken(t *testing.T) {
	srv, _, _ := newTestServer(t, &recordingRouter{})

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlerRoutesEventsAndDisconnects(t *testing.T) {
	router := &recordingRouter{}
	srv, verifier, hub := newTestServer(t, router)
	token, err := verifier.Sign("alice", jwt.RegisteredClaims{})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(models.InboundEvent{Type: models.EventChatJoin}))

	var reply struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "echo", reply.Type)
	assert.Equal(t, models.EventChatJoin, reply.Data)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.ReadJSON(&struct{}{}))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return router.disconnects() == 1 }, 2*time.Second, 10*time.Millisecond)

	router.mu.Lock()
	assert.Equal(t, []string{"alice"}, router.connected)
	assert.Len(t, router.events, 1)
	router.mu.Unlock()

	assert.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.conns) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
