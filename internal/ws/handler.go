package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated requests and runs the connection until it
// closes.
type Handler struct {
	hub        *Hub
	router     Router
	verifier   auth.Verifier
	sendBuffer int
}

func NewHandler(hub *Hub, router Router, verifier auth.Verifier, sendBuffer int) *Handler {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Handler{hub: hub, router: router, verifier: verifier, sendBuffer: sendBuffer}
}

// Handle accepts the token from the Authorization header or the token query
// parameter.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-gateway/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	userID, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := observability.NewConnInfo(c.Request, uuid.NewString(), userID, span.SpanContext().TraceID().String(), time.Now())
	client := newClient(conn, info, h.sendBuffer)

	// The connection outlives the handshake request.
	connCtx := context.WithoutCancel(ctx)
	h.hub.Register(client)
	h.router.Connect(connCtx, client)
	observability.IncWSActive()
	observability.PublishWSEvent(connCtx, "ws_connect", info, "")

	go client.writePump()
	go func() {
		reason := client.readPump(connCtx, h.router)
		h.router.Disconnect(connCtx, client)
		h.hub.Unregister(client.ID())
		client.close()
		observability.DecWSActive()
		observability.PublishWSEvent(connCtx, "ws_disconnect", info, reason)
	}()
}
