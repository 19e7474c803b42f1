package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-gateway/internal/models"
	"chat-gateway/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Router handles the events of a connection. HandleEvent is called from the
// connection's single reader goroutine, so events of one connection are
// processed in order.
type Router interface {
	Connect(ctx context.Context, conn Conn)
	HandleEvent(ctx context.Context, conn Conn, evt models.InboundEvent)
	Disconnect(ctx context.Context, conn Conn)
}

// Client is a websocket connection with a bounded outbound buffer.
type Client struct {
	conn *websocket.Conn
	info observability.ConnInfo
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn, info observability.ConnInfo, buffer int) *Client {
	return &Client{
		conn: conn,
		info: info,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string     { return c.info.ConnID }
func (c *Client) UserID() string { return c.info.UserID }

// Send queues evt without blocking. It reports false when the buffer is full
// or the client is closed.
func (c *Client) Send(evt models.Event) bool {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("ws encode failed conn_id=%s event=%s: %v", c.info.ConnID, evt.Type, err)
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(ctx context.Context, router Router) string {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.PublishWSEvent(ctx, "ws_error", c.info, err.Error())
			}
			return err.Error()
		}

		var evt models.InboundEvent
		if err := json.Unmarshal(data, &evt); err != nil || evt.Type == "" {
			c.Send(models.Event{Type: models.EventError, Data: models.ErrorPayload{
				Code:    "VALIDATION_ERROR",
				Message: "malformed event",
			}})
			continue
		}
		router.HandleEvent(ctx, c, evt)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("websocket write error conn_id=%s: %v", c.info.ConnID, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
