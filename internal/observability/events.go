package observability

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

const WSRoutingKey = "ws_events.gateway"

type EventEnvelope struct {
	EventType string `json:"event_type"`
	EventName string `json:"event_name"`
	Payload   any    `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// ConnInfo identifies a websocket connection in lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// NewConnInfo describes the connection upgraded from r. Device and request
// ids come from the client's X-Device-Id and X-Request-Id headers.
func NewConnInfo(r *http.Request, connID, userID, traceID string, connectedAt time.Time) ConnInfo {
	return ConnInfo{
		ConnID:      connID,
		UserID:      userID,
		DeviceID:    r.Header.Get("X-Device-Id"),
		IP:          clientIP(r),
		RequestID:   r.Header.Get("X-Request-Id"),
		TraceID:     traceID,
		ConnectedAt: connectedAt,
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-Ip, then the
// socket peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// PublishWSEvent publishes ws_connect, ws_disconnect and ws_error events and
// counts them.
func PublishWSEvent(ctx context.Context, name string, info ConnInfo, reason string) {
	duration := int64(0)
	if name != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}

	payload := map[string]any{
		"ws": map[string]any{
			"event":       name,
			"conn_id":     info.ConnID,
			"duration_ms": duration,
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	_ = PublishEvent(ctx, WSRoutingKey, EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload:   payload,
	}, BuildHeaders(info.RequestID, info.TraceID))
	IncWSEvent(name, "ok")
}
