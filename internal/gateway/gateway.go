// Package gateway routes websocket events to the chat aggregate and fans the
// results out to connected participants.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"chat-gateway/internal/apperrors"
	"chat-gateway/internal/models"
	"chat-gateway/internal/notifications"
	"chat-gateway/internal/observability"
	"chat-gateway/internal/presence"
	"chat-gateway/internal/repositories"
	"chat-gateway/internal/ws"
)

// Auditor records destructive chat operations.
type Auditor interface {
	ChatAction(ctx context.Context, action, chatID, userID, text string)
}

type Options struct {
	ConflictRetries int
	TypingTimeout   time.Duration
	EventsPerSecond float64
	EventBurst      int
}

// Gateway implements ws.Router and the chat operations used by the REST API.
type Gateway struct {
	store    repositories.ChatRepository
	friends  repositories.FriendRepository
	presence presence.Registry
	queue    notifications.Queue
	hub      *ws.Hub
	typing   *TypingCoordinator
	audit    Auditor
	validate *validator.Validate
	tracer   trace.Tracer
	now      func() time.Time

	retries int
	limit   rate.Limit
	burst   int

	routes map[string]handlerFunc

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the gateway-side state of one connection. userID stays empty
// until chat:join binds the connection.
type session struct {
	conn    ws.Conn
	limiter *rate.Limiter
	userID  string
}

type handlerFunc func(ctx context.Context, s *session, data json.RawMessage) error

func New(
	store repositories.ChatRepository,
	friends repositories.FriendRepository,
	registry presence.Registry,
	queue notifications.Queue,
	hub *ws.Hub,
	audit Auditor,
	opts Options,
) *Gateway {
	if opts.ConflictRetries <= 0 {
		opts.ConflictRetries = 3
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = 5 * time.Second
	}
	if opts.EventsPerSecond <= 0 {
		opts.EventsPerSecond = 20
	}
	if opts.EventBurst <= 0 {
		opts.EventBurst = 40
	}

	g := &Gateway{
		store:    store,
		friends:  friends,
		presence: registry,
		queue:    queue,
		hub:      hub,
		typing:   NewTypingCoordinator(hub, opts.TypingTimeout),
		audit:    audit,
		validate: validator.New(),
		tracer:   otel.Tracer("chat-gateway/gateway"),
		now:      func() time.Time { return time.Now().UTC() },
		retries:  opts.ConflictRetries,
		limit:    rate.Limit(opts.EventsPerSecond),
		burst:    opts.EventBurst,
		sessions: make(map[string]*session),
	}
	g.routes = g.handlers()
	return g
}

func (g *Gateway) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		models.EventChatJoin:           g.handleJoin,
		models.EventChatLeave:          g.handleLeave,
		models.EventMessageSend:        g.handleSend,
		models.EventMessageRead:        g.handleRead,
		models.EventMessageDelivered:   g.handleDelivered,
		models.EventMessageEdit:        g.handleEdit,
		models.EventMessageDelete:      g.handleDelete,
		models.EventMessageReact:       g.handleReact,
		models.EventMessagePin:         g.handlePin,
		models.EventMessageUnpin:       g.handleUnpin,
		models.EventTypingStart:        g.handleTypingStart,
		models.EventTypingStop:         g.handleTypingStop,
		models.EventCallStart:          g.handleCallStart,
		models.EventCallJoin:           g.handleCallJoin,
		models.EventCallLeave:          g.handleCallLeave,
		models.EventCallEnd:            g.handleCallEnd,
		models.EventWebRTCOffer:        g.relaySignal(models.EventWebRTCOffer),
		models.EventWebRTCAnswer:       g.relaySignal(models.EventWebRTCAnswer),
		models.EventWebRTCICECandidate: g.relaySignal(models.EventWebRTCICECandidate),
	}
}

// Connect registers an unbound session for conn.
func (g *Gateway) Connect(ctx context.Context, conn ws.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[conn.ID()] = &session{
		conn:    conn,
		limiter: rate.NewLimiter(g.limit, g.burst),
	}
}

// HandleEvent processes one inbound event. Failures are reported to the
// originating connection only.
func (g *Gateway) HandleEvent(ctx context.Context, conn ws.Conn, evt models.InboundEvent) {
	started := time.Now()
	ctx, span := g.tracer.Start(ctx, "ws."+evt.Type, trace.WithAttributes(
		attribute.String("ws.event", evt.Type),
		attribute.String("ws.conn_id", conn.ID()),
	))
	defer span.End()

	err := g.dispatch(ctx, conn, evt)
	observability.ObserveWSEvent(evt.Type, started)
	if err == nil {
		observability.IncWSEvent(evt.Type, "ok")
		return
	}

	code, message := apperrors.Public(err)
	if code == apperrors.CodeInternal {
		log.Printf("ws event failed: event=%s conn_id=%s user_id=%s err=%v", evt.Type, conn.ID(), conn.UserID(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.IncWSEvent(evt.Type, string(code))
	conn.Send(models.Event{Type: models.EventError, Data: models.ErrorPayload{
		Code:    string(code),
		Message: message,
		Event:   evt.Type,
	}})
}

func (g *Gateway) dispatch(ctx context.Context, conn ws.Conn, evt models.InboundEvent) error {
	s := g.session(conn.ID())
	if s == nil {
		return apperrors.ErrAuthenticationRequired
	}
	if !s.limiter.Allow() {
		return apperrors.ErrRateLimited
	}

	handle, ok := g.routes[evt.Type]
	if !ok {
		return apperrors.New(apperrors.CodeValidation, "unknown event "+evt.Type)
	}
	if evt.Type != models.EventChatJoin && g.boundUser(s) == "" {
		return apperrors.ErrAuthenticationRequired
	}
	return handle(ctx, s, evt.Data)
}

// Disconnect releases everything the connection held. It runs at most once
// per connection.
func (g *Gateway) Disconnect(ctx context.Context, conn ws.Conn) {
	g.mu.Lock()
	s, ok := g.sessions[conn.ID()]
	delete(g.sessions, conn.ID())
	g.mu.Unlock()
	if !ok {
		return
	}
	if userID := g.boundUser(s); userID != "" {
		g.release(ctx, s, userID)
	}
}

func (g *Gateway) session(connID string) *session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions[connID]
}

func (g *Gateway) boundUser(s *session) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return s.userID
}

func (g *Gateway) bind(s *session, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.userID = userID
}

// release undoes a bind: typing indicators, calls, presence and rooms.
// Calls are left only when this connection still owned the user's presence;
// a connection superseded by a newer one must not touch the user's calls.
func (g *Gateway) release(ctx context.Context, s *session, userID string) {
	connID := s.conn.ID()
	g.typing.StopAll(userID, connID)

	removed, err := g.presence.Unbind(ctx, userID, connID)
	if err != nil {
		log.Printf("presence unbind failed: user_id=%s conn_id=%s err=%v", userID, connID, err)
	}
	if removed {
		g.notifyFriends(ctx, userID, models.EventFriendOffline, "offline")
	}
	if removed || !g.superseded(ctx, userID, connID) {
		g.leaveCalls(ctx, userID)
	}
	g.hub.LeaveAll(connID)
}

// superseded reports whether another connection is bound to userID. Lookup
// errors count as not superseded.
func (g *Gateway) superseded(ctx context.Context, userID, connID string) bool {
	current, ok, err := g.presence.ConnectionOf(ctx, userID)
	if err != nil {
		log.Printf("presence lookup failed: user_id=%s err=%v", userID, err)
		return false
	}
	return ok && current != connID
}

var errNothingToSave = errors.New("nothing to save")

var errChatNotFound = apperrors.New(apperrors.CodeNotFound, "chat not found")

// mutate loads the chat, applies fn and writes it back with the loaded
// version, retrying on version conflicts. When userID is set the caller must
// be an active participant. fn returns errNothingToSave to skip the write.
func (g *Gateway) mutate(ctx context.Context, op, chatID, userID string, fn func(c *models.Chat) error) (*models.Chat, error) {
	for attempt := 0; attempt < g.retries; attempt++ {
		c, err := g.load(ctx, chatID, userID)
		if err != nil {
			return nil, err
		}

		if err := fn(c); err != nil {
			if errors.Is(err, errNothingToSave) {
				return c, nil
			}
			return nil, err
		}

		err = g.store.Update(ctx, c)
		switch {
		case err == nil:
			return c, nil
		case errors.Is(err, repositories.ErrVersionConflict):
			observability.IncStoreConflict(op)
			log.Printf("chat write conflict: op=%s chat_id=%s attempt=%d", op, chatID, attempt+1)
			continue
		case errors.Is(err, repositories.ErrChatNotFound):
			return nil, errChatNotFound
		default:
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "update chat")
		}
	}
	return nil, apperrors.Wrap(repositories.ErrVersionConflict, apperrors.CodeInternal, "chat is busy, try again")
}

func (g *Gateway) load(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	c, err := g.store.Get(ctx, chatID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		return nil, errChatNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "load chat")
	}
	if userID != "" && !c.IsParticipant(userID) {
		return nil, errChatNotFound
	}
	return c, nil
}

// decode unmarshals and validates an event payload.
func (g *Gateway) decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeValidation, "malformed payload")
	}
	if err := g.validate.Struct(v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeValidation, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "invalid field " + verrs[0].Field()
	}
	return "invalid payload"
}
