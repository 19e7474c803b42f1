package models

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventChatJoin           = "chat:join"
	EventChatLeave          = "chat:leave"
	EventMessageSend        = "message:send"
	EventMessageRead        = "message:read"
	EventMessageDelivered   = "message:delivered"
	EventMessageEdit        = "message:edit"
	EventMessageDelete      = "message:delete"
	EventMessageReact       = "message:react"
	EventMessagePin         = "message:pin"
	EventMessageUnpin       = "message:unpin"
	EventTypingStart        = "typing:start"
	EventTypingStop         = "typing:stop"
	EventCallStart          = "call:start"
	EventCallJoin           = "call:join"
	EventCallLeave          = "call:leave"
	EventCallEnd            = "call:end"
	EventWebRTCOffer        = "webrtc:offer"
	EventWebRTCAnswer       = "webrtc:answer"
	EventWebRTCICECandidate = "webrtc:ice-candidate"
)

// Outbound event names.
const (
	EventChatJoined         = "chat:joined"
	EventChatLeft           = "chat:left"
	EventMessageNew         = "message:new"
	EventMessageEdited      = "message:edited"
	EventMessageDeleted     = "message:deleted"
	EventMessageReaction    = "message:reaction"
	EventMessagePinned      = "message:pinned"
	EventMessageUnpinned    = "message:unpinned"
	EventCallIncoming       = "call:incoming"
	EventCallStarted        = "call:started"
	EventCallUserJoined     = "call:user-joined"
	EventCallUserLeft       = "call:user-left"
	EventCallEnded          = "call:ended"
	EventFriendOnline       = "friend:online"
	EventFriendOffline      = "friend:offline"
	EventParticipantAdded   = "chat:participant-added"
	EventParticipantRemoved = "chat:participant-removed"
	EventChatDeleted        = "chat:deleted"
	EventError              = "error"
)

// InboundEvent is a frame received from a client.
type InboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is a frame sent to one or more clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type JoinedPayload struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
}

type MessageNewPayload struct {
	ChatID  string  `json:"chatId"`
	Message Message `json:"message"`
}

// ReceiptPayload is sent to a message's sender for message:read and message:delivered.
type ReceiptPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

type MessageEditedPayload struct {
	ChatID     string    `json:"chatId"`
	MessageID  string    `json:"messageId"`
	NewContent string    `json:"newContent"`
	EditedAt   time.Time `json:"editedAt"`
}

type MessageRefPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId,omitempty"`
}

type ReactionPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

type CallIncomingPayload struct {
	ChatID   string   `json:"chatId"`
	CallID   string   `json:"callId"`
	Type     CallType `json:"type"`
	CallerID string   `json:"callerId"`
}

type CallPayload struct {
	ChatID string `json:"chatId"`
	CallID string `json:"callId"`
	UserID string `json:"userId,omitempty"`
}

// SignalPayload relays an opaque WebRTC offer, answer or ICE candidate.
type SignalPayload struct {
	ChatID  string          `json:"chatId"`
	UserID  string          `json:"userId"`
	Payload json.RawMessage `json:"payload"`
}

type FriendStatusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type ParticipantPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
	Role   Role   `json:"role,omitempty"`
}

type ChatRefPayload struct {
	ChatID string `json:"chatId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
