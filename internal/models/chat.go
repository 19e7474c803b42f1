package models

import "time"

// ChatType distinguishes one-to-one chats from multi-member ones.
type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
	ChatTypeChannel ChatType = "channel"
)

// Valid reports whether t is a known chat type.
func (t ChatType) Valid() bool {
	switch t {
	case ChatTypePrivate, ChatTypeGroup, ChatTypeChannel:
		return true
	}
	return false
}

// Role is a participant's role inside a chat.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

const DefaultMaxMembers = 256

// Chat is the aggregate persisted by the chat store. Version is bumped on every
// successful write and is used for optimistic concurrency.
type Chat struct {
	ID             string        `bson:"_id" json:"id"`
	Type           ChatType      `bson:"type" json:"type"`
	Name           string        `bson:"name,omitempty" json:"name,omitempty"`
	Description    string        `bson:"description,omitempty" json:"description,omitempty"`
	Participants   []Participant `bson:"participants" json:"participants"`
	Messages       []Message     `bson:"messages" json:"messages"`
	LastMessage    *Message      `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	LastActivity   time.Time     `bson:"lastActivity" json:"lastActivity"`
	Settings       Settings      `bson:"settings" json:"settings"`
	ActiveCall     *ActiveCall   `bson:"activeCall,omitempty" json:"activeCall,omitempty"`
	PinnedMessages []string      `bson:"pinnedMessages,omitempty" json:"pinnedMessages,omitempty"`
	Deleted        bool          `bson:"deleted" json:"deleted"`
	DeletedAt      *time.Time    `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt      time.Time     `bson:"createdAt" json:"createdAt"`
	Version        int64         `bson:"version" json:"version"`
}

// Participant is a chat member. A participant with LeftAt set is no longer active.
type Participant struct {
	UserID      string     `bson:"userId" json:"userId"`
	Role        Role       `bson:"role" json:"role"`
	JoinedAt    time.Time  `bson:"joinedAt" json:"joinedAt"`
	LeftAt      *time.Time `bson:"leftAt,omitempty" json:"leftAt,omitempty"`
	Muted       bool       `bson:"muted" json:"muted"`
	MutedUntil  *time.Time `bson:"mutedUntil,omitempty" json:"mutedUntil,omitempty"`
	LastRead    string     `bson:"lastRead,omitempty" json:"lastRead,omitempty"`
	UnreadCount int        `bson:"unreadCount" json:"unreadCount"`
}

// Active reports whether the participant has not left the chat.
func (p Participant) Active() bool { return p.LeftAt == nil }

// IsAdmin reports whether the participant may administer the chat.
func (p Participant) IsAdmin() bool { return p.Role == RoleAdmin || p.Role == RoleOwner }

// Settings holds per-chat policy.
type Settings struct {
	Encryption            bool                 `bson:"encryption" json:"encryption"`
	DisappearingMessages  DisappearingMessages `bson:"disappearingMessages" json:"disappearingMessages"`
	OnlyAdminsCanSend     bool                 `bson:"onlyAdminsCanSend" json:"onlyAdminsCanSend"`
	OnlyAdminsCanEditInfo bool                 `bson:"onlyAdminsCanEditInfo" json:"onlyAdminsCanEditInfo"`
	MaxMembers            int                  `bson:"maxMembers" json:"maxMembers"`
}

// DisappearingMessages configures message expiry. Duration is in seconds.
type DisappearingMessages struct {
	Enabled  bool  `bson:"enabled" json:"enabled"`
	Duration int64 `bson:"duration,omitempty" json:"duration,omitempty"`
}

// DefaultSettings mirrors the defaults applied to newly created chats.
func DefaultSettings() Settings {
	return Settings{OnlyAdminsCanEditInfo: true, MaxMembers: DefaultMaxMembers}
}

// CallType is the media type of a call.
type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

// ActiveCall exists only while at least one call participant has not left.
type ActiveCall struct {
	ID           string            `bson:"id" json:"id"`
	Type         CallType          `bson:"type" json:"type"`
	StartedBy    string            `bson:"startedBy" json:"startedBy"`
	StartedAt    time.Time         `bson:"startedAt" json:"startedAt"`
	Participants []CallParticipant `bson:"participants" json:"participants"`
}

// CallParticipant tracks one user's presence in a call.
type CallParticipant struct {
	UserID   string     `bson:"userId" json:"userId"`
	JoinedAt time.Time  `bson:"joinedAt" json:"joinedAt"`
	LeftAt   *time.Time `bson:"leftAt,omitempty" json:"leftAt,omitempty"`
}

// ActiveParticipants returns the call participants that have not left.
func (c *ActiveCall) ActiveParticipants() []CallParticipant {
	if c == nil {
		return nil
	}
	out := make([]CallParticipant, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.LeftAt == nil {
			out = append(out, p)
		}
	}
	return out
}

// HasActiveParticipant reports whether userID is in the call and has not left.
func (c *ActiveCall) HasActiveParticipant(userID string) bool {
	for _, p := range c.ActiveParticipants() {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// Participant returns the participant entry for userID, including ones that left.
func (c *Chat) Participant(userID string) *Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// IsParticipant reports whether userID is an active participant.
func (c *Chat) IsParticipant(userID string) bool {
	p := c.Participant(userID)
	return p != nil && p.Active()
}

// IsAdmin reports whether userID is an active admin or owner.
func (c *Chat) IsAdmin(userID string) bool {
	p := c.Participant(userID)
	return p != nil && p.Active() && p.IsAdmin()
}

// ActiveParticipantIDs lists the user ids of active participants.
func (c *Chat) ActiveParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.Active() {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

// ChatSummary is the per-user view returned by chat listings.
type ChatSummary struct {
	ChatID       string        `json:"chat_id"`
	Type         ChatType      `json:"type"`
	Name         string        `json:"name,omitempty"`
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"last_message,omitempty"`
	LastActivity time.Time     `json:"last_activity"`
	UnreadCount  int           `json:"unread_count"`
	ActiveCall   *ActiveCall   `json:"active_call,omitempty"`
}
