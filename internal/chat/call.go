package chat

import (
	"time"

	"github.com/google/uuid"

	"chat-gateway/internal/models"
)

// CallLeave describes the outcome of a user leaving a call.
type CallLeave struct {
	CallID string
	Left   bool
	Ended  bool
}

// StartCall opens a call with userID as its first participant.
func StartCall(c *models.Chat, userID string, callType models.CallType, now time.Time) (*models.ActiveCall, error) {
	if !c.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if callType != models.CallTypeVoice && callType != models.CallTypeVideo {
		return nil, ErrInvalidCallType
	}
	if len(c.ActiveCall.ActiveParticipants()) > 0 {
		return nil, ErrCallInProgress
	}

	c.ActiveCall = &models.ActiveCall{
		ID:        "call_" + uuid.NewString(),
		Type:      callType,
		StartedBy: userID,
		StartedAt: now,
		Participants: []models.CallParticipant{
			{UserID: userID, JoinedAt: now},
		},
	}
	c.LastActivity = now
	return c.ActiveCall, nil
}

// JoinCall adds userID to the active call. Joining twice is a no-op; a user
// who left earlier is re-activated.
func JoinCall(c *models.Chat, userID, callID string, now time.Time) (bool, error) {
	if !c.IsParticipant(userID) {
		return false, ErrNotParticipant
	}
	call := c.ActiveCall
	if call == nil || call.ID != callID {
		return false, ErrCallNotFound
	}

	for i := range call.Participants {
		p := &call.Participants[i]
		if p.UserID != userID {
			continue
		}
		if p.LeftAt == nil {
			return false, nil
		}
		p.LeftAt = nil
		p.JoinedAt = now
		return true, nil
	}
	call.Participants = append(call.Participants, models.CallParticipant{UserID: userID, JoinedAt: now})
	return true, nil
}

// LeaveCall marks userID as gone from the call and clears the call once no
// participant remains. Chat membership is not checked so that cleanup can run
// for users that already left the chat.
func LeaveCall(c *models.Chat, userID, callID string, now time.Time) (CallLeave, error) {
	call := c.ActiveCall
	if call == nil || call.ID != callID {
		return CallLeave{}, ErrCallNotFound
	}

	found := false
	for i := range call.Participants {
		p := &call.Participants[i]
		if p.UserID == userID && p.LeftAt == nil {
			left := now
			p.LeftAt = &left
			found = true
		}
	}
	if !found {
		return CallLeave{}, ErrNotInCall
	}

	out := CallLeave{CallID: callID, Left: true}
	if len(call.ActiveParticipants()) == 0 {
		c.ActiveCall = nil
		out.Ended = true
	}
	return out, nil
}

// EndCall terminates the call for everyone. Only the caller or a chat admin
// may end it.
func EndCall(c *models.Chat, userID, callID string) error {
	if !c.IsParticipant(userID) {
		return ErrNotParticipant
	}
	call := c.ActiveCall
	if call == nil || call.ID != callID {
		return ErrCallNotFound
	}
	if call.StartedBy != userID && !c.IsAdmin(userID) {
		return ErrCallEndNotPermitted
	}
	c.ActiveCall = nil
	return nil
}
