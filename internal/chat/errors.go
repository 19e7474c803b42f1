package chat

import "chat-gateway/internal/apperrors"

var (
	ErrNotParticipant      = apperrors.New(apperrors.CodeNotParticipant, "user is not a chat participant")
	ErrMessageNotFound     = apperrors.New(apperrors.CodeNotFound, "message not found")
	ErrNotSender           = apperrors.New(apperrors.CodePermissionDenied, "only the sender can change this message")
	ErrAdminOnly           = apperrors.New(apperrors.CodePermissionDenied, "only admins can do this")
	ErrOwnerOnly           = apperrors.New(apperrors.CodePermissionDenied, "only the owner can do this")
	ErrOwnerRemoval        = apperrors.New(apperrors.CodePermissionDenied, "the owner cannot be removed")
	ErrMessageDeleted      = apperrors.New(apperrors.CodeValidation, "message was deleted")
	ErrEmptyContent        = apperrors.New(apperrors.CodeValidation, "content is required")
	ErrInvalidMessageType  = apperrors.New(apperrors.CodeValidation, "invalid message type")
	ErrInvalidReply        = apperrors.New(apperrors.CodeValidation, "reply target does not exist")
	ErrInvalidChatType     = apperrors.New(apperrors.CodeValidation, "invalid chat type")
	ErrInvalidMembers      = apperrors.New(apperrors.CodeValidation, "a private chat needs exactly two distinct participants")
	ErrInvalidRole         = apperrors.New(apperrors.CodeValidation, "invalid role")
	ErrPrivateChat         = apperrors.New(apperrors.CodeValidation, "private chat participants cannot change")
	ErrChatFull            = apperrors.New(apperrors.CodeValidation, "chat has reached its member limit")
	ErrInvalidCallType     = apperrors.New(apperrors.CodeValidation, "call type must be voice or video")
	ErrCallInProgress      = apperrors.New(apperrors.CodeConflict, "a call is already active in this chat")
	ErrCallNotFound        = apperrors.New(apperrors.CodeNotFound, "call not found")
	ErrNotInCall           = apperrors.New(apperrors.CodeValidation, "user is not in the call")
	ErrCallEndNotPermitted = apperrors.New(apperrors.CodePermissionDenied, "only the caller or an admin can end the call")
)
