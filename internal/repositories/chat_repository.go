package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-gateway/internal/models"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrVersionConflict = errors.New("chat version conflict")
)

// ChatRepository persists chat aggregates with optimistic concurrency.
// Soft-deleted chats are reported as ErrChatNotFound.
type ChatRepository interface {
	Create(ctx context.Context, chat *models.Chat) error
	Get(ctx context.Context, chatID string) (*models.Chat, error)
	// Update writes chat if the stored version still equals chat.Version and
	// bumps chat.Version on success. A stale version yields ErrVersionConflict.
	Update(ctx context.Context, chat *models.Chat) error
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Chat, error)
	ListIDsForUser(ctx context.Context, userID string) ([]string, error)
	ListWithActiveCall(ctx context.Context, userID string) ([]models.Chat, error)
}

// ChatRepo stores each chat as a JSONB document next to the columns used for
// lookups and the version check.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

type chatRow struct {
	Doc     []byte `db:"doc"`
	Version int64  `db:"version"`
}

func (r chatRow) decode() (*models.Chat, error) {
	var chat models.Chat
	if err := json.Unmarshal(r.Doc, &chat); err != nil {
		return nil, fmt.Errorf("decode chat: %w", err)
	}
	chat.Version = r.Version
	return &chat, nil
}

// Create inserts a new chat at version 1.
func (r *ChatRepo) Create(ctx context.Context, chat *models.Chat) error {
	chat.Version = 1
	doc, err := json.Marshal(chat)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO chats (id, doc, version, deleted, last_activity, participant_ids, call_participant_ids, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		chat.ID, doc, chat.Version, chat.Deleted, chat.LastActivity,
		pq.Array(chat.ActiveParticipantIDs()), pq.Array(callParticipantIDs(chat)), chat.CreatedAt)
	return err
}

// Get fetches a live chat by id.
func (r *ChatRepo) Get(ctx context.Context, chatID string) (*models.Chat, error) {
	var row chatRow
	err := r.db.GetContext(ctx, &row, `SELECT doc, version FROM chats WHERE id=$1 AND deleted=FALSE`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.decode()
}

// Update performs the compare-and-swap write on the version column.
func (r *ChatRepo) Update(ctx context.Context, chat *models.Chat) error {
	next := *chat
	next.Version = chat.Version + 1
	doc, err := json.Marshal(&next)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `UPDATE chats
        SET doc=$1, version=$2, deleted=$3, last_activity=$4, participant_ids=$5, call_participant_ids=$6
        WHERE id=$7 AND version=$8 AND deleted=FALSE`,
		doc, next.Version, chat.Deleted, chat.LastActivity,
		pq.Array(chat.ActiveParticipantIDs()), pq.Array(callParticipantIDs(chat)),
		chat.ID, chat.Version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND deleted=FALSE)`, chat.ID); err != nil {
			return err
		}
		if !exists {
			return ErrChatNotFound
		}
		return ErrVersionConflict
	}
	chat.Version = next.Version
	return nil
}

// ListForUser returns the user's live chats, most recently active first.
func (r *ChatRepo) ListForUser(ctx context.Context, userID string, limit int) ([]models.Chat, error) {
	var rows []chatRow
	err := r.db.SelectContext(ctx, &rows, `SELECT doc, version FROM chats
        WHERE deleted=FALSE AND $1 = ANY(participant_ids)
        ORDER BY last_activity DESC
        LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

// ListIDsForUser returns the ids of every live chat the user is active in.
func (r *ChatRepo) ListIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM chats WHERE deleted=FALSE AND $1 = ANY(participant_ids)`, userID)
	return ids, err
}

// ListWithActiveCall returns the chats whose active call includes userID.
func (r *ChatRepo) ListWithActiveCall(ctx context.Context, userID string) ([]models.Chat, error) {
	var rows []chatRow
	err := r.db.SelectContext(ctx, &rows, `SELECT doc, version FROM chats WHERE deleted=FALSE AND $1 = ANY(call_participant_ids)`, userID)
	if err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

func decodeRows(rows []chatRow) ([]models.Chat, error) {
	chats := make([]models.Chat, 0, len(rows))
	for _, row := range rows {
		chat, err := row.decode()
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	return chats, nil
}

func callParticipantIDs(chat *models.Chat) []string {
	ids := []string{}
	for _, p := range chat.ActiveCall.ActiveParticipants() {
		ids = append(ids, p.UserID)
	}
	return ids
}
