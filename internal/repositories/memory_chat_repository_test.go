package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/models"
)

func seedChat(t *testing.T, repo *MemoryChatRepo, id string, activity time.Time, users ...string) *models.Chat {
	t.Helper()
	chat := &models.Chat{ID: id, Type: models.ChatTypeGroup, LastActivity: activity, Settings: models.DefaultSettings()}
	for _, u := range users {
		chat.Participants = append(chat.Participants, models.Participant{UserID: u, Role: models.RoleMember})
	}
	require.NoError(t, repo.Create(context.Background(), chat))
	return chat
}

func TestMemoryChatRepoVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryChatRepo()
	seedChat(t, repo, "c1", time.Now(), "a", "b")

	first, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Version)

	first.Name = "first"
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Name = "second"
	assert.ErrorIs(t, repo.Update(ctx, second), ErrVersionConflict)

	stored, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Name)
	assert.Equal(t, int64(2), stored.Version)
}

func TestMemoryChatRepoReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryChatRepo()
	seedChat(t, repo, "c1", time.Now(), "a")

	chat, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	chat.Participants[0].UnreadCount = 99

	again, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Participants[0].UnreadCount)
}

func TestMemoryChatRepoSoftDeletedIsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryChatRepo()
	seedChat(t, repo, "c1", time.Now(), "a")

	chat, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	chat.Deleted = true
	require.NoError(t, repo.Update(ctx, chat))

	_, err = repo.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.ErrorIs(t, repo.Update(ctx, chat), ErrChatNotFound)

	ids, err := repo.ListIDsForUser(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryChatRepoListForUser(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryChatRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedChat(t, repo, "old", base, "a", "b")
	seedChat(t, repo, "new", base.Add(time.Hour), "a")
	seedChat(t, repo, "other", base.Add(2*time.Hour), "b")

	chats, err := repo.ListForUser(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "new", chats[0].ID)
	assert.Equal(t, "old", chats[1].ID)

	chats, err = repo.ListForUser(ctx, "a", 1)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestMemoryChatRepoListWithActiveCall(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryChatRepo()
	left := time.Now()
	chat := seedChat(t, repo, "c1", time.Now(), "a", "b")
	chat.ActiveCall = &models.ActiveCall{ID: "call_1", Participants: []models.CallParticipant{
		{UserID: "a"},
		{UserID: "b", LeftAt: &left},
	}}
	require.NoError(t, repo.Update(ctx, chat))

	chats, err := repo.ListWithActiveCall(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	chats, err = repo.ListWithActiveCall(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestMemoryChatRepoGetMissing(t *testing.T) {
	_, err := NewMemoryChatRepo().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrChatNotFound)
}
