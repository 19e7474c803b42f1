package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/models"
	"chat-gateway/internal/notifications"
	"chat-gateway/internal/presence"
	"chat-gateway/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) Create(ctx context.Context, c *models.Chat) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *ChatRepositoryMock) Get(ctx context.Context, chatID string) (*models.Chat, error) {
	args := m.Called(ctx, chatID)
	var c *models.Chat
	if val := args.Get(0); val != nil {
		c = val.(*models.Chat)
	}
	return c, args.Error(1)
}

func (m *ChatRepositoryMock) Update(ctx context.Context, c *models.Chat) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ListForUser(ctx context.Context, userID string, limit int) ([]models.Chat, error) {
	args := m.Called(ctx, userID, limit)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

func (m *ChatRepositoryMock) ListIDsForUser(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *ChatRepositoryMock) ListWithActiveCall(ctx context.Context, userID string) ([]models.Chat, error) {
	args := m.Called(ctx, userID)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

type FriendRepositoryMock struct {
	mock.Mock
}

func (m *FriendRepositoryMock) Friends(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

type QueueMock struct {
	mock.Mock
}

func (m *QueueMock) Enqueue(ctx context.Context, job notifications.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

type RegistryMock struct {
	mock.Mock
}

func (m *RegistryMock) Bind(ctx context.Context, userID, connID string) error {
	args := m.Called(ctx, userID, connID)
	return args.Error(0)
}

func (m *RegistryMock) ConnectionOf(ctx context.Context, userID string) (string, bool, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *RegistryMock) Unbind(ctx context.Context, userID, connID string) (bool, error) {
	args := m.Called(ctx, userID, connID)
	return args.Bool(0), args.Error(1)
}

func (m *RegistryMock) IsOnline(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type ChatServiceMock struct {
	mock.Mock
}

func (m *ChatServiceMock) CreateChat(ctx context.Context, userID string, params chat.NewChatParams) (*models.Chat, error) {
	args := m.Called(ctx, userID, params)
	var c *models.Chat
	if val := args.Get(0); val != nil {
		c = val.(*models.Chat)
	}
	return c, args.Error(1)
}

func (m *ChatServiceMock) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatServiceMock) Messages(ctx context.Context, userID, chatID, before string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, userID, chatID, before, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *ChatServiceMock) AddParticipant(ctx context.Context, actorID, chatID, userID string, role models.Role) error {
	args := m.Called(ctx, actorID, chatID, userID, role)
	return args.Error(0)
}

func (m *ChatServiceMock) RemoveParticipant(ctx context.Context, actorID, chatID, userID string) error {
	args := m.Called(ctx, actorID, chatID, userID)
	return args.Error(0)
}

func (m *ChatServiceMock) DeleteChat(ctx context.Context, userID, chatID string) error {
	args := m.Called(ctx, userID, chatID)
	return args.Error(0)
}

func (m *ChatServiceMock) PresenceOf(ctx context.Context, userID string) (string, bool, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Bool(1), args.Error(2)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.FriendRepository = (*FriendRepositoryMock)(nil)
var _ notifications.Queue = (*QueueMock)(nil)
var _ presence.Registry = (*RegistryMock)(nil)
