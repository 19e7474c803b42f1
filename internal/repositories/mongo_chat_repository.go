package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chat-gateway/internal/models"
)

const chatsCollection = "chats"

// MongoChatRepo keeps chats as documents; the version field guards replacements.
type MongoChatRepo struct {
	col *mongo.Collection
}

// NewMongoChatRepo constructs a MongoChatRepo on db.
func NewMongoChatRepo(db *mongo.Database) *MongoChatRepo {
	return &MongoChatRepo{col: db.Collection(chatsCollection)}
}

// EnsureIndexes creates the indexes used by membership and call lookups.
func (r *MongoChatRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "participants.userId", Value: 1},
				{Key: "lastActivity", Value: -1},
			},
			Options: options.Index().SetName("idx_participant_activity"),
		},
		{
			Keys:    bson.D{{Key: "activeCall.participants.userId", Value: 1}},
			Options: options.Index().SetName("idx_call_participant").SetSparse(true),
		},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *MongoChatRepo) Create(ctx context.Context, chat *models.Chat) error {
	chat.Version = 1
	_, err := r.col.InsertOne(ctx, chat)
	return err
}

func (r *MongoChatRepo) Get(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	err := r.col.FindOne(ctx, bson.M{"_id": chatID, "deleted": false}).Decode(&chat)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *MongoChatRepo) Update(ctx context.Context, chat *models.Chat) error {
	next := *chat
	next.Version = chat.Version + 1

	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": chat.ID, "version": chat.Version, "deleted": false}, &next)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.col.CountDocuments(ctx, bson.M{"_id": chat.ID, "deleted": false})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrChatNotFound
		}
		return ErrVersionConflict
	}
	chat.Version = next.Version
	return nil
}

func (r *MongoChatRepo) ListForUser(ctx context.Context, userID string, limit int) ([]models.Chat, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "lastActivity", Value: -1}}).
		SetLimit(int64(limit))
	return r.find(ctx, activeMemberFilter(userID), opts)
}

func (r *MongoChatRepo) ListIDsForUser(ctx context.Context, userID string) ([]string, error) {
	cur, err := r.col.Find(ctx, activeMemberFilter(userID), options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

func (r *MongoChatRepo) ListWithActiveCall(ctx context.Context, userID string) ([]models.Chat, error) {
	filter := bson.M{
		"deleted": false,
		"activeCall.participants": bson.M{"$elemMatch": bson.M{
			"userId": userID,
			"leftAt": bson.M{"$exists": false},
		}},
	}
	return r.find(ctx, filter, options.Find())
}

func (r *MongoChatRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Chat, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	chats := []models.Chat{}
	if err := cur.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func activeMemberFilter(userID string) bson.M {
	return bson.M{
		"deleted": false,
		"participants": bson.M{"$elemMatch": bson.M{
			"userId": userID,
			"leftAt": bson.M{"$exists": false},
		}},
	}
}
