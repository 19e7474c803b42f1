package repositories

import (
	"context"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FriendRepository answers who should hear about a user's online status.
type FriendRepository interface {
	Friends(ctx context.Context, userID string) ([]string, error)
}

// FriendRepo reads the user_friends table.
type FriendRepo struct {
	db *sqlx.DB
}

func NewFriendRepo(db *sqlx.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

func (r *FriendRepo) Friends(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT friend_id FROM user_friends WHERE user_id=$1`, userID)
	return ids, err
}

// MongoFriendRepo reads the friends array of documents in the users collection.
type MongoFriendRepo struct {
	col *mongo.Collection
}

func NewMongoFriendRepo(db *mongo.Database) *MongoFriendRepo {
	return &MongoFriendRepo{col: db.Collection("users")}
}

func (r *MongoFriendRepo) Friends(ctx context.Context, userID string) ([]string, error) {
	var doc struct {
		Friends []string `bson:"friends"`
	}
	opts := options.FindOne().SetProjection(bson.M{"friends": 1})
	err := r.col.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Friends, nil
}

// MemoryFriendRepo is a static friend list for tests and local runs.
type MemoryFriendRepo struct {
	mu      sync.RWMutex
	friends map[string][]string
}

func NewMemoryFriendRepo() *MemoryFriendRepo {
	return &MemoryFriendRepo{friends: make(map[string][]string)}
}

// Befriend records a mutual friendship.
func (r *MemoryFriendRepo) Befriend(a, b string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.friends[a] = append(r.friends[a], b)
	r.friends[b] = append(r.friends[b], a)
}

func (r *MemoryFriendRepo) Friends(ctx context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.friends[userID]...), nil
}
