package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeList struct {
	key    string
	values []interface{}
	err    error
}

func (f *fakeList) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.key = key
	f.values = append(f.values, values...)
	return redis.NewIntResult(int64(len(f.values)), f.err)
}

func TestRedisQueueEnqueue(t *testing.T) {
	list := &fakeList{}
	q := &RedisQueue{client: list, key: "gw:" + RedisQueueKey}

	err := q.Enqueue(context.Background(), Job{Type: TypeMessage, UserID: "bob", Data: map[string]string{"chatId": "c1"}})
	require.NoError(t, err)

	assert.Equal(t, "gw:notifications:queue", list.key)
	require.Len(t, list.values, 1)

	var job Job
	require.NoError(t, json.Unmarshal(list.values[0].([]byte), &job))
	assert.Equal(t, "bob", job.UserID)
	assert.Equal(t, TypeMessage, job.Type)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestRedisQueueError(t *testing.T) {
	list := &fakeList{err: errors.New("connection refused")}
	q := &RedisQueue{client: list, key: RedisQueueKey}

	assert.Error(t, q.Enqueue(context.Background(), Job{Type: TypeCall, UserID: "bob"}))
}

func TestJobHeaders(t *testing.T) {
	headers := Job{Type: TypeCall, UserID: "carol"}.AMQPHeaders()
	assert.Equal(t, "call", headers["notification_type"])
	assert.Equal(t, "carol", headers["user_id"])
}

func TestRedisQueueAppendsInOrder(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := NewRedisQueue(client, "gw:")
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Job{Type: TypeMessage, UserID: "bob"}))
	require.NoError(t, q.Enqueue(ctx, Job{Type: TypeCall, UserID: "carol"}))

	items, err := srv.List("gw:" + RedisQueueKey)
	require.NoError(t, err)
	require.Len(t, items, 2)

	var first, second Job
	require.NoError(t, json.Unmarshal([]byte(items[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(items[1]), &second))
	assert.Equal(t, "bob", first.UserID)
	assert.Equal(t, TypeCall, second.Type)
	assert.Equal(t, "carol", second.UserID)
}
