package presence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const (
	userSocketsKey = "user:sockets"
	socketUsersKey = "socket:users"
	onlineUsersKey = "users:online"
)

var bindScript = redis.NewScript(`
local prev = redis.call('HGET', KEYS[1], ARGV[1])
if prev and prev ~= ARGV[2] then
  redis.call('HDEL', KEYS[2], prev)
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[2], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

var unbindScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur ~= ARGV[2] then
  return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[2])
redis.call('SREM', KEYS[3], ARGV[1])
return 1
`)

// RedisRegistry keeps presence in Redis so every gateway instance sees the
// same bindings. Bind and Unbind run as scripts and are atomic on the server.
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRegistry builds a registry whose keys are namespaced by prefix.
func NewRedisRegistry(client redis.UniversalClient, prefix string) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: prefix}
}

func (r *RedisRegistry) keys() []string {
	return []string{r.prefix + userSocketsKey, r.prefix + socketUsersKey, r.prefix + onlineUsersKey}
}

func (r *RedisRegistry) Bind(ctx context.Context, userID, connID string) error {
	return bindScript.Run(ctx, r.client, r.keys(), userID, connID).Err()
}

func (r *RedisRegistry) ConnectionOf(ctx context.Context, userID string) (string, bool, error) {
	connID, err := r.client.HGet(ctx, r.prefix+userSocketsKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return connID, true, nil
}

func (r *RedisRegistry) Unbind(ctx context.Context, userID, connID string) (bool, error) {
	removed, err := unbindScript.Run(ctx, r.client, r.keys(), userID, connID).Int()
	if err != nil {
		return false, err
	}
	return removed == 1, nil
}

func (r *RedisRegistry) IsOnline(ctx context.Context, userID string) (bool, error) {
	return r.client.SIsMember(ctx, r.prefix+onlineUsersKey, userID).Result()
}
