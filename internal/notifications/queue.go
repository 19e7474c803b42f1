// Package notifications enqueues out-of-band delivery jobs for users who are
// not connected. Delivery itself happens elsewhere.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-gateway/internal/rabbitmq"
)

const (
	TypeMessage = "message"
	TypeCall    = "call"

	// RedisQueueKey is the list consumed by the delivery workers.
	RedisQueueKey = "notifications:queue"

	routingPrefix = "notifications."
)

// ErrUnavailable means the job could not be handed to any durable queue.
var ErrUnavailable = errors.New("notification queue unavailable")

// Job is one notification for one offline user.
type Job struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	Data       any       `json:"data"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

func (j Job) AMQPHeaders() map[string]string {
	return map[string]string{
		"notification_type": j.Type,
		"user_id":           j.UserID,
	}
}

// Queue accepts jobs at least once; it never delivers them.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// AMQPQueue publishes jobs to the topic exchange under notifications.<type>.
// The named durable queue is bound to notifications.# so jobs survive until a
// delivery worker consumes them.
type AMQPQueue struct {
	publisher rabbitmq.Publisher
	err       error
}

// NewAMQPQueue declares and binds queueName. When that fails, for example
// because AMQP is disabled, every Enqueue returns ErrUnavailable.
func NewAMQPQueue(publisher rabbitmq.Publisher, queueName string) *AMQPQueue {
	q := &AMQPQueue{publisher: publisher}
	if err := publisher.DeclareQueue(queueName, routingPrefix+"#"); err != nil {
		log.Printf("notification queue disabled: queue=%s err=%v", queueName, err)
		q.err = err
	}
	return q
}

func (q *AMQPQueue) Enqueue(ctx context.Context, job Job) error {
	if q.err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, q.err)
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return q.publisher.Publish(ctx, routingPrefix+job.Type, job)
}

type listPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisQueue appends jobs to a Redis list.
type RedisQueue struct {
	client listPusher
	key    string
}

func NewRedisQueue(client redis.Cmdable, prefix string) *RedisQueue {
	return &RedisQueue{client: client, key: prefix + RedisQueueKey}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return q.client.RPush(ctx, q.key, body).Err()
}
