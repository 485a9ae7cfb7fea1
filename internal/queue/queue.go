package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rollbook/internal/metrics"
)

// Message types published by the API.
const (
	TypeAttendanceSaved = "attendance.saved"
	TypeRosterChanged   = "roster.changed"
)

// Metric labels for entries that never became a Message.
const (
	UnknownType        = "unknown"
	OutcomeUndecodable = "undecodable"
)

// DefaultKey is the Redis list carrying change events.
const DefaultKey = "rollbook:changes"

// Message represents work to be processed.
type Message struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Change is the body of attendance and roster events.
type Change struct {
	Owner          string `json:"owner"`
	Date           string `json:"date,omitempty"`
	RegisterNumber string `json:"register_number,omitempty"`
}

// NewChange builds a message of the given type carrying c.
func NewChange(typ string, c Change) (Message, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typ, Body: body}, nil
}

// Change decodes the message body.
func (m Message) Change() (Change, error) {
	var c Change
	if err := json.Unmarshal(m.Body, &c); err != nil {
		return Change{}, fmt.Errorf("decode %s message: %w", m.Type, err)
	}
	if c.Owner == "" {
		return Change{}, fmt.Errorf("%s message without owner", m.Type)
	}
	return c, nil
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a channel-backed queue for single-process deployments and tests.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers; it closes when ctx is done.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
	log    *zap.Logger
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key, log: zap.NewNop()}
}

// WithLogger sets the logger used for dropped entries.
func (q *RedisQueue) WithLogger(log *zap.Logger) *RedisQueue {
	if log != nil {
		q.log = log
	}
	return q
}

// Publish enqueues a message.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Consume streams messages using BRPOP. Undecodable entries are logged,
// counted under the "undecodable" outcome and dropped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					// Back off on connection errors instead of spinning.
					select {
					case <-time.After(time.Second):
					case <-ctx.Done():
						return
					}
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			var msg Message
			if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
				metrics.QueueMessages.WithLabelValues(UnknownType, OutcomeUndecodable).Inc()
				q.log.Warn("dropping undecodable queue entry", zap.String("queue", q.key), zap.Int("bytes", len(res[1])), zap.Error(err))
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// HandlerFunc processes one message.
type HandlerFunc func(ctx context.Context, msg Message) error

// Process consumes q until ctx is done, passing every message to h. Handler
// errors are logged and the message is dropped.
func Process(ctx context.Context, q Queue, h HandlerFunc, log *zap.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for msg := range messages {
		if err := h(ctx, msg); err != nil {
			metrics.QueueMessages.WithLabelValues(msg.Type, metrics.Outcome(err)).Inc()
			log.Warn("message handling failed", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		metrics.QueueMessages.WithLabelValues(msg.Type, metrics.Outcome(nil)).Inc()
		log.Debug("message handled", zap.String("type", msg.Type))
	}
	return nil
}
