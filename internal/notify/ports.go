package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// LogPort writes each message to a logger instead of delivering it.
// Used when no queue is configured.
type LogPort struct {
	Logger *slog.Logger
}

// Send logs the message envelope. Bodies are omitted.
func (p LogPort) Send(ctx context.Context, msg Message) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"to", msg.To,
		"subject", msg.Subject,
		"tag", msg.Tag,
	)
	return nil
}

// listPusher is the slice of the Redis client RedisPort needs.
type listPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisPort pushes each message as JSON onto a Redis list. A separate mail
// worker pops the list and performs delivery.
type RedisPort struct {
	client listPusher
	key    string
}

// NewRedisPort creates a port pushing onto key.
func NewRedisPort(client listPusher, key string) *RedisPort {
	return &RedisPort{client: client, key: key}
}

// DialRedis connects to the Redis server at url and verifies the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Send encodes msg and pushes it onto the list.
func (p *RedisPort) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.client.LPush(ctx, p.key, data).Err(); err != nil {
		return fmt.Errorf("push notification to %s: %w", p.key, err)
	}
	return nil
}

// Recorder keeps every message in memory. Used by tests and the scenario
// harness to assert what would have been sent.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Send records msg.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

// Notify records msg synchronously. It lets a Recorder stand in for a
// Dispatcher where ordering must be deterministic.
func (r *Recorder) Notify(msg Message) bool {
	_ = r.Send(context.Background(), msg)
	return true
}

// Messages returns a copy of the recorded messages in send order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
