package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix namespaces the per-user Redis channels.
const DefaultChannelPrefix = "ticketflow:updates:"

// RedisHub is a Hub backed by Redis pub/sub so that updates reach
// subscribers in other processes. Each user has its own channel.
type RedisHub struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRedisHub wraps an existing client.
func NewRedisHub(client redis.UniversalClient, logger *slog.Logger) *RedisHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisHub{
		client: client,
		prefix: DefaultChannelPrefix,
		logger: logger.With("module", "redis_hub"),
	}
}

// DialRedisHub parses a redis:// URL, connects and pings the server.
func DialRedisHub(ctx context.Context, url string, logger *slog.Logger) (*RedisHub, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisHub(client, logger), nil
}

// Close closes the underlying client.
func (h *RedisHub) Close() error { return h.client.Close() }

func (h *RedisHub) channel(userID string) string { return h.prefix + userID }

// Publish sends the update on the user's channel.
func (h *RedisHub) Publish(ctx context.Context, update Update) error {
	payload, err := encodeUpdate(update)
	if err != nil {
		return err
	}
	if err := h.client.Publish(ctx, h.channel(update.UserID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe listens on one user's channel, or on every user channel when the
// filter has no user.
func (h *RedisHub) Subscribe(ctx context.Context, filter UpdateFilter) (<-chan Update, func(), error) {
	var ps *redis.PubSub
	if filter.UserID != "" {
		ps = h.client.Subscribe(ctx, h.channel(filter.UserID))
	} else {
		ps = h.client.PSubscribe(ctx, h.prefix+"*")
	}
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Update, defaultChannelBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				u, err := decodeUpdate(msg.Payload)
				if err != nil {
					h.logger.Warn("dropping malformed update", "channel", msg.Channel, "error", err)
					continue
				}
				if !matchFilter(filter, u) {
					continue
				}
				select {
				case out <- u:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, cancel, nil
}

func encodeUpdate(u Update) ([]byte, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode update: %w", err)
	}
	return b, nil
}

func decodeUpdate(payload string) (Update, error) {
	var u Update
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return Update{}, fmt.Errorf("decode update: %w", err)
	}
	return u, nil
}
