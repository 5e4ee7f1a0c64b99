// Package redis stores workspace snapshots and drafts in Redis and
// announces writes on a pub/sub channel so other processes can reload.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/zjrosen/diagramdesk/internal/log"
)

const changesChannelSuffix = ":changes"

// Options configures a Store.
type Options struct {
	Addr     string
	DB       int
	Password string
	// Channel receives the key of every Set or Delete. Empty disables publishing.
	Channel string
}

// Store implements persistence.KVStore on a Redis client.
type Store struct {
	client  *redis.Client
	channel string
}

// ChangesChannel returns the pub/sub channel name for prefix.
func ChangesChannel(prefix string) string {
	return prefix + changesChannelSuffix
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Password: opts.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts.Channel), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, channel string) *Store {
	return &Store{client: client, channel: channel}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key without expiry and announces the change.
func (s *Store) Set(ctx context.Context, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, value, 0)
	if s.channel != "" {
		pipe.Publish(ctx, s.channel, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes key and announces the change.
func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if s.channel != "" {
		pipe.Publish(ctx, s.channel, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists keys starting with prefix in lexical order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Changes streams the keys written by any client until ctx is cancelled.
// It returns nil when publishing is disabled.
func (s *Store) Changes(ctx context.Context) <-chan string {
	if s.channel == "" {
		return nil
	}

	sub := s.client.Subscribe(ctx, s.channel)
	out := make(chan string, 16)

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					log.Warn(log.CatDB, "dropping redis change notification", "key", msg.Payload)
				}
			}
		}
	}()

	return out
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
