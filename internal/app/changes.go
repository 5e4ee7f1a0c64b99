package app

import (
	"context"
	"errors"
	"sync"

	"github.com/zjrosen/diagramdesk/internal/infrastructure/redis"
	"github.com/zjrosen/diagramdesk/internal/log"
)

// redisChanges turns the redis change feed into workspace reload signals.
// Only writes of the snapshot key are forwarded; draft writes are not.
type redisChanges struct {
	store *redis.Store
	key   string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newRedisChanges(store *redis.Store, key string) *redisChanges {
	return &redisChanges{store: store, key: key}
}

func (r *redisChanges) Start() (<-chan struct{}, error) {
	ctx, cancel := context.WithCancel(context.Background())
	keys := r.store.Changes(ctx)
	if keys == nil {
		cancel()
		return nil, errors.New("redis change publishing is disabled")
	}

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for key := range keys {
			if key != r.key {
				continue
			}
			log.Debug(log.CatWatcher, "snapshot written by another client", "key", key)
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}

func (r *redisChanges) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	return nil
}
