package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zjrosen/diagramdesk/internal/contenthash"
	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/log"
)

// ErrNoSnapshot is returned by LoadState when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no workspace snapshot stored")

// DefaultStateKey is the key the workspace snapshot is stored under.
const DefaultStateKey = "diagramdesk:workspace:state"

// KVStore is a string key/value store scoped to the local machine.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// KeyLister is implemented by stores that can enumerate their keys.
type KeyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ErrKeysUnsupported is returned by ListDrafts when the store cannot list keys.
var ErrKeysUnsupported = errors.New("store cannot list keys")

// Gateway reads and writes workspace snapshots and drafts through a KVStore.
type Gateway struct {
	store    KVStore
	stateKey string
	index    *contenthash.Index
	now      func() time.Time
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithStateKey overrides DefaultStateKey.
func WithStateKey(key string) GatewayOption {
	return func(g *Gateway) {
		if key != "" {
			g.stateKey = key
		}
	}
}

// WithIndex sets the content hash index used to key drafts.
func WithIndex(index *contenthash.Index) GatewayOption {
	return func(g *Gateway) {
		if index != nil {
			g.index = index
		}
	}
}

// WithNow sets the clock used to stamp snapshots and drafts.
func WithNow(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway creates a Gateway over store.
func NewGateway(store KVStore, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store:    store,
		stateKey: DefaultStateKey,
		index:    contenthash.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Index returns the content hash index used for draft keys.
func (g *Gateway) Index() *contenthash.Index {
	return g.index
}

// SaveState serializes state and writes it. It returns the written text.
func (g *Gateway) SaveState(ctx context.Context, state domain.WorkspaceState) (string, error) {
	text, err := Serialize(state, g.now())
	if err != nil {
		return "", err
	}
	if err := g.store.Set(ctx, g.stateKey, text); err != nil {
		return "", fmt.Errorf("writing workspace snapshot: %w", err)
	}
	log.Debug(log.CatPersist, "workspace snapshot saved", "key", g.stateKey, "bytes", len(text), "revision", state.Revision)
	return text, nil
}

// Raw returns the stored snapshot text without decoding it.
func (g *Gateway) Raw(ctx context.Context) (string, bool, error) {
	text, ok, err := g.store.Get(ctx, g.stateKey)
	if err != nil {
		return "", false, fmt.Errorf("reading workspace snapshot: %w", err)
	}
	return text, ok, nil
}

// LoadState reads and decodes the stored snapshot. It returns ErrNoSnapshot
// when nothing is stored, and the Deserialize errors for bad snapshots.
func (g *Gateway) LoadState(ctx context.Context) (domain.WorkspaceState, error) {
	text, ok, err := g.Raw(ctx)
	if err != nil {
		return domain.WorkspaceState{}, err
	}
	if !ok {
		return domain.WorkspaceState{}, ErrNoSnapshot
	}
	return Deserialize(text)
}

// LoadOrDefault loads the stored snapshot, falling back to
// domain.DefaultState when it is absent or unreadable. A corrupt or
// unsupported snapshot is logged and returned as warning; it never reaches
// the caller as state. err is only set for store failures.
func (g *Gateway) LoadOrDefault(ctx context.Context) (state domain.WorkspaceState, warning error, err error) {
	state, err = g.LoadState(ctx)
	switch {
	case err == nil:
		return state, nil, nil
	case errors.Is(err, ErrNoSnapshot):
		log.Info(log.CatPersist, "no workspace snapshot, starting fresh", "key", g.stateKey)
		return domain.DefaultState(), nil, nil
	case IsRecoverable(err):
		log.Warn(log.CatPersist, "discarding unreadable workspace snapshot", "key", g.stateKey, "error", err.Error())
		return domain.DefaultState(), err, nil
	default:
		return domain.WorkspaceState{}, nil, err
	}
}

// Clear removes the stored snapshot.
func (g *Gateway) Clear(ctx context.Context) error {
	if err := g.store.Delete(ctx, g.stateKey); err != nil {
		return fmt.Errorf("deleting workspace snapshot: %w", err)
	}
	log.Info(log.CatPersist, "workspace snapshot cleared", "key", g.stateKey)
	return nil
}

// Draft is locally cached diagram content, stored in a content-hash slot.
type Draft struct {
	DiagramID domain.DiagramID `json:"diagramId"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	SavedAt   time.Time        `json:"savedAt"`
}

// DraftKey returns the storage key of the draft slot for isolationKey.
func (g *Gateway) DraftKey(isolationKey string, kind contenthash.Kind) string {
	return g.index.StorageKey(isolationKey, kind)
}

// SaveDraft writes d into the slot for isolationKey and returns the key used.
func (g *Gateway) SaveDraft(ctx context.Context, isolationKey string, kind contenthash.Kind, d Draft) (string, error) {
	if isolationKey == "" {
		return "", fmt.Errorf("saving draft: empty isolation key")
	}
	if d.SavedAt.IsZero() {
		d.SavedAt = g.now()
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding draft: %w", err)
	}
	key := g.DraftKey(isolationKey, kind)
	if err := g.store.Set(ctx, key, string(data)); err != nil {
		return "", fmt.Errorf("writing draft %s: %w", key, err)
	}
	log.Debug(log.CatPersist, "draft saved", "key", key, "bytes", len(d.Content))
	return key, nil
}

// LoadDraft reads the draft in the slot for isolationKey.
func (g *Gateway) LoadDraft(ctx context.Context, isolationKey string, kind contenthash.Kind) (Draft, bool, error) {
	key := g.DraftKey(isolationKey, kind)
	text, ok, err := g.store.Get(ctx, key)
	if err != nil {
		return Draft{}, false, fmt.Errorf("reading draft %s: %w", key, err)
	}
	if !ok {
		return Draft{}, false, nil
	}
	var d Draft
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return Draft{}, false, &domain.CorruptStateError{Reason: "malformed draft " + key, Err: err}
	}
	return d, true, nil
}

// DeleteDraft removes the draft in the slot for isolationKey.
func (g *Gateway) DeleteDraft(ctx context.Context, isolationKey string, kind contenthash.Kind) error {
	key := g.DraftKey(isolationKey, kind)
	if err := g.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting draft %s: %w", key, err)
	}
	return nil
}

// ListDrafts returns the isolation keys that have a draft of the given kind.
func (g *Gateway) ListDrafts(ctx context.Context, kind contenthash.Kind) ([]string, error) {
	lister, ok := g.store.(KeyLister)
	if !ok {
		return nil, ErrKeysUnsupported
	}
	prefix := g.DraftKey("", kind)
	keys, err := lister.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %s drafts: %w", kind, err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id := strings.TrimPrefix(k, prefix); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Close releases the underlying store.
func (g *Gateway) Close() error {
	return g.store.Close()
}
