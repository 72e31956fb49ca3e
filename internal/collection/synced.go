// Package collection provides Synced, a branch-scoped in-memory mirror of
// one logical collection stored as a single remote document.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tabletrack/api/internal/transport"
)

// ErrRemoteWrite marks a write that applied locally but failed to reach
// the shared store. The local mirror stays ahead until the store catches
// up; callers downgrade this to an operator warning.
var ErrRemoteWrite = errors.New("remote write failed, local mirror is ahead")

// RepairFunc inspects an incoming snapshot and returns a cleaned value
// plus whether the cleaned value must be re-persisted (self-healing).
type RepairFunc[T any] func(T) (T, bool)

// Option configures a Synced collection at Open time.
type Option[T any] func(*Synced[T])

// WithRepair installs a snapshot repair rule.
func WithRepair[T any](fn RepairFunc[T]) Option[T] {
	return func(c *Synced[T]) { c.repair = fn }
}

// Synced mirrors one collection document. Every remote snapshot replaces
// the whole local value; local writes are optimistic. Two stations writing
// the same collection inside one propagation window race, and the last
// whole-document write wins. That is the store's contract, not a bug to
// patch here.
type Synced[T any] struct {
	path string
	tr   transport.Transport
	log  *logrus.Entry

	repair RepairFunc[T]

	mu    sync.RWMutex
	value T

	updateMu sync.Mutex

	watchMu  sync.Mutex
	watchers map[int]func(T)
	nextID   int
}

// Open subscribes to the collection's document. When no remote document
// exists yet the collection is initialized from def and def is persisted.
// The mirror lives until ctx is cancelled.
func Open[T any](ctx context.Context, tr transport.Transport, path string, def T, log *logrus.Entry, opts ...Option[T]) (*Synced[T], error) {
	c := &Synced[T]{
		path:     path,
		tr:       tr,
		log:      log.WithField("collection", path),
		watchers: make(map[int]func(T)),
	}
	for _, opt := range opts {
		opt(c)
	}

	sub, err := tr.Subscribe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	if sub.Initial == nil {
		c.value = def
		if err := c.persist(ctx, def); err != nil {
			c.log.WithError(err).Warn("persist default value")
		}
	} else {
		var v T
		if err := json.Unmarshal(sub.Initial, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		c.value = c.applyRepair(ctx, v)
	}

	go c.pump(ctx, sub.Updates)
	return c, nil
}

// Get returns the current mirrored value. The caller must treat it as
// read-only; mutations go through Set or Update.
func (c *Synced[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the mirror optimistically: the local value is swapped in
// before the remote write is attempted, and is NOT rolled back when the
// remote write fails — the returned error wraps ErrRemoteWrite in that
// case and the caller is "ahead" of the shared store.
func (c *Synced[T]) Set(ctx context.Context, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
	c.notify(v)

	if err := c.tr.Write(ctx, c.path, raw); err != nil {
		return fmt.Errorf("%s: %w: %v", c.path, ErrRemoteWrite, err)
	}
	return nil
}

// Update applies fn to the current value and writes the result. Updates
// on the same station are serialized and applied in call order.
func (c *Synced[T]) Update(ctx context.Context, fn func(T) T) error {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()
	return c.Set(ctx, fn(c.Get()))
}

// Watch registers fn to run on every replacement of the mirror, local or
// remote. It returns a remove function.
func (c *Synced[T]) Watch(fn func(T)) func() {
	c.watchMu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = fn
	c.watchMu.Unlock()

	return func() {
		c.watchMu.Lock()
		delete(c.watchers, id)
		c.watchMu.Unlock()
	}
}

func (c *Synced[T]) pump(ctx context.Context, updates <-chan []byte) {
	for raw := range updates {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			c.log.WithError(err).Warn("skip undecodable snapshot")
			continue
		}
		v = c.applyRepair(ctx, v)

		c.mu.Lock()
		c.value = v
		c.mu.Unlock()
		c.notify(v)
	}
}

func (c *Synced[T]) applyRepair(ctx context.Context, v T) T {
	if c.repair == nil {
		return v
	}
	cleaned, dirty := c.repair(v)
	if dirty {
		c.log.Warn("snapshot repaired, re-persisting cleaned value")
		if err := c.persist(ctx, cleaned); err != nil {
			c.log.WithError(err).Warn("re-persist repaired value")
		}
	}
	return cleaned
}

func (c *Synced[T]) persist(ctx context.Context, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}
	return c.tr.Write(ctx, c.path, raw)
}

func (c *Synced[T]) notify(v T) {
	c.watchMu.Lock()
	fns := make([]func(T), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.watchMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
