// Package cache is the client-side entity cache. Query results are stored
// encoded under a QueryKey that belongs to a resource Tag.
//
// Invalidation bumps a per-tag generation and drops the tag's entries. A
// fetch remembers the generation it started under and only populates the
// cache if that generation is still current when it completes, so a result
// fetched before an invalidation (or before a Reset) is handed to its
// callers but never cached.
//
// Concurrent queries for the same key and generation share one fetch. The
// fetch outlives any one caller: a caller whose context ends stops waiting,
// the others still get the result.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type Tag string

const (
	TagORS  Tag = "ORS"
	TagUser Tag = "User"
)

type QueryKey struct {
	Tag  Tag
	Name string
}

func (k QueryKey) String() string {
	return string(k.Tag) + ":" + k.Name
}

type mark struct {
	epoch uint64
	gen   uint64
}

// entry tracks a cached key. fetched identifies the write that stored the
// value patches are layered on; patches carry it forward unchanged.
type entry struct {
	fetched uint64
}

type Cache struct {
	mu        sync.Mutex
	storage   Storage
	namespace string
	epoch     uint64
	gens      map[Tag]uint64
	entries   map[QueryKey]entry
	writes    uint64

	group singleflight.Group
}

// New creates a cache over storage; a nil storage means in-memory.
func New(storage Storage) *Cache {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Cache{
		storage:   storage,
		namespace: uuid.NewString(),
		gens:      make(map[Tag]uint64),
		entries:   make(map[QueryKey]entry),
	}
}

func (c *Cache) storageKey(key QueryKey) string {
	return c.namespace + ":" + key.String()
}

func (c *Cache) markLocked(tag Tag) mark {
	return mark{epoch: c.epoch, gen: c.gens[tag]}
}

// putLocked stores raw under key. A zero fetched marks raw as a new base
// value; otherwise raw is a patch over the base written by fetched.
func (c *Cache) putLocked(ctx context.Context, key QueryKey, raw []byte, fetched uint64) (entry, error) {
	if err := c.storage.Set(ctx, c.storageKey(key), raw); err != nil {
		delete(c.entries, key)
		return entry{}, err
	}
	c.writes++
	if fetched == 0 {
		fetched = c.writes
	}
	e := entry{fetched: fetched}
	c.entries[key] = e
	return e, nil
}

func (c *Cache) getLocked(ctx context.Context, key QueryKey) ([]byte, entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, entry{}, false
	}

	raw, found, err := c.storage.Get(ctx, c.storageKey(key))
	if err != nil {
		slog.WarnContext(ctx, "cache read failed, treating as miss", slog.String("key", key.String()), slog.Any("error", err))
		return nil, entry{}, false
	}
	if !found {
		delete(c.entries, key)
		return nil, entry{}, false
	}
	return raw, e, true
}

func (c *Cache) lookup(ctx context.Context, key QueryKey) ([]byte, bool, mark) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, _, ok := c.getLocked(ctx, key)
	return raw, ok, c.markLocked(key.Tag)
}

// storeIfCurrent caches raw only if nothing invalidated key's tag since m was taken.
func (c *Cache) storeIfCurrent(ctx context.Context, key QueryKey, raw []byte, m mark) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.markLocked(key.Tag) != m {
		slog.DebugContext(ctx, "discarding result fetched before invalidation", slog.String("key", key.String()))
		return
	}
	if _, err := c.putLocked(ctx, key, raw, 0); err != nil {
		slog.WarnContext(ctx, "cache write failed", slog.String("key", key.String()), slog.Any("error", err))
	}
}

// Invalidate marks every query under tags stale; the next Query refetches.
func (c *Cache) Invalidate(ctx context.Context, tags ...Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for _, tag := range tags {
		c.gens[tag]++
		for k := range c.entries {
			if k.Tag == tag {
				keys = append(keys, c.storageKey(k))
				delete(c.entries, k)
			}
		}
	}
	c.deleteLocked(ctx, keys)

	slog.DebugContext(ctx, "cache invalidated", slog.Any("tags", tags))
}

// Reset drops everything, including results still being fetched.
func (c *Cache) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, c.storageKey(k))
	}
	c.entries = make(map[QueryKey]entry)
	c.deleteLocked(ctx, keys)

	slog.DebugContext(ctx, "cache reset")
}

func (c *Cache) deleteLocked(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	// entries are already untracked, so a failed delete only leaks storage
	if err := c.storage.Delete(ctx, keys...); err != nil {
		slog.WarnContext(ctx, "cache delete failed", slog.Any("error", err))
	}
}

// Has reports whether key currently holds a cached result.
func (c *Cache) Has(key QueryKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	return ok
}

// Query returns the cached value for key, fetching it on a miss. Every
// caller gets its own decoded copy.
func Query[T any](ctx context.Context, c *Cache, key QueryKey, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, ok, m := c.lookup(ctx, key)
	if ok {
		var v T
		err := sonic.Unmarshal(raw, &v)
		if err == nil {
			slog.DebugContext(ctx, "cache hit", slog.String("key", key.String()))
			return v, nil
		}
		slog.WarnContext(ctx, "undecodable cache entry, refetching", slog.String("key", key.String()), slog.Any("error", err))
	}

	// the fetch serves every caller that joins it, so no single caller's
	// cancellation may stop it
	fetchCtx := context.WithoutCancel(ctx)
	flightKey := fmt.Sprintf("%s@%d.%d", key, m.epoch, m.gen)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		raw, err := sonic.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		c.storeIfCurrent(fetchCtx, key, raw, m)
		return raw, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}
	if res.Shared {
		slog.DebugContext(ctx, "joined in-flight query", slog.String("key", key.String()))
	}

	var v T
	if err := sonic.Unmarshal(res.Val.([]byte), &v); err != nil {
		return zero, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// Peek returns the cached value for key without fetching.
func Peek[T any](ctx context.Context, c *Cache, key QueryKey) (T, bool, error) {
	var v T

	raw, ok, _ := c.lookup(ctx, key)
	if !ok {
		return v, false, nil
	}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}
