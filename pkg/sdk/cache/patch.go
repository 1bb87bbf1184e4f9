package cache

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bytedance/sonic"
)

// PatchTx is an optimistic local edit of one cached entry. The patched value
// is visible to readers from BeginPatch on. Commit keeps it; Rollback applies
// the edit's undo to whatever the entry holds by then, so other edits made
// in the meantime are kept. Close rolls back unless the transaction already
// finished, so
//
//	tx, err := cache.BeginPatch(ctx, c, key, patch)
//	if err != nil { ... }
//	defer tx.Close()
//	... remote call ...
//	tx.Commit()
//
// undoes the edit on every early return and on panic.
type PatchTx struct {
	cache   *Cache
	ctx     context.Context
	key     QueryKey
	fetched uint64
	revert  func(raw []byte) ([]byte, error)

	mu   sync.Mutex
	done bool
}

// BeginPatch applies patch to a decoded copy of the entry under key and
// stores the result atomically. patch returns the function that undoes
// exactly its edit; a nil undo means nothing was changed. When nothing is
// cached under key, or the patch changes nothing, the returned transaction
// is a no-op.
func BeginPatch[T any](ctx context.Context, c *Cache, key QueryKey, patch func(v *T) (undo func(v *T), err error)) (*PatchTx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, e, ok := c.getLocked(ctx, key)
	if !ok {
		return &PatchTx{key: key, done: true}, nil
	}

	var v T
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	undo, err := patch(&v)
	if err != nil {
		return nil, err
	}
	if undo == nil {
		return &PatchTx{key: key, done: true}, nil
	}
	patched, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	if bytes.Equal(patched, raw) {
		return &PatchTx{key: key, done: true}, nil
	}

	if _, err := c.putLocked(ctx, key, patched, e.fetched); err != nil {
		return nil, err
	}

	return &PatchTx{
		cache:   c,
		ctx:     context.WithoutCancel(ctx),
		key:     key,
		fetched: e.fetched,
		revert: func(raw []byte) ([]byte, error) {
			var cur T
			if err := sonic.Unmarshal(raw, &cur); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
			undo(&cur)
			return sonic.Marshal(cur)
		},
	}, nil
}

// Applied reports whether a patch was placed in the cache.
func (tx *PatchTx) Applied() bool {
	return tx.revert != nil
}

func (tx *PatchTx) finish() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return false
	}
	tx.done = true
	return true
}

// Commit leaves the patched value in place.
func (tx *PatchTx) Commit() {
	tx.finish()
}

// Rollback undoes the edit in the current entry. If the entry was
// invalidated or refetched since the patch, the newer state wins and
// nothing is undone.
func (tx *PatchTx) Rollback() error {
	if !tx.finish() {
		return nil
	}

	c := tx.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, e, ok := c.getLocked(tx.ctx, tx.key)
	if !ok || e.fetched != tx.fetched {
		slog.DebugContext(tx.ctx, "patched entry superseded, skipping rollback", slog.String("key", tx.key.String()))
		return nil
	}

	reverted, err := tx.revert(raw)
	if err != nil {
		return fmt.Errorf("rollback %s: %w", tx.key, err)
	}
	if _, err := c.putLocked(tx.ctx, tx.key, reverted, e.fetched); err != nil {
		return fmt.Errorf("rollback %s: %w", tx.key, err)
	}
	slog.DebugContext(tx.ctx, "optimistic patch rolled back", slog.String("key", tx.key.String()))
	return nil
}

// Close rolls back an unfinished transaction.
func (tx *PatchTx) Close() {
	if err := tx.Rollback(); err != nil {
		slog.WarnContext(tx.ctx, "rollback failed", slog.Any("error", err))
	}
}
