// Package dedupe tracks idempotency keys so that a retried transport call is
// applied at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"

	"github.com/okian/quorum/internal/domain/types"
)

// Deduper records seen idempotency keys. Keys are scoped to the caller, so
// two providers may use the same key independently.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen for caller and records
	// it if not. Returns true if it was already seen.
	SeenAndRecord(ctx context.Context, caller types.ProviderID, key string) bool

	// Unrecord forgets key so that the call can be retried. Used when the
	// core rejected the call the key was recorded for.
	Unrecord(ctx context.Context, caller types.ProviderID, key string)

	Size() int64
}

type entry struct {
	caller types.ProviderID
	key    string
}

// inMemoryDeduper keeps up to maxSize keys and evicts the oldest first.
// A maxSize of zero or less keeps every key.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[entry]*list.Element
	order   *list.List // front is oldest
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[entry]*list.Element)
	d.order = list.New()
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, caller types.ProviderID, key string) bool {
	e := entry{caller: caller, key: key}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[e]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		oldest := d.order.Front()
		delete(d.seen, oldest.Value.(entry))
		d.order.Remove(oldest)
	}
	d.seen[e] = d.order.PushBack(e)
	return false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, caller types.ProviderID, key string) {
	e := entry{caller: caller, key: key}

	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[e]; ok {
		d.order.Remove(el)
		delete(d.seen, e)
	}
}

// Size returns the current number of recorded keys.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
