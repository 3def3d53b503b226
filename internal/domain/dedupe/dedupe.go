// Package dedupe tracks Idempotency-Key values for mutating requests so that
// a retried result commit or rider import returns the original response
// instead of running twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Replay is the response recorded for a completed key.
type Replay struct {
	Status      int
	ContentType string
	Body        []byte
}

// State of a key after Claim.
type State int

const (
	// StateNew means the caller owns the key and must Complete or Release it.
	StateNew State = iota
	// StateInFlight means another request holds the key.
	StateInFlight
	// StateDone means a Replay is available.
	StateDone
)

// Deduper records idempotency keys with at-most-once semantics.
type Deduper interface {
	// Claim atomically checks key and records it as in flight if unseen.
	Claim(ctx context.Context, key string) (State, Replay)

	// Complete stores the response for a claimed key.
	Complete(ctx context.Context, key string, r Replay)

	// Release forgets a claimed key so the client can retry after a failure.
	Release(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key    string
	done   bool
	replay Replay
}

// inMemoryDeduper keeps keys in insertion order; the oldest key is evicted
// when maxSize is reached. maxSize <= 0 disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key string) (State, Replay) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		e := el.Value.(*entry)
		if e.done {
			return StateDone, e.replay
		}
		return StateInFlight, Replay{}
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[key] = d.order.PushBack(&entry{key: key})
	d.size.Add(1)
	return StateNew, Replay{}
}

func (d *inMemoryDeduper) Complete(_ context.Context, key string, r Replay) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		e := el.Value.(*entry)
		e.done = true
		e.replay = r
	}
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// evictOldest drops the front of the list. Caller holds d.mu.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.seen, front.Value.(*entry).key)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
