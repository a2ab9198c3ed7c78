// ABOUTME: Thread-safe TTL cache remembering a value per key for a bounded window.
// ABOUTME: The feed uses it to answer retried operator commands without running them twice.

package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	stored  time.Time
	value   V
	element *list.Element
	ready   chan struct{} // closed once value is set
}

func (e *entry[V]) done() bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

func readyEntry[V any](now time.Time, value V) *entry[V] {
	e := &entry[V]{stored: now, value: value, ready: make(chan struct{})}
	close(e.ready)
	return e
}

// Cache remembers values by key until they expire or are evicted. Eviction
// drops the oldest key once maxSize is reached.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	order   *list.List // keys, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache. A background goroutine sweeps expired entries every
// sweep interval until Close.
func New[V any](ttl time.Duration, maxSize int, sweep time.Duration) *Cache[V] {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Cache[V]{
		entries: make(map[string]*entry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweep > 0 {
		go c.sweepLoop(sweep)
	}
	return c
}

// Get returns the live value stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.done() || c.expired(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Do returns the live value stored under key, or runs fn and stores its
// result. Concurrent callers with the same key share one run of fn and all
// but the runner report shared. Waiting for another caller's fn ends early with
// ctx's error.
func (c *Cache[V]) Do(ctx context.Context, key string, fn func() V) (value V, shared bool, err error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		switch {
		case !e.done():
			c.mu.Unlock()
			select {
			case <-e.ready:
			case <-ctx.Done():
				var zero V
				return zero, true, ctx.Err()
			}
			c.mu.Lock()
			v := e.value
			c.mu.Unlock()
			return v, true, nil
		case !c.expired(e):
			v := e.value
			c.mu.Unlock()
			return v, true, nil
		}
	}

	e := &entry[V]{stored: c.now(), ready: make(chan struct{})}
	c.insertLocked(key, e)
	c.mu.Unlock()

	// Waiters are released even if fn panics.
	defer func() {
		c.mu.Lock()
		e.value = value
		e.stored = c.now()
		close(e.ready)
		c.mu.Unlock()
	}()
	return fn(), false, nil
}

// Put stores value under key, replacing and refreshing any previous entry.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.done() {
		e.stored = c.now()
		e.value = value
		c.order.MoveToBack(e.element)
		return
	}
	c.insertLocked(key, readyEntry(c.now(), value))
}

// insertLocked adds e under key, replacing any entry there. Must be called
// with mu held.
func (c *Cache[V]) insertLocked(key string, e *entry[V]) {
	if old, ok := c.entries[key]; ok {
		c.order.Remove(old.element)
		delete(c.entries, key)
	}
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	e.element = c.order.PushBack(key)
	c.entries[key] = e
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.now().Sub(e.stored) >= c.ttl
}

// Len returns the number of stored entries, expired ones included until swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Must be called with mu held.
func (c *Cache[V]) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

func (c *Cache[V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep drops expired entries.
func (c *Cache[V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if e.done() && now.Sub(e.stored) >= c.ttl {
			c.order.Remove(e.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
