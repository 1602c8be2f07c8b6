// ABOUTME: Thread-safe TTL cache for suppressing repeated notifications.
// ABOUTME: Keys are any comparable value; the coordinator keys catch-up toasts by (id, timestamp).

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable] struct {
	key    K
	marked time.Time
}

// Cache remembers keys for a fixed window. When full, the least recently
// marked key is evicted.
type Cache[K comparable] struct {
	mu      sync.Mutex
	seen    map[K]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now             func() time.Time
	cleanupInterval time.Duration
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithCleanupInterval sets how often expired keys are swept. Zero disables
// the background sweep; expired keys are still ignored on lookup.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) { o.cleanupInterval = d }
}

// New creates a cache holding at most maxSize keys for ttl each.
func New[K comparable](ttl time.Duration, maxSize int, opts ...Option) *Cache[K] {
	o := options{now: time.Now, cleanupInterval: time.Minute}
	for _, opt := range opts {
		opt(&o)
	}
	if maxSize <= 0 {
		maxSize = 1
	}

	c := &Cache[K]{
		seen:    make(map[K]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     o.now,
		done:    make(chan struct{}),
	}
	if o.cleanupInterval > 0 {
		go c.cleanup(o.cleanupInterval)
	}
	return c
}

// Check reports whether key was marked within the window.
func (c *Cache[K]) Check(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(key)
}

// CheckAndMark marks key and reports whether it was already live.
func (c *Cache[K]) CheckAndMark(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.liveLocked(key) {
		return true
	}
	c.markLocked(key)
	return false
}

// Mark records key, refreshing its window if already present.
func (c *Cache[K]) Mark(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

// Len returns the number of stored keys, including expired ones not yet swept.
func (c *Cache[K]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Reset forgets every key.
func (c *Cache[K]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[K]*list.Element)
	c.order.Init()
}

func (c *Cache[K]) liveLocked(key K) bool {
	el, ok := c.seen[key]
	if !ok {
		return false
	}
	return c.now().Sub(el.Value.(*entry[K]).marked) < c.ttl
}

func (c *Cache[K]) markLocked(key K) {
	now := c.now()
	if el, ok := c.seen[key]; ok {
		el.Value.(*entry[K]).marked = now
		c.order.MoveToBack(el)
		return
	}

	for len(c.seen) >= c.maxSize {
		front := c.order.Front()
		if front == nil {
			break
		}
		c.order.Remove(front)
		delete(c.seen, front.Value.(*entry[K]).key)
	}

	c.seen[key] = c.order.PushBack(&entry[K]{key: key, marked: now})
}

func (c *Cache[K]) cleanup(interval time.Duration) {
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

// sweep drops expired keys. Marks only move keys to the back, so the list
// stays ordered by mark time and the sweep can stop at the first live key.
func (c *Cache[K]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.order.Front(); el != nil; {
		e := el.Value.(*entry[K])
		if now.Sub(e.marked) < c.ttl {
			return
		}
		next := el.Next()
		c.order.Remove(el)
		delete(c.seen, e.key)
		el = next
	}
}

// Close stops the background sweep. Safe to call more than once.
func (c *Cache[K]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
