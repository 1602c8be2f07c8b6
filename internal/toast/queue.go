// ABOUTME: Ordered queue of auto-expiring toasts
// ABOUTME: Each toast owns a cancellable timer; dismiss and clear stop timers

package toast

import (
	"sync"
	"time"
)

// Category says what a toast is about.
type Category string

const (
	CategoryChat          Category = "chat"
	CategorySupport       Category = "support"
	CategoryCertification Category = "certification"
)

// Default lifetimes.
const (
	DefaultTimeout      = 5 * time.Second
	DefaultAdminTimeout = 6 * time.Second
)

// Toast is one transient notification. Only the reference field matching
// Category is set.
type Toast struct {
	ID              uint64
	Category        Category
	SenderName      string
	Preview         string
	Subject         string
	Status          string
	ContactID       string
	TicketID        string
	CertificationID string
	CreatedAt       time.Time
	EnqueuedAt      time.Time
	ExpiresAt       time.Time
}

// Queue keeps toasts in enqueue order.
type Queue struct {
	mu       sync.Mutex
	items    []Toast
	timers   map[uint64]*time.Timer
	nextID   uint64
	onRemove func(Toast)
	now      func() time.Time
}

// NewQueue creates an empty queue. onRemove, if non-nil, is called outside
// the queue lock whenever a toast expires or is dismissed.
func NewQueue(onRemove func(Toast)) *Queue {
	return &Queue{
		timers:   make(map[uint64]*time.Timer),
		onRemove: onRemove,
		now:      time.Now,
	}
}

// Enqueue appends t with a fresh id and schedules its removal after timeout.
// A non-positive timeout uses DefaultTimeout. Any ID set on t is ignored.
func (q *Queue) Enqueue(t Toast, timeout time.Duration) Toast {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	t.ID = q.nextID
	t.EnqueuedAt = q.now()
	t.ExpiresAt = t.EnqueuedAt.Add(timeout)
	q.items = append(q.items, t)

	id := t.ID
	q.timers[id] = time.AfterFunc(timeout, func() { q.expire(id) })
	return t
}

func (q *Queue) expire(id uint64) {
	q.mu.Lock()
	removed, ok := q.removeLocked(id)
	q.mu.Unlock()

	if ok && q.onRemove != nil {
		q.onRemove(removed)
	}
}

// Dismiss removes the toast with id before it expires. Returns false if it
// is already gone.
func (q *Queue) Dismiss(id uint64) bool {
	q.mu.Lock()
	removed, ok := q.removeLocked(id)
	q.mu.Unlock()

	if ok && q.onRemove != nil {
		q.onRemove(removed)
	}
	return ok
}

func (q *Queue) removeLocked(id uint64) (Toast, bool) {
	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}
	for i, t := range q.items {
		if t.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return t, true
		}
	}
	return Toast{}, false
}

// List returns the live toasts, oldest first.
func (q *Queue) List() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Toast, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of live toasts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PendingTimers returns the number of scheduled expiries.
func (q *Queue) PendingTimers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

// Clear drops every toast and stops every pending timer without calling
// onRemove. Ids keep increasing afterwards.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	q.items = nil
}
