// ABOUTME: In-memory fan-out of notification state changes to UI listeners
// ABOUTME: Subscribers get a buffered channel; slow subscribers drop events rather than block

package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// EventType names a state change.
type EventType string

const (
	EventConversationUpdated EventType = "conversation_updated"
	EventToastAdded          EventType = "toast_added"
	EventToastRemoved        EventType = "toast_removed"
	EventStatusChanged       EventType = "status_changed"
	EventTicketRefresh       EventType = "ticket_refresh"
	EventReset               EventType = "reset"
)

// Event describes one state change. Only the fields relevant to Type are set.
type Event struct {
	Type        EventType
	ContactID   string
	TicketID    string
	ToastID     uint64
	Status      string
	UnreadTotal int
	At          time.Time
}

// Broadcaster provides in-memory pub/sub for notification state changes.
// Publishing never blocks the caller.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event // subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber and returns its channel and id. The
// subscription is removed and its channel closed when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends ev to every subscriber. Events are dropped for subscribers
// whose channels are full.
func (b *Broadcaster) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"sub_id", id,
				"event_type", ev.Type)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel. Later Subscribe calls receive an
// already closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
