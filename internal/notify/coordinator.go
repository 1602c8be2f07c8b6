// ABOUTME: Session coordinator wiring REST bootstrap, transport, registry and toasts
// ABOUTME: Lifecycle (Bootstrap/Teardown), focus tracking and read-side accessors

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/2389/house-notify/internal/api"
	"github.com/2389/house-notify/internal/conversation"
	"github.com/2389/house-notify/internal/dedupe"
	"github.com/2389/house-notify/internal/event"
	"github.com/2389/house-notify/internal/seen"
	"github.com/2389/house-notify/internal/toast"
	"github.com/2389/house-notify/internal/transport"
)

var (
	// ErrNotAuthenticated is returned by Bootstrap without a token or user id.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrUnknownConversation is returned when opening a conversation that is not in the registry.
	ErrUnknownConversation = errors.New("unknown conversation")
	// ErrNotStarted is returned by operations that need a bootstrapped session.
	ErrNotStarted = errors.New("coordinator not started")
	// ErrInterrupted is returned by Bootstrap when Teardown ran while it was fetching.
	ErrInterrupted = errors.New("bootstrap interrupted by teardown")
)

const (
	catchupCacheSize = 4096
	fetchTimeout     = 15 * time.Second
)

// Identity is the authenticated user a session runs for.
type Identity struct {
	Token  string
	UserID string
	Role   api.Role
	Name   string
}

// ContactSource lists the contact threads visible to a role.
type ContactSource interface {
	ContactsFor(ctx context.Context, role api.Role) ([]api.Contact, error)
}

// TicketSource lists the support tickets visible to a role.
type TicketSource interface {
	TicketsFor(ctx context.Context, role api.Role) ([]api.SupportTicket, error)
}

// Transport is the broker connection the coordinator drives.
// *transport.Session implements it.
type Transport interface {
	Connect(token string)
	Disconnect()
	Subscribe(topic string, handler transport.Handler) transport.Handle
	Publish(destination string, payload any) error
	Status() transport.Status
}

// TransportFactory creates a transport reporting to cb.
type TransportFactory func(cb transport.Callbacks) Transport

// Options configure a Coordinator.
type Options struct {
	Contacts     ContactSource
	Tickets      TicketSource // optional
	NewTransport TransportFactory
	Seen         *seen.Store

	ToastTimeout      time.Duration
	AdminToastTimeout time.Duration
	CatchupWindow     time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Coordinator is the notification engine for one user session.
type Coordinator struct {
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
	seen    *seen.Store
	reg     *conversation.Registry
	toasts  *toast.Queue
	events  *conversation.Broadcaster
	catchup *dedupe.Cache[catchupKey]
	boot    singleflight.Group

	mu            sync.Mutex
	active        bool
	gen           uint64
	identity      Identity
	tr            Transport
	status        transport.Status
	userSubs      []transport.Handle
	threadSubs    map[string]transport.Handle // topic -> handle
	focusContact  string
	focusTicket   string
	ticketRefresh map[string]struct{}
}

// New creates an idle coordinator.
func New(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ToastTimeout <= 0 {
		opts.ToastTimeout = toast.DefaultTimeout
	}
	if opts.AdminToastTimeout <= 0 {
		opts.AdminToastTimeout = toast.DefaultAdminTimeout
	}
	if opts.CatchupWindow <= 0 {
		opts.CatchupWindow = 10 * time.Minute
	}
	if opts.Seen == nil {
		opts.Seen = seen.New(context.Background(), nil, opts.Logger)
	}

	c := &Coordinator{
		opts:          opts,
		logger:        opts.Logger.With("component", "notify"),
		now:           opts.Now,
		seen:          opts.Seen,
		reg:           conversation.NewRegistry(),
		events:        conversation.NewBroadcaster(opts.Logger),
		catchup:       dedupe.New[catchupKey](opts.CatchupWindow, catchupCacheSize, dedupe.WithClock(opts.Now)),
		status:        transport.StatusIdle,
		threadSubs:    make(map[string]transport.Handle),
		ticketRefresh: make(map[string]struct{}),
	}
	c.toasts = toast.NewQueue(func(t toast.Toast) {
		c.events.Publish(conversation.Event{Type: conversation.EventToastRemoved, ToastID: t.ID})
	})
	return c
}

// Bootstrap starts the session for id. It is a no-op while a session is
// running, and concurrent callers share a single run.
func (c *Coordinator) Bootstrap(ctx context.Context, id Identity) error {
	if id.Token == "" || id.UserID == "" {
		return ErrNotAuthenticated
	}
	if c.opts.NewTransport == nil {
		return errors.New("no transport configured")
	}

	_, err, _ := c.boot.Do("bootstrap", func() (any, error) {
		return nil, c.bootstrap(ctx, id)
	})
	return err
}

func (c *Coordinator) bootstrap(ctx context.Context, id Identity) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		c.logger.Debug("bootstrap skipped, session already running")
		return nil
	}
	startGen := c.gen
	c.mu.Unlock()

	logger := c.logger.With("user_id", id.UserID, "role", id.Role)
	logger.Info("bootstrapping notification session")

	contacts := c.fetchContacts(ctx, id.Role)
	tickets := c.fetchTickets(ctx, id.Role)

	c.mu.Lock()
	if c.gen != startGen {
		c.mu.Unlock()
		return ErrInterrupted
	}
	c.active = true
	c.gen++
	gen := c.gen
	c.identity = id

	c.reg.Replace(contacts)
	c.catchUpContactsLocked()
	c.syncTicketsLocked(tickets)

	tr := c.opts.NewTransport(c.callbacks(gen))
	c.tr = tr
	c.mu.Unlock()

	topics := []string{event.UserTopic(event.ID(id.UserID))}
	if id.Role == api.RoleAdmin {
		topics = append(topics, event.AdminCertificationsTopic, event.AdminSupportTopic)
	}
	handles := make([]transport.Handle, 0, len(topics))
	for _, topic := range topics {
		handles = append(handles, tr.Subscribe(topic, c.frameHandler(gen)))
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		for _, h := range handles {
			h.Unsubscribe()
		}
		return ErrInterrupted
	}
	c.userSubs = handles
	c.mu.Unlock()

	tr.Connect(id.Token)

	c.mu.Lock()
	stale := c.gen != gen
	c.mu.Unlock()
	if stale {
		tr.Disconnect()
		return ErrInterrupted
	}

	c.events.Publish(conversation.Event{Type: conversation.EventConversationUpdated, UnreadTotal: c.reg.TotalUnread()})
	logger.Info("notification session started",
		"conversations", len(contacts),
		"tickets", len(tickets),
		"topics", len(topics))
	return nil
}

func (c *Coordinator) fetchContacts(ctx context.Context, role api.Role) []conversation.Conversation {
	if c.opts.Contacts == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	list, err := c.opts.Contacts.ContactsFor(ctx, role)
	if err != nil {
		c.logger.Warn("failed to load contacts, continuing with none", "error", err)
		return nil
	}
	out := make([]conversation.Conversation, 0, len(list))
	for _, ct := range list {
		out = append(out, conversationFromContact(role, ct))
	}
	return out
}

func (c *Coordinator) fetchTickets(ctx context.Context, role api.Role) []api.SupportTicket {
	if c.opts.Tickets == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	list, err := c.opts.Tickets.TicketsFor(ctx, role)
	if err != nil {
		c.logger.Warn("failed to load support tickets, skipping catch-up", "error", err)
		return nil
	}
	return list
}

func conversationFromContact(role api.Role, ct api.Contact) conversation.Conversation {
	partner := ct.TenantName
	if role == api.RoleUser {
		partner = ct.LandlordName
	}
	return conversation.Conversation{
		ContactID:     ct.ID.String(),
		HouseID:       ct.HouseID.String(),
		HouseTitle:    ct.HouseTitle,
		PartnerName:   partner,
		LastMessage:   ct.LastMessage,
		LastMessageAt: ct.LastMessageAt.Ptr(),
	}
}

func (c *Coordinator) callbacks(gen uint64) transport.Callbacks {
	return transport.Callbacks{
		OnStatus: func(st transport.Status) {
			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				return
			}
			c.status = st
			c.mu.Unlock()
			c.events.Publish(conversation.Event{Type: conversation.EventStatusChanged, Status: string(st)})
		},
		OnConnected: func() {
			c.logger.Info("transport connected")
		},
		OnError: func(err error) {
			c.logger.Warn("transport error", "error", err)
		},
	}
}

func (c *Coordinator) frameHandler(gen uint64) transport.Handler {
	return func(topic string, body []byte) {
		c.mu.Lock()
		stale := c.gen != gen
		c.mu.Unlock()
		if stale {
			return
		}
		c.HandleIncoming(topic, body)
	}
}

// Teardown unsubscribes every topic, disconnects the transport, cancels
// pending toasts and clears conversations and focus. Seen markers are kept.
// Safe to call at any time, including before Bootstrap.
func (c *Coordinator) Teardown() {
	c.mu.Lock()
	c.gen++
	wasActive := c.active
	c.active = false
	tr := c.tr
	c.tr = nil
	handles := c.userSubs
	c.userSubs = nil
	for topic, h := range c.threadSubs {
		handles = append(handles, h)
		delete(c.threadSubs, topic)
	}
	c.focusContact = ""
	c.focusTicket = ""
	c.ticketRefresh = make(map[string]struct{})
	c.identity = Identity{}
	c.status = transport.StatusIdle
	c.reg.Clear()
	c.toasts.Clear()
	c.catchup.Reset()
	c.mu.Unlock()

	for _, h := range handles {
		h.Unsubscribe()
	}
	if tr != nil {
		tr.Disconnect()
	}

	c.events.Publish(conversation.Event{Type: conversation.EventReset})
	if wasActive {
		c.logger.Info("notification session torn down")
	}
}

// Close tears the session down and releases background resources. The
// coordinator cannot be used afterwards.
func (c *Coordinator) Close() {
	c.Teardown()
	c.catchup.Close()
	c.events.Close()
}

// OpenConversation focuses contact id: its unread count resets and its seen
// marker advances to its last message.
func (c *Coordinator) OpenConversation(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.reg.FindByID(id)
	if !ok {
		return fmt.Errorf("open conversation %q: %w", id, ErrUnknownConversation)
	}
	c.focusContact = id
	c.reg.Update(id, func(cv *conversation.Conversation) { cv.Unread = 0 })
	if conv.LastMessageAt != nil {
		c.advanceLocked(seen.Chat, id, *conv.LastMessageAt)
	}
	c.publishConversationLocked(id)
	return nil
}

// CloseConversation clears chat focus.
func (c *Coordinator) CloseConversation() {
	c.mu.Lock()
	c.focusContact = ""
	c.mu.Unlock()
}

// OpenTicket focuses support ticket id and clears its refresh flag.
func (c *Coordinator) OpenTicket(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	c.focusTicket = id
	delete(c.ticketRefresh, id)
	c.mu.Unlock()
}

// CloseTicket clears support focus.
func (c *Coordinator) CloseTicket() {
	c.mu.Lock()
	c.focusTicket = ""
	c.mu.Unlock()
}

// Focus returns the focused contact and ticket ids; empty means none.
func (c *Coordinator) Focus() (contactID, ticketID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focusContact, c.focusTicket
}

// MarkConversationRead resets id's unread count and advances its seen
// marker to at (now if zero).
func (c *Coordinator) MarkConversationRead(id string, at time.Time) {
	if id == "" {
		return
	}
	if at.IsZero() {
		at = c.now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reg.Update(id, func(cv *conversation.Conversation) { cv.Unread = 0 }) {
		c.publishConversationLocked(id)
	}
	c.advanceLocked(seen.Chat, id, at)
}

// MarkTicketRead advances the support seen marker for id to at (now if zero).
func (c *Coordinator) MarkTicketRead(id string, at time.Time) {
	if id == "" {
		return
	}
	if at.IsZero() {
		at = c.now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(seen.Support, id, at)
}

// advanceLocked moves a seen marker forward; older timestamps are ignored.
func (c *Coordinator) advanceLocked(ns seen.Namespace, id string, at time.Time) {
	if id == "" || at.IsZero() {
		return
	}
	if cur, ok := c.seen.Get(ns, id); ok && !at.After(cur) {
		return
	}
	c.seen.Set(ns, id, at)
}

func (c *Coordinator) markTicketRefreshLocked(id string) {
	if id == "" {
		return
	}
	c.ticketRefresh[id] = struct{}{}
	c.events.Publish(conversation.Event{Type: conversation.EventTicketRefresh, TicketID: id})
}

func (c *Coordinator) publishConversationLocked(id string) {
	c.events.Publish(conversation.Event{
		Type:        conversation.EventConversationUpdated,
		ContactID:   id,
		UnreadTotal: c.reg.TotalUnread(),
	})
}

func (c *Coordinator) enqueueLocked(t toast.Toast, timeout time.Duration) toast.Toast {
	t = c.toasts.Enqueue(t, timeout)
	c.events.Publish(conversation.Event{
		Type:      conversation.EventToastAdded,
		ToastID:   t.ID,
		ContactID: t.ContactID,
		TicketID:  t.TicketID,
	})
	c.logger.Debug("toast enqueued",
		"toast_id", t.ID,
		"category", t.Category,
		"contact_id", t.ContactID,
		"ticket_id", t.TicketID)
	return t
}

// Status returns the transport state.
func (c *Coordinator) Status() transport.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Started reports whether a session is running.
func (c *Coordinator) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Identity returns the identity of the running session.
func (c *Coordinator) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Conversations returns every conversation, most recent first.
func (c *Coordinator) Conversations() []conversation.Conversation {
	return c.reg.ListSortedByRecency()
}

// Conversation returns one conversation.
func (c *Coordinator) Conversation(id string) (conversation.Conversation, bool) {
	return c.reg.FindByID(id)
}

// UnreadTotal sums unread counts across conversations.
func (c *Coordinator) UnreadTotal() int {
	return c.reg.TotalUnread()
}

// Toasts returns the live toasts, oldest first.
func (c *Coordinator) Toasts() []toast.Toast {
	return c.toasts.List()
}

// DismissToast removes a toast before it expires.
func (c *Coordinator) DismissToast(id uint64) bool {
	return c.toasts.Dismiss(id)
}

// TicketsNeedingRefresh returns the ids of tickets with unseen activity, sorted.
func (c *Coordinator) TicketsNeedingRefresh() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.ticketRefresh))
	for id := range c.ticketRefresh {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AckTicketRefresh clears the refresh flag for id.
func (c *Coordinator) AckTicketRefresh(id string) {
	c.mu.Lock()
	delete(c.ticketRefresh, id)
	c.mu.Unlock()
}

// Events streams state changes until ctx is cancelled.
func (c *Coordinator) Events(ctx context.Context) <-chan conversation.Event {
	ch, _ := c.events.Subscribe(ctx)
	return ch
}
