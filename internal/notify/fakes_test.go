// ABOUTME: Test doubles for the coordinator: scripted transport, contact source and clock
// ABOUTME: The fake transport delivers frames synchronously through registered handlers

package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/2389/house-notify/internal/api"
	"github.com/2389/house-notify/internal/transport"
)

type fakeHandle struct {
	tr      *fakeTransport
	topic   string
	handler transport.Handler

	mu     sync.Mutex
	active bool
}

func (h *fakeHandle) Topic() string { return h.topic }

func (h *fakeHandle) Unsubscribe() {
	h.mu.Lock()
	h.active = false
	h.mu.Unlock()
}

func (h *fakeHandle) isActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

type publishedMsg struct {
	destination string
	payload     any
}

type fakeTransport struct {
	cb transport.Callbacks

	mu          sync.Mutex
	tokens      []string
	disconnects int
	handles     []*fakeHandle
	published   []publishedMsg
	publishErr  error
	status      transport.Status
}

func (f *fakeTransport) Connect(token string) {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.status = transport.StatusConnected
	f.mu.Unlock()

	if f.cb.OnStatus != nil {
		f.cb.OnStatus(transport.StatusConnected)
	}
	if f.cb.OnConnected != nil {
		f.cb.OnConnected()
	}
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	f.status = transport.StatusIdle
	f.mu.Unlock()
}

func (f *fakeTransport) Subscribe(topic string, handler transport.Handler) transport.Handle {
	h := &fakeHandle{tr: f, topic: topic, handler: handler, active: true}
	f.mu.Lock()
	f.handles = append(f.handles, h)
	f.mu.Unlock()
	return h
}

func (f *fakeTransport) Publish(destination string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMsg{destination, payload})
	return nil
}

func (f *fakeTransport) Status() transport.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// deliver hands body to every active handler on topic and returns how many ran.
func (f *fakeTransport) deliver(topic, body string) int {
	f.mu.Lock()
	var targets []*fakeHandle
	for _, h := range f.handles {
		if h.topic == topic && h.isActive() {
			targets = append(targets, h)
		}
	}
	f.mu.Unlock()

	for _, h := range targets {
		h.handler(topic, []byte(body))
	}
	return len(targets)
}

// deliverIgnoringUnsubscribe calls every handler ever registered on topic,
// as a transport that races an unsubscribe might.
func (f *fakeTransport) deliverIgnoringUnsubscribe(topic, body string) {
	f.mu.Lock()
	handles := append([]*fakeHandle(nil), f.handles...)
	f.mu.Unlock()
	for _, h := range handles {
		if h.topic == topic {
			h.handler(topic, []byte(body))
		}
	}
}

func (f *fakeTransport) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, h := range f.handles {
		if h.isActive() {
			out = append(out, h.topic)
		}
	}
	return out
}

type transportFactory struct {
	mu      sync.Mutex
	created []*fakeTransport
}

func (tf *transportFactory) New(cb transport.Callbacks) Transport {
	f := &fakeTransport{cb: cb, status: transport.StatusIdle}
	tf.mu.Lock()
	tf.created = append(tf.created, f)
	tf.mu.Unlock()
	return f
}

func (tf *transportFactory) count() int {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return len(tf.created)
}

func (tf *transportFactory) last() *fakeTransport {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.created[len(tf.created)-1]
}

type fakeContacts struct {
	mu       sync.Mutex
	contacts []api.Contact
	err      error
	roles    []api.Role
	block    chan struct{}
	entered  chan struct{} // receives once per call before block is awaited
}

func (f *fakeContacts) ContactsFor(ctx context.Context, role api.Role) ([]api.Contact, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles = append(f.roles, role)
	if f.err != nil {
		return nil, f.err
	}
	return append([]api.Contact(nil), f.contacts...), nil
}

func (f *fakeContacts) set(contacts []api.Contact) {
	f.mu.Lock()
	f.contacts = contacts
	f.mu.Unlock()
}

type fakeTickets struct {
	tickets []api.SupportTicket
	err     error
}

func (f *fakeTickets) TicketsFor(context.Context, api.Role) ([]api.SupportTicket, error) {
	return f.tickets, f.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errBackendDown = errors.New("backend down")
