// ABOUTME: In-memory registry of the user's conversations keyed by contact id
// ABOUTME: Upsert, lookup, recency ordering and unread totals; no I/O

package conversation

import (
	"sort"
	"sync"
	"time"
)

// Conversation is the client-side summary of one contact thread.
type Conversation struct {
	ContactID     string
	HouseID       string
	HouseTitle    string
	PartnerName   string
	LastMessage   string
	LastMessageAt *time.Time
	Unread        int
}

func (c Conversation) clone() Conversation {
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		c.LastMessageAt = &t
	}
	return c
}

// Registry holds at most one Conversation per contact id. Values go in and
// come out by copy.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Conversation
	order   []string // newest-created first, used to break recency ties
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Conversation),
	}
}

// Upsert stores c under c.ContactID, replacing any existing entry. Entries
// seen for the first time go to the front of the tie-break order. Returns
// true if the entry was created. A conversation without a contact id is ignored.
func (r *Registry) Upsert(c Conversation) bool {
	if c.ContactID == "" {
		return false
	}
	if c.Unread < 0 {
		c.Unread = 0
	}
	v := c.clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[c.ContactID]; exists {
		r.entries[c.ContactID] = &v
		return false
	}
	r.entries[c.ContactID] = &v
	r.order = append([]string{c.ContactID}, r.order...)
	return true
}

// FindByID returns the conversation for id.
func (r *Registry) FindByID(id string) (Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.entries[id]
	if !ok {
		return Conversation{}, false
	}
	return c.clone(), true
}

// Update applies fn to the stored entry for id. Returns false if id is unknown.
func (r *Registry) Update(id string, fn func(*Conversation)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[id]
	if !ok {
		return false
	}
	fn(c)
	c.ContactID = id
	if c.Unread < 0 {
		c.Unread = 0
	}
	return true
}

// Replace discards every entry and loads list in the given order. Later
// duplicates of the same id overwrite earlier ones.
func (r *Registry) Replace(list []Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*Conversation, len(list))
	r.order = r.order[:0]
	for _, c := range list {
		if c.ContactID == "" {
			continue
		}
		v := c.clone()
		if v.Unread < 0 {
			v.Unread = 0
		}
		if _, exists := r.entries[c.ContactID]; !exists {
			r.order = append(r.order, c.ContactID)
		}
		r.entries[c.ContactID] = &v
	}
}

// ListSortedByRecency returns every conversation, most recent message first.
// Conversations without a message sort last; ties keep registry order.
func (r *Registry) ListSortedByRecency() []Conversation {
	r.mu.RLock()
	out := make([]Conversation, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out
}

// TotalUnread sums the unread counts of every conversation.
func (r *Registry) TotalUnread() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, c := range r.entries {
		total += c.Unread
	}
	return total
}

// Len returns the number of conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes every conversation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*Conversation)
	r.order = nil
}
