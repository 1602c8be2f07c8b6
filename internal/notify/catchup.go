// ABOUTME: Offline catch-up against persisted seen markers
// ABOUTME: One toast per thread with activity newer than its marker; first sight only records

package notify

import (
	"context"

	"github.com/2389/house-notify/internal/api"
	"github.com/2389/house-notify/internal/conversation"
	"github.com/2389/house-notify/internal/seen"
	"github.com/2389/house-notify/internal/toast"
)

type catchupKey struct {
	ns     seen.Namespace
	id     string
	millis int64
}

// catchUpContactsLocked compares every conversation's last activity with
// its chat marker. An absent marker is initialised without a toast.
func (c *Coordinator) catchUpContactsLocked() {
	raised := 0
	for _, conv := range c.reg.ListSortedByRecency() {
		if conv.LastMessageAt == nil || conv.LastMessageAt.IsZero() {
			continue
		}
		last := *conv.LastMessageAt
		marker, ok := c.seen.Get(seen.Chat, conv.ContactID)
		if !ok {
			c.seen.Set(seen.Chat, conv.ContactID, last)
			continue
		}
		if last.UnixMilli() <= marker.UnixMilli() {
			continue
		}
		if c.focusContact == conv.ContactID {
			c.advanceLocked(seen.Chat, conv.ContactID, last)
			continue
		}
		if c.catchup.CheckAndMark(catchupKey{ns: seen.Chat, id: conv.ContactID, millis: last.UnixMilli()}) {
			continue
		}

		c.enqueueLocked(toast.Toast{
			Category:   toast.CategoryChat,
			ContactID:  conv.ContactID,
			SenderName: firstNonEmpty(conv.PartnerName, defaultSender),
			Preview:    formatPreview(conv.LastMessage, nil),
			Subject:    conv.HouseTitle,
			CreatedAt:  last,
		}, c.opts.ToastTimeout)
		raised++
	}
	if raised > 0 {
		c.logger.Info("raised offline catch-up toasts", "namespace", seen.Chat, "count", raised)
	}
}

// SyncSupportTickets runs offline catch-up for tickets by their update time.
func (c *Coordinator) SyncSupportTickets(tickets []api.SupportTicket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.syncTicketsLocked(tickets)
}

func (c *Coordinator) syncTicketsLocked(tickets []api.SupportTicket) {
	raised := 0
	for _, tk := range tickets {
		id := tk.ID.String()
		if id == "" || tk.UpdatedAt.IsZero() {
			continue
		}
		last := tk.UpdatedAt.Time
		marker, ok := c.seen.Get(seen.Support, id)
		if !ok {
			c.seen.Set(seen.Support, id, last)
			continue
		}
		if last.UnixMilli() <= marker.UnixMilli() {
			continue
		}
		if c.focusTicket == id {
			c.advanceLocked(seen.Support, id, last)
			continue
		}
		if c.catchup.CheckAndMark(catchupKey{ns: seen.Support, id: id, millis: last.UnixMilli()}) {
			continue
		}

		c.enqueueLocked(toast.Toast{
			Category:   toast.CategorySupport,
			TicketID:   id,
			SenderName: firstNonEmpty(tk.RequesterName, defaultRequester),
			Preview:    firstNonEmpty(tk.LatestMessage, tk.Subject, defaultTicketText),
			Subject:    tk.Subject,
			Status:     tk.Status,
			CreatedAt:  last,
		}, c.opts.ToastTimeout)
		raised++
	}
	if raised > 0 {
		c.logger.Info("raised offline catch-up toasts", "namespace", seen.Support, "count", raised)
	}
}

// RefreshConversations reloads the contact list over REST and re-runs
// catch-up. Unread counts and newer local activity survive the reload, as do
// conversations the server did not list. Catch-up toasts already raised for
// the same activity within the dedupe window are not repeated.
func (c *Coordinator) RefreshConversations(ctx context.Context) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return ErrNotStarted
	}
	gen := c.gen
	role := c.identity.Role
	c.mu.Unlock()

	fresh := c.fetchContacts(ctx, role)
	tickets := c.fetchTickets(ctx, role)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return ErrInterrupted
	}

	listed := make(map[string]bool, len(fresh))
	merged := make([]conversation.Conversation, 0, len(fresh))
	for _, conv := range fresh {
		listed[conv.ContactID] = true
		if local, ok := c.reg.FindByID(conv.ContactID); ok {
			conv.Unread = local.Unread
			if local.LastMessageAt != nil && (conv.LastMessageAt == nil || local.LastMessageAt.After(*conv.LastMessageAt)) {
				conv.LastMessage = local.LastMessage
				conv.LastMessageAt = local.LastMessageAt
			}
			if conv.PartnerName == "" {
				conv.PartnerName = local.PartnerName
			}
		}
		merged = append(merged, conv)
	}
	for _, local := range c.reg.ListSortedByRecency() {
		if !listed[local.ContactID] {
			merged = append(merged, local)
		}
	}

	c.reg.Replace(merged)
	c.catchUpContactsLocked()
	c.syncTicketsLocked(tickets)
	c.events.Publish(conversation.Event{Type: conversation.EventConversationUpdated, UnreadTotal: c.reg.TotalUnread()})
	return nil
}
