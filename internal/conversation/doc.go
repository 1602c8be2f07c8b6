// Package conversation holds the client-side view of the user's contact
// conversations and fans state changes out to interested listeners.
//
// # Registry
//
// Registry maps a contact id to a Conversation summary: counterpart name,
// listing, last message preview, last message time and unread count.
//
//	reg := conversation.NewRegistry()
//	reg.Upsert(conversation.Conversation{ContactID: "7", PartnerName: "Ana"})
//	reg.Update("7", func(c *conversation.Conversation) { c.Unread++ })
//	total := reg.TotalUnread()
//
// Upsert is idempotent per id: any number of upserts for one id leave exactly
// one entry holding the last value written. ListSortedByRecency orders by
// LastMessageAt descending with nil last; ties keep creation order, newest
// first.
//
// The registry does no I/O and knows nothing about the transport. The notify
// package owns one per user session.
//
// # Broadcaster
//
// Broadcaster publishes Events (conversation_updated, toast_added,
// toast_removed, status_changed, ticket_refresh, reset) to subscribers:
//
//	ch, _ := b.Subscribe(ctx)
//	for ev := range ch {
//		render(ev)
//	}
//
// Publish never blocks. A subscriber whose 64-slot buffer is full misses the
// event; listeners re-read state from the coordinator on each event rather
// than relying on event payloads alone.
package conversation
