// ABOUTME: Routing of inbound broker messages
// ABOUTME: Echo, chat, support and admin-alert paths update registry, markers and toasts

package notify

import (
	"time"

	"github.com/2389/house-notify/internal/api"
	"github.com/2389/house-notify/internal/conversation"
	"github.com/2389/house-notify/internal/event"
	"github.com/2389/house-notify/internal/seen"
	"github.com/2389/house-notify/internal/toast"
)

// HandleIncoming decodes a raw frame received on topic and routes it.
// Payloads that fail to decode are logged and dropped.
func (c *Coordinator) HandleIncoming(topic string, raw []byte) {
	in, err := event.Decode(topic, raw)
	if err != nil {
		c.logger.Warn("dropping undecodable message", "topic", topic, "error", err)
		return
	}
	c.HandleInbound(in)
}

// HandleInbound routes one decoded message. Messages arriving while no
// session is running are dropped.
func (c *Coordinator) HandleInbound(in event.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("message handler panicked", "kind", in.Kind, "topic", in.Topic, "panic", r)
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		c.logger.Debug("dropping message, no session running", "kind", in.Kind)
		return
	}

	if sender := in.SenderID(); !sender.IsZero() && sender.String() == c.identity.UserID {
		c.handleEchoLocked(in)
		return
	}

	switch in.Kind {
	case event.KindSupport:
		c.handleSupportLocked(in.Support)
	case event.KindChat:
		c.handleChatLocked(in.Chat)
	case event.KindTicketUpdate:
		c.handleTicketUpdateLocked(in.Topic, in.Ticket)
	case event.KindCertification:
		c.handleCertificationLocked(in.Certification)
	}
}

func (c *Coordinator) messageTime(t event.Time) time.Time {
	if t.IsZero() {
		return c.now()
	}
	return t.Time
}

// handleEchoLocked treats the user's own message, typically sent from
// another device, as read.
func (c *Coordinator) handleEchoLocked(in event.Inbound) {
	switch in.Kind {
	case event.KindChat:
		id := in.Chat.ContactID.String()
		if c.reg.Update(id, func(cv *conversation.Conversation) { cv.Unread = 0 }) {
			c.publishConversationLocked(id)
		}
		c.advanceLocked(seen.Chat, id, c.messageTime(in.Chat.CreatedAt))
	case event.KindSupport:
		c.advanceLocked(seen.Support, in.Support.TicketID.String(), c.messageTime(in.Support.CreatedAt))
	}
}

func (c *Coordinator) handleChatLocked(msg *event.ChatMessage) {
	id := msg.ContactID.String()
	at := c.messageTime(msg.CreatedAt)

	conv, ok := c.reg.FindByID(id)
	if !ok {
		conv = conversation.Conversation{
			ContactID:   id,
			HouseID:     msg.HouseID.String(),
			HouseTitle:  firstNonEmpty(msg.HouseTitle, defaultHouseTitle),
			PartnerName: resolvePartnerName(c.identity.Role, msg),
		}
	} else {
		if conv.HouseID == "" && !msg.HouseID.IsZero() {
			conv.HouseID = msg.HouseID.String()
		}
		if conv.HouseTitle == "" && msg.HouseTitle != "" {
			conv.HouseTitle = msg.HouseTitle
		}
		if conv.PartnerName == "" {
			conv.PartnerName = resolvePartnerName(c.identity.Role, msg)
		}
	}

	preview := formatPreview(msg.Content, msg.ImageURLs)
	conv.LastMessage = preview
	conv.LastMessageAt = &at

	if c.focusContact == id {
		conv.Unread = 0
		c.reg.Upsert(conv)
		c.advanceLocked(seen.Chat, id, at)
		c.publishConversationLocked(id)
		return
	}

	conv.Unread++
	c.reg.Upsert(conv)
	c.publishConversationLocked(id)
	// A later refresh must not raise a catch-up toast for this same message.
	c.catchup.Mark(catchupKey{ns: seen.Chat, id: id, millis: at.UnixMilli()})

	c.enqueueLocked(toast.Toast{
		Category:   toast.CategoryChat,
		ContactID:  id,
		SenderName: firstNonEmpty(msg.SenderName, conv.PartnerName, defaultSender),
		Preview:    preview,
		Subject:    conv.HouseTitle,
		CreatedAt:  at,
	}, c.opts.ToastTimeout)
}

func (c *Coordinator) handleSupportLocked(msg *event.SupportMessage) {
	id := msg.TicketID.String()
	at := c.messageTime(msg.CreatedAt)

	if c.focusTicket == id {
		c.advanceLocked(seen.Support, id, at)
		c.markTicketRefreshLocked(id)
		return
	}

	c.enqueueLocked(toast.Toast{
		Category:   toast.CategorySupport,
		TicketID:   id,
		SenderName: firstNonEmpty(msg.SenderName, defaultSupport),
		Preview:    supportPreview(msg),
		Subject:    msg.TicketSubject,
		CreatedAt:  at,
	}, c.opts.ToastTimeout)
	c.markTicketRefreshLocked(id)
}

// handleTicketUpdateLocked handles ticket snapshots. On the admin topic a
// snapshot announces a new or changed ticket and raises an alert; on the
// user topic it only flags the ticket for refresh.
func (c *Coordinator) handleTicketUpdateLocked(topic string, tk *event.TicketUpdate) {
	id := tk.ID.String()
	if topic != event.AdminSupportTopic {
		c.markTicketRefreshLocked(id)
		return
	}

	c.enqueueLocked(toast.Toast{
		Category:   toast.CategorySupport,
		TicketID:   id,
		SenderName: firstNonEmpty(tk.RequesterName, defaultRequester),
		Preview:    firstNonEmpty(tk.LatestMessage, tk.Subject, defaultNewTicket),
		Subject:    firstNonEmpty(tk.Subject, defaultNewTicket),
		Status:     firstNonEmpty(tk.Status, defaultTicketStat),
		CreatedAt:  c.messageTime(tk.CreatedAt),
	}, c.opts.AdminToastTimeout)
	c.markTicketRefreshLocked(id)
}

func (c *Coordinator) handleCertificationLocked(cert *event.Certification) {
	if c.identity.Role != api.RoleAdmin {
		c.logger.Debug("ignoring certification alert for non-admin")
		return
	}
	c.enqueueLocked(toast.Toast{
		Category:        toast.CategoryCertification,
		CertificationID: cert.ID.String(),
		SenderName:      firstNonEmpty(cert.ApplicantName, defaultApplicant),
		Preview:         "requested landlord certification",
		Status:          firstNonEmpty(cert.Status, defaultCertStatus),
		CreatedAt:       c.messageTime(cert.CreatedAt),
	}, c.opts.AdminToastTimeout)
}
