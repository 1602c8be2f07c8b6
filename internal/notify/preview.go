// ABOUTME: Toast and conversation preview text
// ABOUTME: Truncation and placeholder wording for messages without text

package notify

import (
	"github.com/2389/house-notify/internal/api"
	"github.com/2389/house-notify/internal/event"
)

const previewRunes = 32

// Placeholder wording.
const (
	previewImage      = "sent an image"
	previewGeneric    = "sent a new message"
	defaultSender     = "New message"
	defaultSupport    = "Support"
	defaultRequester  = "User"
	defaultApplicant  = "Landlord"
	defaultTicketText = "New support message"
	defaultNewTicket  = "New support ticket"
	defaultHouseTitle = "Chat"
	defaultCertStatus = "PENDING"
	defaultTicketStat = "OPEN"
)

// formatPreview truncates content to 32 runes plus an ellipsis, or
// describes a message without text.
func formatPreview(content string, attachments []string) string {
	if content != "" {
		r := []rune(content)
		if len(r) > previewRunes {
			return string(r[:previewRunes]) + "…"
		}
		return content
	}
	if len(attachments) > 0 {
		return previewImage
	}
	return previewGeneric
}

func supportPreview(msg *event.SupportMessage) string {
	if msg.Content == "" && len(msg.AttachmentURLs) == 0 && msg.TicketSubject != "" {
		return "Ticket: " + msg.TicketSubject
	}
	return formatPreview(msg.Content, msg.AttachmentURLs)
}

// resolvePartnerName picks the name of the other party in a contact thread.
func resolvePartnerName(role api.Role, msg *event.ChatMessage) string {
	switch role {
	case api.RoleLandlord:
		return firstNonEmpty(msg.TenantName, msg.SenderName, "Tenant")
	case api.RoleUser:
		return firstNonEmpty(msg.LandlordName, msg.SenderName, "Landlord")
	}
	return firstNonEmpty(msg.SenderName, "User")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
