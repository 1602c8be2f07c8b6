// ABOUTME: Broker destination names shared with the server
// ABOUTME: Builders for per-conversation, per-ticket, per-user and admin topics

package event

import "strings"

const (
	// AdminCertificationsTopic carries new landlord certification requests.
	AdminCertificationsTopic = "/topic/admin/certifications"
	// AdminSupportTopic carries newly opened or updated support tickets.
	AdminSupportTopic = "/topic/admin/support"
)

// ContactTopic is the chat stream for one conversation.
func ContactTopic(contactID ID) string { return "/topic/contacts/" + contactID.String() }

// ContactSendDestination is where outbound chat messages are published.
func ContactSendDestination(contactID ID) string {
	return "/app/contacts/" + contactID.String() + "/messages"
}

// SupportTopic is the message stream for one support ticket.
func SupportTopic(ticketID ID) string { return "/topic/support/" + ticketID.String() }

// SupportSendDestination is where outbound support messages are published.
func SupportSendDestination(ticketID ID) string {
	return "/app/support/" + ticketID.String() + "/messages"
}

// UserTopic is the per-user notification stream.
func UserTopic(userID ID) string { return "/topic/users/" + userID.String() }

// IsUserTopic reports whether topic is a per-user notification stream.
func IsUserTopic(topic string) bool { return strings.HasPrefix(topic, "/topic/users/") }
