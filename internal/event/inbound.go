// ABOUTME: Tagged union for payloads pushed by the broker
// ABOUTME: Decode classifies raw JSON into chat, support, ticket or certification variants

package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrAmbiguousPayload is returned when a payload names both a conversation and a ticket.
var ErrAmbiguousPayload = errors.New("payload names both a contact and a ticket")

// ErrUnknownPayload is returned when a payload matches no known variant.
var ErrUnknownPayload = errors.New("payload matches no known message kind")

// Kind discriminates the populated variant of an Inbound.
type Kind string

const (
	KindChat          Kind = "chat"
	KindSupport       Kind = "support"
	KindTicketUpdate  Kind = "ticket_update"
	KindCertification Kind = "certification"
)

// ChatMessage is a message posted in a contact conversation.
type ChatMessage struct {
	ID           ID       `json:"id"`
	ContactID    ID       `json:"contactId"`
	SenderID     ID       `json:"senderId"`
	SenderName   string   `json:"senderName,omitempty"`
	SenderAvatar string   `json:"senderAvatar,omitempty"`
	SenderRole   string   `json:"senderRole,omitempty"`
	Content      string   `json:"content,omitempty"`
	ImageURLs    []string `json:"imageUrls,omitempty"`
	CreatedAt    Time     `json:"createdAt"`
	HouseID      ID       `json:"contactHouseId"`
	HouseTitle   string   `json:"contactHouseTitle,omitempty"`
	TenantName   string   `json:"contactTenantName,omitempty"`
	LandlordName string   `json:"contactLandlordName,omitempty"`
}

// SupportMessage is a message posted in a support ticket.
type SupportMessage struct {
	ID             ID       `json:"id"`
	TicketID       ID       `json:"ticketId"`
	TicketSubject  string   `json:"ticketSubject,omitempty"`
	SenderID       ID       `json:"senderId"`
	SenderName     string   `json:"senderName,omitempty"`
	SenderAvatar   string   `json:"senderAvatar,omitempty"`
	SenderRole     string   `json:"senderRole,omitempty"`
	Content        string   `json:"content,omitempty"`
	AttachmentURLs []string `json:"attachmentUrls,omitempty"`
	CreatedAt      Time     `json:"createdAt"`
}

// TicketUpdate is a support ticket snapshot pushed when a ticket is opened or changes.
type TicketUpdate struct {
	ID            ID     `json:"id"`
	Subject       string `json:"subject"`
	Category      string `json:"category,omitempty"`
	Status        string `json:"status,omitempty"`
	LatestMessage string `json:"latestMessage,omitempty"`
	CreatedAt     Time   `json:"createdAt"`
	UpdatedAt     Time   `json:"updatedAt"`
	RequesterID   ID     `json:"requesterId"`
	RequesterName string `json:"requesterName,omitempty"`
	HandlerID     ID     `json:"handlerId"`
	HandlerName   string `json:"handlerName,omitempty"`
}

// Certification is a landlord certification request broadcast to admins.
type Certification struct {
	ID            ID       `json:"id"`
	Status        string   `json:"status,omitempty"`
	DocumentURLs  []string `json:"documentUrls,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	CreatedAt     Time     `json:"createdAt"`
	ReviewedAt    Time     `json:"reviewedAt"`
	ApplicantID   ID       `json:"applicantId"`
	ApplicantName string   `json:"applicantName,omitempty"`
}

// Inbound is one decoded broker payload. Exactly one of the variant
// pointers is non-nil, the one named by Kind.
type Inbound struct {
	Kind          Kind
	Topic         string
	Chat          *ChatMessage
	Support       *SupportMessage
	Ticket        *TicketUpdate
	Certification *Certification
}

// SenderID returns the sender of a chat or support message, or "" for other kinds.
func (in Inbound) SenderID() ID {
	switch in.Kind {
	case KindChat:
		return in.Chat.SenderID
	case KindSupport:
		return in.Support.SenderID
	}
	return ""
}

// probe holds the fields Decode needs to pick a variant.
type probe struct {
	Kind      string `json:"kind"`
	ContactID ID     `json:"contactId"`
	TicketID  ID     `json:"ticketId"`
	ID        ID     `json:"id"`
	Subject   string `json:"subject"`
}

// Decode classifies a raw payload received on topic.
func Decode(topic string, raw []byte) (Inbound, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return Inbound{}, fmt.Errorf("decoding payload: %w", err)
	}

	kind, err := classify(topic, p)
	if err != nil {
		return Inbound{}, err
	}

	in := Inbound{Kind: kind, Topic: topic}
	switch kind {
	case KindChat:
		in.Chat = &ChatMessage{}
		err = json.Unmarshal(raw, in.Chat)
	case KindSupport:
		in.Support = &SupportMessage{}
		err = json.Unmarshal(raw, in.Support)
	case KindTicketUpdate:
		in.Ticket = &TicketUpdate{}
		err = json.Unmarshal(raw, in.Ticket)
	case KindCertification:
		in.Certification = &Certification{}
		err = json.Unmarshal(raw, in.Certification)
	}
	if err != nil {
		return Inbound{}, fmt.Errorf("decoding %s payload: %w", kind, err)
	}
	return in, nil
}

func classify(topic string, p probe) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(p.Kind))) {
	case KindChat:
		if p.ContactID.IsZero() || !p.TicketID.IsZero() {
			return "", fmt.Errorf("%w: kind chat requires only contactId", ErrUnknownPayload)
		}
		return KindChat, nil
	case KindSupport:
		if p.TicketID.IsZero() || !p.ContactID.IsZero() {
			return "", fmt.Errorf("%w: kind support requires only ticketId", ErrUnknownPayload)
		}
		return KindSupport, nil
	}

	switch topic {
	case AdminCertificationsTopic:
		if p.ID.IsZero() {
			return "", fmt.Errorf("%w: certification without id", ErrUnknownPayload)
		}
		return KindCertification, nil
	case AdminSupportTopic:
		if p.ID.IsZero() {
			return "", fmt.Errorf("%w: ticket without id", ErrUnknownPayload)
		}
		return KindTicketUpdate, nil
	}

	hasContact := !p.ContactID.IsZero()
	hasTicket := !p.TicketID.IsZero()
	switch {
	case hasContact && hasTicket:
		return "", ErrAmbiguousPayload
	case hasContact:
		return KindChat, nil
	case hasTicket:
		return KindSupport, nil
	case !p.ID.IsZero() && p.Subject != "":
		return KindTicketUpdate, nil
	}
	return "", ErrUnknownPayload
}
