// ABOUTME: Response shapes for the marketplace REST endpoints
// ABOUTME: Ids are decoded as opaque strings whether the server sends numbers or strings

package api

import (
	"github.com/2389/house-notify/internal/event"
)

// Role is the marketplace role of a user.
type Role string

const (
	RoleUser     Role = "USER"
	RoleLandlord Role = "LANDLORD"
	RoleAdmin    Role = "ADMIN"
)

// Page is a paginated list.
type Page[T any] struct {
	Content       []T  `json:"content"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	Number        int  `json:"number"`
	Size          int  `json:"size"`
	Last          bool `json:"last"`
}

// PageRequest selects a page. Zero Size uses the client's page size.
type PageRequest struct {
	Page int
	Size int
}

// UserProfile is the authenticated user.
type UserProfile struct {
	ID        event.ID `json:"id"`
	Username  string   `json:"username"`
	FullName  string   `json:"fullName,omitempty"`
	AvatarURL string   `json:"avatarUrl,omitempty"`
	Email     string   `json:"email,omitempty"`
	Role      Role     `json:"role"`
}

// DisplayName returns the full name, falling back to the username.
func (u UserProfile) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Contact is a viewing request thread between a tenant and a landlord.
// LastMessage and LastMessageAt are only present on servers that expose
// thread activity in the listing.
type Contact struct {
	ID            event.ID   `json:"id"`
	HouseID       event.ID   `json:"houseId"`
	HouseTitle    string     `json:"houseTitle,omitempty"`
	TenantName    string     `json:"tenantName,omitempty"`
	LandlordName  string     `json:"landlordName,omitempty"`
	Message       string     `json:"message,omitempty"`
	Status        string     `json:"status,omitempty"`
	HandledAt     event.Time `json:"handledAt"`
	LastMessage   string     `json:"lastMessage,omitempty"`
	LastMessageAt event.Time `json:"lastMessageAt"`
}

// SupportTicket is a support ticket summary.
type SupportTicket struct {
	ID            event.ID   `json:"id"`
	Subject       string     `json:"subject"`
	Category      string     `json:"category,omitempty"`
	Status        string     `json:"status,omitempty"`
	LatestMessage string     `json:"latestMessage,omitempty"`
	CreatedAt     event.Time `json:"createdAt"`
	UpdatedAt     event.Time `json:"updatedAt"`
	RequesterID   event.ID   `json:"requesterId"`
	RequesterName string     `json:"requesterName,omitempty"`
	HandlerID     event.ID   `json:"handlerId"`
	HandlerName   string     `json:"handlerName,omitempty"`
}
