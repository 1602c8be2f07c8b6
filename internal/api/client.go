// ABOUTME: HTTP client for the marketplace REST API
// ABOUTME: Authenticates with X-Auth-Token and decodes JSON pages

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultPageSize is the page size used when a PageRequest leaves Size zero.
const DefaultPageSize = 50

const maxErrorBody = 4096

// Error is a non-2xx response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.Status)
	}
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 or 403 response.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// Client talks to the REST API on behalf of one token.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	client   *http.Client
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithPageSize sets the default page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for baseURL authenticating with token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		token:    token,
		pageSize: DefaultPageSize,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "api")
	return c
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*UserProfile, error) {
	var out UserProfile
	if err := c.get(ctx, "/api/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MineContacts lists the contact threads the user opened as a tenant.
func (c *Client) MineContacts(ctx context.Context, req PageRequest) (*Page[Contact], error) {
	return getPage[Contact](ctx, c, "/api/contacts/mine", req)
}

// LandlordContacts lists the contact threads on the landlord's houses.
func (c *Client) LandlordContacts(ctx context.Context, req PageRequest) (*Page[Contact], error) {
	return getPage[Contact](ctx, c, "/api/contacts/landlord", req)
}

// SupportTickets lists the user's own support tickets.
func (c *Client) SupportTickets(ctx context.Context, req PageRequest) (*Page[SupportTicket], error) {
	return getPage[SupportTicket](ctx, c, "/api/support/tickets", req)
}

// AdminSupportTickets lists every support ticket. Admin only.
func (c *Client) AdminSupportTickets(ctx context.Context, req PageRequest) (*Page[SupportTicket], error) {
	return getPage[SupportTicket](ctx, c, "/api/support/admin/tickets", req)
}

// ContactsFor returns the first page of contact threads visible to role.
// Roles without contact threads get an empty list.
func (c *Client) ContactsFor(ctx context.Context, role Role) ([]Contact, error) {
	var (
		page *Page[Contact]
		err  error
	)
	switch role {
	case RoleUser:
		page, err = c.MineContacts(ctx, PageRequest{})
	case RoleLandlord:
		page, err = c.LandlordContacts(ctx, PageRequest{})
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return page.Content, nil
}

// TicketsFor returns the first page of support tickets visible to role.
func (c *Client) TicketsFor(ctx context.Context, role Role) ([]SupportTicket, error) {
	var (
		page *Page[SupportTicket]
		err  error
	)
	if role == RoleAdmin {
		page, err = c.AdminSupportTickets(ctx, PageRequest{})
	} else {
		page, err = c.SupportTickets(ctx, PageRequest{})
	}
	if err != nil {
		return nil, err
	}
	return page.Content, nil
}

func getPage[T any](ctx context.Context, c *Client, path string, req PageRequest) (*Page[T], error) {
	size := req.Size
	if size <= 0 {
		size = c.pageSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("size", strconv.Itoa(size))

	var out Page[T]
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request complete",
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// handleErrorResponse extracts the server message from a non-2xx response.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		if msg != "" {
			return &Error{Status: resp.StatusCode, Message: msg}
		}
	}
	return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
