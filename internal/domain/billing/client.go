package billing

import (
	"strings"

	"github.com/freelance/backend/internal/domain/shared"
)

// Client is a party that receives invoices
type Client struct {
	shared.BaseAggregateRoot
	Name    string
	Email   string
	Phone   string
	Company string
	Address string
}

// ClientOption configures optional client fields
type ClientOption func(*Client)

// WithPhone sets the phone number
func WithPhone(phone string) ClientOption {
	return func(c *Client) { c.Phone = strings.TrimSpace(phone) }
}

// WithCompany sets the company name
func WithCompany(company string) ClientOption {
	return func(c *Client) { c.Company = strings.TrimSpace(company) }
}

// WithAddress sets the postal address
func WithAddress(address string) ClientOption {
	return func(c *Client) { c.Address = strings.TrimSpace(address) }
}

// NewClient creates a client. Email is stored lower-cased.
func NewClient(name, email string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              strings.TrimSpace(name),
		Email:             NormalizeEmail(email),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Update replaces the client's contact details
func (c *Client) Update(name, email, phone, company, address string) error {
	next := *c
	next.Name = strings.TrimSpace(name)
	next.Email = NormalizeEmail(email)
	next.Phone = strings.TrimSpace(phone)
	next.Company = strings.TrimSpace(company)
	next.Address = strings.TrimSpace(address)
	if err := next.validate(); err != nil {
		return err
	}
	*c = next
	c.Touch()
	return nil
}

// DisplayName returns "Name (Company)" when a company is set
func (c *Client) DisplayName() string {
	if c.Company == "" {
		return c.Name
	}
	return c.Name + " (" + c.Company + ")"
}

func (c *Client) validate() error {
	if c.Name == "" {
		return validationError("client name is required")
	}
	if len(c.Name) > 200 {
		return validationError("client name cannot exceed 200 characters")
	}
	return ValidateEmail(c.Email)
}

// NormalizeEmail trims and lower-cases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks for a single @ with text on both sides
func ValidateEmail(email string) error {
	if email == "" {
		return validationError("client email is required")
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return validationError("invalid email address %q", email)
	}
	return nil
}
