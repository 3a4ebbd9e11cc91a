package invoicing

import (
	"regexp"
	"strings"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// FallbackGreetingName is used when no administration contact is known
const FallbackGreetingName = "Contactpersoon"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail performs the syntactic address check used before any send
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ClientContact is a person at the client organisation
type ClientContact struct {
	ID               uuid.UUID
	FirstName        string
	LastName         string
	Email            string
	IsAdministration bool
}

// Client is the invoiced organisation. It is read-only for this subsystem.
type Client struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	CompanyName string
	Email       string
	Contacts    []ClientContact
}

// AdministrationContact returns the contact flagged as the billing administration, or nil
func (c *Client) AdministrationContact() *ClientContact {
	for i := range c.Contacts {
		if c.Contacts[i].IsAdministration {
			return &c.Contacts[i]
		}
	}
	return nil
}

// Recipient is who a reminder is addressed to
type Recipient struct {
	Email        string
	GreetingName string
}

// ResolveRecipient picks the administration contact's address, falling back to the
// client's primary address. It fails when neither is a valid email.
func (c *Client) ResolveRecipient() (Recipient, error) {
	greeting := FallbackGreetingName
	candidates := make([]string, 0, 2)
	if admin := c.AdministrationContact(); admin != nil {
		if name := strings.TrimSpace(admin.FirstName); name != "" {
			greeting = name
		}
		candidates = append(candidates, admin.Email)
	}
	candidates = append(candidates, c.Email)

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if IsValidEmail(candidate) {
			return Recipient{Email: candidate, GreetingName: greeting}, nil
		}
	}
	return Recipient{}, shared.NewValidationError("Client does not have a valid email address")
}

// SenderProfile is the user on whose behalf a reminder is sent
type SenderProfile struct {
	UserID       uuid.UUID
	FirstName    string
	LastName     string
	BusinessName string
	Email        string
}

// DisplayName returns "First Last from Business", falling back to the full
// name and then to the email address
func (p *SenderProfile) DisplayName() string {
	fullName := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	business := strings.TrimSpace(p.BusinessName)
	switch {
	case fullName != "" && business != "":
		return fullName + " from " + business
	case fullName != "":
		return fullName
	default:
		return p.Email
	}
}
