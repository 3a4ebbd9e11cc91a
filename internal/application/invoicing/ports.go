package invoicing

import (
	"context"

	"github.com/google/uuid"
)

// MailMessage is a single outgoing plain-text email
type MailMessage struct {
	To       string
	From     string
	FromName string
	ReplyTo  string
	Cc       []string
	Subject  string
	Body     string
}

// MailSender delivers reminder emails
type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// InvoiceLocker serializes reminder sends per invoice. The returned release
// function must be called exactly once.
type InvoiceLocker interface {
	Acquire(ctx context.Context, tenantID, invoiceID uuid.UUID) (release func(), err error)
}
