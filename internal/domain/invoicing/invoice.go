package invoicing

import (
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeInvoice is the aggregate type name used in events and audit entries
const AggregateTypeInvoice = "invoice"

// DefaultCurrency is used when an invoice carries no currency
const DefaultCurrency = "EUR"

// Invoice is the aggregate root whose status caches how far collection has progressed.
// Status only changes through TransitionTo (user edges) and AdvanceReminderStage
// (bookkeeping after a reminder send).
type Invoice struct {
	shared.TenantAggregateRoot
	ClientID      uuid.UUID
	InvoiceNumber string
	Status        InvoiceStatus
	InvoiceDate   time.Time
	DueDate       time.Time
	SentAt        *time.Time
	PaidAt        *time.Time
	TotalAmount   decimal.Decimal
	PaidAmount    decimal.Decimal
	Currency      string
}

// NewInvoice creates a draft invoice
func NewInvoice(
	tenantID, clientID uuid.UUID,
	invoiceNumber string,
	invoiceDate, dueDate time.Time,
	totalAmount decimal.Decimal,
) (*Invoice, error) {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return nil, shared.NewValidationError("Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewValidationError("Invoice number cannot exceed 50 characters")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewValidationError("Client ID cannot be empty")
	}
	if totalAmount.IsNegative() {
		return nil, shared.NewValidationError("Total amount cannot be negative")
	}
	if dueDate.Before(invoiceDate) {
		return nil, shared.NewValidationError("Due date cannot be before invoice date")
	}

	return &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ClientID:            clientID,
		InvoiceNumber:       invoiceNumber,
		Status:              InvoiceStatusDraft,
		InvoiceDate:         invoiceDate,
		DueDate:             dueDate,
		TotalAmount:         totalAmount,
		PaidAmount:          decimal.Zero,
		Currency:            DefaultCurrency,
	}, nil
}

// TransitionTo moves the invoice along a user edge of the status table and applies
// the side effects of the target status. It returns a conflict for an absent edge.
func (inv *Invoice) TransitionTo(target InvoiceStatus, now time.Time) error {
	if !target.IsValid() {
		return shared.NewValidationError("Invalid invoice status %q", target)
	}
	if !inv.Status.CanTransitionTo(target) {
		return NewInvalidTransitionError(inv.Status, target)
	}

	from := inv.Status
	inv.Status = target
	inv.applySideEffects(target, now)
	inv.touch(now)
	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from, target, now))
	return nil
}

func (inv *Invoice) applySideEffects(target InvoiceStatus, now time.Time) {
	switch target {
	case InvoiceStatusSent:
		inv.SentAt = &now
	case InvoiceStatusPaid:
		inv.PaidAt = &now
		inv.PaidAmount = inv.TotalAmount
	case InvoiceStatusCancelled:
		inv.SentAt = nil
		inv.PaidAt = nil
	case InvoiceStatusDraft:
		inv.SentAt = nil
		inv.PaidAt = nil
		inv.PaidAmount = decimal.Zero
	case InvoiceStatusPartial, InvoiceStatusOverdue,
		InvoiceStatusOverdueReminder1, InvoiceStatusOverdueReminder2, InvoiceStatusOverdueReminder3:
		// status only
	}
}

// AdvanceReminderStage records that a reminder at level went out by moving the status
// to overdue_reminder_N. It never moves backwards and never leaves a settled or
// cancelled invoice. It returns false when the status was left unchanged.
func (inv *Invoice) AdvanceReminderStage(level ReminderLevel, now time.Time) (bool, error) {
	target, err := StatusForReminderLevel(level)
	if err != nil {
		return false, err
	}
	if !inv.Status.IsOpenForCollection() {
		return false, shared.NewConflictError("Cannot record a reminder for an invoice that is %s", inv.Status)
	}
	if inv.Status.ReminderStage() >= level {
		return false, nil
	}

	from := inv.Status
	inv.Status = target
	inv.touch(now)
	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from, target, now))
	return true, nil
}

// IsOverdue reports whether a sent invoice is past its due date
func (inv *Invoice) IsOverdue(now time.Time) bool {
	return inv.Status == InvoiceStatusSent && inv.DueDate.Before(now)
}

// OutstandingAmount returns the amount still due
func (inv *Invoice) OutstandingAmount() decimal.Decimal {
	return inv.TotalAmount.Sub(inv.PaidAmount)
}

func (inv *Invoice) touch(now time.Time) {
	inv.UpdatedAt = now
	inv.IncrementVersion()
}
