package invoicing

import (
	"fmt"
	"strings"

	"github.com/erp/invoicing/internal/domain/shared"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft            InvoiceStatus = "draft"
	InvoiceStatusSent             InvoiceStatus = "sent"
	InvoiceStatusPartial          InvoiceStatus = "partial"
	InvoiceStatusOverdue          InvoiceStatus = "overdue"
	InvoiceStatusOverdueReminder1 InvoiceStatus = "overdue_reminder_1"
	InvoiceStatusOverdueReminder2 InvoiceStatus = "overdue_reminder_2"
	InvoiceStatusOverdueReminder3 InvoiceStatus = "overdue_reminder_3"
	InvoiceStatusPaid             InvoiceStatus = "paid"
	InvoiceStatusCancelled        InvoiceStatus = "cancelled"
)

var allInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusPartial,
	InvoiceStatusOverdue,
	InvoiceStatusOverdueReminder1,
	InvoiceStatusOverdueReminder2,
	InvoiceStatusOverdueReminder3,
	InvoiceStatusPaid,
	InvoiceStatusCancelled,
}

// AllInvoiceStatuses returns every known status in lifecycle order
func AllInvoiceStatuses() []InvoiceStatus {
	out := make([]InvoiceStatus, len(allInvoiceStatuses))
	copy(out, allInvoiceStatuses)
	return out
}

// ParseInvoiceStatus converts a raw string into an InvoiceStatus
func ParseInvoiceStatus(raw string) (InvoiceStatus, error) {
	s := InvoiceStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.NewValidationError("Invalid invoice status %q", raw)
	}
	return s, nil
}

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPartial, InvoiceStatusOverdue,
		InvoiceStatusOverdueReminder1, InvoiceStatusOverdueReminder2, InvoiceStatusOverdueReminder3,
		InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// AllowedTransitions returns the statuses a user may move an invoice to.
// Every status must have a case here; the table test walks AllInvoiceStatuses.
func (s InvoiceStatus) AllowedTransitions() []InvoiceStatus {
	switch s {
	case InvoiceStatusDraft:
		return []InvoiceStatus{InvoiceStatusSent, InvoiceStatusCancelled}
	case InvoiceStatusSent:
		return []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusPartial, InvoiceStatusOverdue, InvoiceStatusCancelled}
	case InvoiceStatusPartial:
		return []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled}
	case InvoiceStatusOverdue, InvoiceStatusOverdueReminder1, InvoiceStatusOverdueReminder2, InvoiceStatusOverdueReminder3:
		return []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusPartial, InvoiceStatusCancelled}
	case InvoiceStatusPaid:
		return []InvoiceStatus{}
	case InvoiceStatusCancelled:
		return []InvoiceStatus{InvoiceStatusDraft}
	default:
		return []InvoiceStatus{}
	}
}

// CanTransitionTo reports whether target is a legal next status
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	for _, allowed := range s.AllowedTransitions() {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true when no user transition leaves the status
func (s InvoiceStatus) IsTerminal() bool {
	return len(s.AllowedTransitions()) == 0
}

// ReminderStage returns N for overdue_reminder_N and zero for every other status
func (s InvoiceStatus) ReminderStage() ReminderLevel {
	switch s {
	case InvoiceStatusOverdueReminder1:
		return ReminderLevelGentle
	case InvoiceStatusOverdueReminder2:
		return ReminderLevelFollowUp
	case InvoiceStatusOverdueReminder3:
		return ReminderLevelFinal
	default:
		return 0
	}
}

// IsOpenForCollection reports whether the invoice still awaits payment
func (s InvoiceStatus) IsOpenForCollection() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusPartial, InvoiceStatusOverdue,
		InvoiceStatusOverdueReminder1, InvoiceStatusOverdueReminder2, InvoiceStatusOverdueReminder3:
		return true
	default:
		return false
	}
}

// StatusForReminderLevel returns the overdue_reminder_N status recorded after sending level
func StatusForReminderLevel(level ReminderLevel) (InvoiceStatus, error) {
	switch level {
	case ReminderLevelGentle:
		return InvoiceStatusOverdueReminder1, nil
	case ReminderLevelFollowUp:
		return InvoiceStatusOverdueReminder2, nil
	case ReminderLevelFinal:
		return InvoiceStatusOverdueReminder3, nil
	default:
		return "", shared.NewValidationError("Invalid reminder level %d", level)
	}
}

// NewInvalidTransitionError builds the conflict returned for an absent edge
func NewInvalidTransitionError(from, to InvoiceStatus) *shared.DomainError {
	return shared.NewConflictError("Invalid status transition: cannot change from %q to %q", from, to)
}

// TransitionMessage returns the confirmation shown after a successful user transition
func TransitionMessage(invoiceNumber string, to InvoiceStatus) string {
	switch to {
	case InvoiceStatusSent:
		return fmt.Sprintf("Invoice %s marked as sent", invoiceNumber)
	case InvoiceStatusPaid:
		return fmt.Sprintf("Invoice %s marked as paid", invoiceNumber)
	case InvoiceStatusPartial:
		return fmt.Sprintf("Invoice %s marked as partially paid", invoiceNumber)
	case InvoiceStatusOverdue:
		return fmt.Sprintf("Invoice %s marked as overdue", invoiceNumber)
	case InvoiceStatusCancelled:
		return fmt.Sprintf("Invoice %s cancelled", invoiceNumber)
	case InvoiceStatusDraft:
		return fmt.Sprintf("Invoice %s restored to draft", invoiceNumber)
	default:
		return fmt.Sprintf("Invoice %s status updated to %s", invoiceNumber, to)
	}
}
