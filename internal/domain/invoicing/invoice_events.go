package invoicing

import (
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type names
const (
	EventTypeInvoiceStatusChanged     = "InvoiceStatusChanged"
	EventTypeReminderSent             = "ReminderSent"
	EventTypeReminderBookkeepingStale = "ReminderBookkeepingStale"
	EventTypeReminderCacheReconciled  = "ReminderCacheReconciled"
)

// InvoiceStatusChangedEvent is raised whenever the invoice status changes
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID     `json:"invoice_id"`
	InvoiceNumber string        `json:"invoice_number"`
	FromStatus    InvoiceStatus `json:"from_status"`
	ToStatus      InvoiceStatus `json:"to_status"`
}

// EventType returns the event type name
func (e *InvoiceStatusChangedEvent) EventType() string {
	return EventTypeInvoiceStatusChanged
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, from, to InvoiceStatus, at time.Time) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, AggregateTypeInvoice, inv.ID, inv.TenantID, at),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		FromStatus:      from,
		ToStatus:        to,
	}
}

// ReminderSentEvent is raised after a reminder email left the system
type ReminderSentEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID     `json:"invoice_id"`
	ReminderID     uuid.UUID     `json:"reminder_id"`
	Level          ReminderLevel `json:"level"`
	RecipientEmail string        `json:"recipient_email"`
	SentAt         time.Time     `json:"sent_at"`
	Duplicate      bool          `json:"duplicate"`
}

// EventType returns the event type name
func (e *ReminderSentEvent) EventType() string {
	return EventTypeReminderSent
}

// NewReminderSentEvent creates a new ReminderSentEvent
func NewReminderSentEvent(record *ReminderRecord, duplicate bool) *ReminderSentEvent {
	return &ReminderSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReminderSent, AggregateTypeInvoice, record.InvoiceID, record.TenantID, record.SentAt),
		InvoiceID:       record.InvoiceID,
		ReminderID:      record.ID,
		Level:           record.Level,
		RecipientEmail:  record.RecipientEmail,
		SentAt:          record.SentAt,
		Duplicate:       duplicate,
	}
}

// BookkeepingFailure names the step that failed after a successful send
type BookkeepingFailure string

const (
	BookkeepingFailureRecord BookkeepingFailure = "record_not_persisted"
	BookkeepingFailureStatus BookkeepingFailure = "status_not_updated"
)

// ReminderBookkeepingStaleEvent is raised when a reminder was sent but the record
// or the status update could not be persisted
type ReminderBookkeepingStaleEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID            `json:"invoice_id"`
	Level     ReminderLevel        `json:"level"`
	Failures  []BookkeepingFailure `json:"failures"`
	Detail    string               `json:"detail"`
}

// EventType returns the event type name
func (e *ReminderBookkeepingStaleEvent) EventType() string {
	return EventTypeReminderBookkeepingStale
}

// NewReminderBookkeepingStaleEvent creates a new ReminderBookkeepingStaleEvent
func NewReminderBookkeepingStaleEvent(tenantID, invoiceID uuid.UUID, level ReminderLevel, failures []BookkeepingFailure, detail string, sentAt time.Time) *ReminderBookkeepingStaleEvent {
	return &ReminderBookkeepingStaleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReminderBookkeepingStale, AggregateTypeInvoice, invoiceID, tenantID, sentAt),
		InvoiceID:       invoiceID,
		Level:           level,
		Failures:        failures,
		Detail:          detail,
	}
}

// ReminderCacheReconciledEvent is raised when a stale cached status was detected
// and repaired from the reminder history
type ReminderCacheReconciledEvent struct {
	shared.BaseDomainEvent
	InvoiceID    uuid.UUID     `json:"invoice_id"`
	CachedStatus InvoiceStatus `json:"cached_status"`
	HighestLevel ReminderLevel `json:"highest_level"`
	Repaired     bool          `json:"repaired"`
}

// EventType returns the event type name
func (e *ReminderCacheReconciledEvent) EventType() string {
	return EventTypeReminderCacheReconciled
}

// NewReminderCacheReconciledEvent creates a new ReminderCacheReconciledEvent
// stamped with the invoice's last update
func NewReminderCacheReconciledEvent(inv *Invoice, cached InvoiceStatus, highest ReminderLevel, repaired bool) *ReminderCacheReconciledEvent {
	return &ReminderCacheReconciledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReminderCacheReconciled, AggregateTypeInvoice, inv.ID, inv.TenantID, inv.UpdatedAt),
		InvoiceID:       inv.ID,
		CachedStatus:    cached,
		HighestLevel:    highest,
		Repaired:        repaired,
	}
}
