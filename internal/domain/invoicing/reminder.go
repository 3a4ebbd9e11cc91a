package invoicing

import (
	"sort"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// ReminderLevel is a stage of the payment-collection ladder (1..3)
type ReminderLevel int

const (
	ReminderLevelGentle   ReminderLevel = 1
	ReminderLevelFollowUp ReminderLevel = 2
	ReminderLevelFinal    ReminderLevel = 3
)

// MaxReminderLevel is the last rung of the ladder
const MaxReminderLevel = ReminderLevelFinal

// IsValid checks if the level is on the ladder
func (l ReminderLevel) IsValid() bool {
	return l >= ReminderLevelGentle && l <= MaxReminderLevel
}

// Label returns the human readable name of the level
func (l ReminderLevel) Label() string {
	switch l {
	case ReminderLevelGentle:
		return "Gentle Reminder"
	case ReminderLevelFollowUp:
		return "Follow-up"
	case ReminderLevelFinal:
		return "Final Notice"
	default:
		return "Unknown"
	}
}

// DeliveryStatus records what the mail transport reported for a reminder
type DeliveryStatus string

const (
	DeliveryStatusSent DeliveryStatus = "sent"
)

// ReminderRecord is one reminder that left the system. Records are append-only:
// a resend is a new record.
type ReminderRecord struct {
	shared.BaseEntity
	TenantID       uuid.UUID
	InvoiceID      uuid.UUID
	SentBy         uuid.UUID
	Level          ReminderLevel
	SentAt         time.Time
	RecipientEmail string
	Subject        string
	Body           string
	DeliveryStatus DeliveryStatus
	Notes          string
}

// NewReminderRecord creates the record of a successfully sent reminder
func NewReminderRecord(
	tenantID, invoiceID, sentBy uuid.UUID,
	level ReminderLevel,
	recipient, subject, body, notes string,
	sentAt time.Time,
) (*ReminderRecord, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewValidationError("Invoice ID cannot be empty")
	}
	if !level.IsValid() {
		return nil, shared.NewValidationError("Invalid reminder level %d", level)
	}
	if !IsValidEmail(recipient) {
		return nil, shared.NewValidationError("Invalid recipient email address")
	}

	return &ReminderRecord{
		BaseEntity:     shared.NewBaseEntity(),
		TenantID:       tenantID,
		InvoiceID:      invoiceID,
		SentBy:         sentBy,
		Level:          level,
		SentAt:         sentAt,
		RecipientEmail: strings.TrimSpace(recipient),
		Subject:        subject,
		Body:           body,
		DeliveryStatus: DeliveryStatusSent,
		Notes:          notes,
	}, nil
}

// ReminderHistory is the reminder records of a single invoice
type ReminderHistory []ReminderRecord

// IsEmpty reports whether no reminder has been recorded
func (h ReminderHistory) IsEmpty() bool {
	return len(h) == 0
}

// HighestLevel returns the maximum level sent, or false when the history is empty
func (h ReminderHistory) HighestLevel() (ReminderLevel, bool) {
	if len(h) == 0 {
		return 0, false
	}
	highest := h[0].Level
	for _, r := range h[1:] {
		if r.Level > highest {
			highest = r.Level
		}
	}
	return highest, true
}

// Latest returns the most recently sent record, or nil
func (h ReminderHistory) Latest() *ReminderRecord {
	if len(h) == 0 {
		return nil
	}
	latest := &h[0]
	for i := range h[1:] {
		if h[i+1].SentAt.After(latest.SentAt) {
			latest = &h[i+1]
		}
	}
	return latest
}

// HasLevel reports whether a reminder at level has already been sent
func (h ReminderHistory) HasLevel(level ReminderLevel) bool {
	for _, r := range h {
		if r.Level == level {
			return true
		}
	}
	return false
}

// NewestFirst returns a copy of the history ordered by sent time, newest first
func (h ReminderHistory) NewestFirst() ReminderHistory {
	out := make(ReminderHistory, len(h))
	copy(out, h)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SentAt.After(out[j].SentAt)
	})
	return out
}
