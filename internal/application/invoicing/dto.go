package invoicing

import (
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReminderResponse represents a sent reminder in API responses
type ReminderResponse struct {
	ID             uuid.UUID `json:"id"`
	InvoiceID      uuid.UUID `json:"invoice_id"`
	SentBy         uuid.UUID `json:"sent_by"`
	ReminderLevel  int       `json:"reminder_level"`
	LevelLabel     string    `json:"level_label"`
	SentAt         time.Time `json:"sent_at"`
	RecipientEmail string    `json:"email_sent_to"`
	Subject        string    `json:"email_subject"`
	Body           string    `json:"email_body"`
	DeliveryStatus string    `json:"delivery_status"`
	Notes          string    `json:"notes,omitempty"`
}

// ToReminderResponse converts a domain record to a response
func ToReminderResponse(r *invoicing.ReminderRecord) ReminderResponse {
	return ReminderResponse{
		ID:             r.ID,
		InvoiceID:      r.InvoiceID,
		SentBy:         r.SentBy,
		ReminderLevel:  int(r.Level),
		LevelLabel:     r.Level.Label(),
		SentAt:         r.SentAt,
		RecipientEmail: r.RecipientEmail,
		Subject:        r.Subject,
		Body:           r.Body,
		DeliveryStatus: string(r.DeliveryStatus),
		Notes:          r.Notes,
	}
}

// ReminderEligibilityResponse answers whether an invoice can be reminded now.
// next_reminder_level is absent when reminders do not apply, null when every
// level was sent and an integer otherwise.
type ReminderEligibilityResponse struct {
	InvoiceID             uuid.UUID           `json:"invoice_id"`
	InvoiceNumber         string              `json:"invoice_number"`
	Status                string              `json:"status"`
	Reminders             []ReminderResponse  `json:"reminders"`
	NextReminderLevel     invoicing.NextLevel `json:"next_reminder_level,omitzero"`
	CanSendReminder       bool                `json:"can_send_reminder"`
	DaysOverdue           int                 `json:"days_overdue"`
	DaysUntilNextReminder int                 `json:"days_until_next_reminder"`
	Message               string              `json:"message,omitempty"`
}

// SendReminderRequest represents a request to send the next reminder
type SendReminderRequest struct {
	TemplateID       *uuid.UUID `json:"template_id"`
	PersonalNote     string     `json:"personal_note" binding:"max=2000"`
	SendCopyToSender bool       `json:"send_copy_to_sender"`
}

// SendOutcome tells whether every step after the email went through
type SendOutcome string

const (
	// SendOutcomeSent means the email, its record and the status update succeeded
	SendOutcomeSent SendOutcome = "sent"
	// SendOutcomeSentWithBookkeepingWarning means the email went out but the record
	// or the status update failed
	SendOutcomeSentWithBookkeepingWarning SendOutcome = "sent_with_bookkeeping_warning"
)

// SendReminderResult is the outcome of a reminder send
type SendReminderResult struct {
	Reminder              *ReminderResponse   `json:"reminder"`
	Outcome               SendOutcome         `json:"outcome"`
	NextReminderLevel     invoicing.NextLevel `json:"next_reminder_level,omitzero"`
	DaysUntilNextReminder int                 `json:"days_until_next_reminder"`
	Warnings              []string            `json:"warnings,omitempty"`
}

// SetInvoiceStatusRequest represents a user status change
type SetInvoiceStatusRequest struct {
	Status string `json:"status" binding:"required,invoice_status"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID            uuid.UUID       `json:"id"`
	ClientID      uuid.UUID       `json:"client_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Status        string          `json:"status"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	DueDate       time.Time       `json:"due_date"`
	SentAt        *time.Time      `json:"sent_at"`
	PaidAt        *time.Time      `json:"paid_at"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Currency      string          `json:"currency"`
	Version       int             `json:"version"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ToInvoiceResponse converts a domain invoice to a response
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:            inv.ID,
		ClientID:      inv.ClientID,
		InvoiceNumber: inv.InvoiceNumber,
		Status:        string(inv.Status),
		InvoiceDate:   inv.InvoiceDate,
		DueDate:       inv.DueDate,
		SentAt:        inv.SentAt,
		PaidAt:        inv.PaidAt,
		TotalAmount:   inv.TotalAmount,
		PaidAmount:    inv.PaidAmount,
		Currency:      inv.Currency,
		Version:       inv.Version,
		UpdatedAt:     inv.UpdatedAt,
	}
}

// SetInvoiceStatusResult carries the updated invoice and the confirmation text
type SetInvoiceStatusResult struct {
	Invoice InvoiceResponse `json:"invoice"`
	Message string          `json:"-"`
}

// InvoiceStatusResponse describes the current status and where it can go
type InvoiceStatusResponse struct {
	InvoiceNumber        string     `json:"invoice_number"`
	CurrentStatus        string     `json:"current_status"`
	AvailableTransitions []string   `json:"available_transitions"`
	SentAt               *time.Time `json:"sent_at"`
	PaidAt               *time.Time `json:"paid_at"`
	DueDate              time.Time  `json:"due_date"`
	IsOverdue            bool       `json:"is_overdue"`
}

// ReminderTemplateResponse represents a reminder template in API responses
type ReminderTemplateResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	ReminderLevel int       `json:"reminder_level"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToReminderTemplateResponse converts a domain template to a response
func ToReminderTemplateResponse(t *invoicing.ReminderTemplate) ReminderTemplateResponse {
	return ReminderTemplateResponse{
		ID:            t.ID,
		Name:          t.Name,
		ReminderLevel: int(t.Level),
		Subject:       t.Subject,
		Body:          t.Body,
		IsDefault:     t.IsDefault,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// CreateReminderTemplateRequest represents a request to create a template
type CreateReminderTemplateRequest struct {
	Name          string `json:"name" binding:"required,max=100"`
	ReminderLevel int    `json:"reminder_level" binding:"required,reminder_level"`
	Subject       string `json:"subject" binding:"required"`
	Body          string `json:"body" binding:"required"`
	IsDefault     bool   `json:"is_default"`
}

// LevelStats summarizes the reminders sent at one level
type LevelStats struct {
	Level        int     `json:"level"`
	Count        int     `json:"count"`
	ResponseRate float64 `json:"response_rate"`
}

// LevelBacklog counts the overdue invoices whose next reminder is a level
type LevelBacklog struct {
	Level       int             `json:"level"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// InvoicesNeedingReminders is the overdue backlog by suggested level
type InvoicesNeedingReminders struct {
	Total   int            `json:"total"`
	ByLevel []LevelBacklog `json:"by_level"`
}

// ReminderStatsResponse is the reminder effectiveness report of a tenant
type ReminderStatsResponse struct {
	TotalRemindersSent       int                      `json:"total_reminders_sent"`
	RemindersByLevel         []LevelStats             `json:"reminders_by_level"`
	AverageDaysToPayment     float64                  `json:"average_days_to_payment"`
	MostEffectiveLevel       int                      `json:"most_effective_level"`
	InvoicesNeedingReminders InvoicesNeedingReminders `json:"invoices_needing_reminders"`
}
