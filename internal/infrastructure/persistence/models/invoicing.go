package models

import (
	"encoding/json"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var modelLogger = zap.L().Named("invoicing.models")

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	BaseModel
	TenantID      uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_tenant_number,priority:1"`
	Version       int                     `gorm:"not null;default:1"`
	ClientID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	InvoiceNumber string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	Status        invoicing.InvoiceStatus `gorm:"type:varchar(30);not null;default:'draft';index"`
	InvoiceDate   time.Time               `gorm:"type:date;not null"`
	DueDate       time.Time               `gorm:"type:date;not null;index"`
	SentAt        *time.Time
	PaidAt        *time.Time
	TotalAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Currency      string          `gorm:"type:varchar(3);not null;default:'EUR'"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	return &invoicing.Invoice{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: m.entity(), Version: m.Version},
			TenantID:          m.TenantID,
		},
		ClientID:            m.ClientID,
		InvoiceNumber:       m.InvoiceNumber,
		Status:              m.Status,
		InvoiceDate:         m.InvoiceDate,
		DueDate:             m.DueDate,
		SentAt:              m.SentAt,
		PaidAt:              m.PaidAt,
		TotalAmount:         m.TotalAmount,
		PaidAmount:          m.PaidAmount,
		Currency:            m.Currency,
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.setEntity(inv.BaseEntity)
	m.TenantID = inv.TenantID
	m.Version = inv.Version
	m.ClientID = inv.ClientID
	m.InvoiceNumber = inv.InvoiceNumber
	m.Status = inv.Status
	m.InvoiceDate = inv.InvoiceDate
	m.DueDate = inv.DueDate
	m.SentAt = inv.SentAt
	m.PaidAt = inv.PaidAt
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.Currency = inv.Currency
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// ReminderRecordModel is the persistence model for a sent reminder. Rows are never updated.
type ReminderRecordModel struct {
	BaseModel
	TenantID       uuid.UUID                `gorm:"type:uuid;not null;index"`
	InvoiceID      uuid.UUID                `gorm:"type:uuid;not null;index:idx_reminder_invoice_sent,priority:1"`
	SentBy         uuid.UUID                `gorm:"type:uuid;not null"`
	ReminderLevel  int                      `gorm:"not null"`
	SentAt         time.Time                `gorm:"not null;index:idx_reminder_invoice_sent,priority:2"`
	RecipientEmail string                   `gorm:"type:varchar(255);not null"`
	Subject        string                   `gorm:"type:varchar(500);not null"`
	Body           string                   `gorm:"type:text;not null"`
	DeliveryStatus invoicing.DeliveryStatus `gorm:"type:varchar(20);not null;default:'sent'"`
	Notes          string                   `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ReminderRecordModel) TableName() string {
	return "invoice_reminders"
}

// ToDomain converts the persistence model to a domain ReminderRecord
func (m *ReminderRecordModel) ToDomain() *invoicing.ReminderRecord {
	return &invoicing.ReminderRecord{
		BaseEntity:     m.entity(),
		TenantID:       m.TenantID,
		InvoiceID:      m.InvoiceID,
		SentBy:         m.SentBy,
		Level:          invoicing.ReminderLevel(m.ReminderLevel),
		SentAt:         m.SentAt,
		RecipientEmail: m.RecipientEmail,
		Subject:        m.Subject,
		Body:           m.Body,
		DeliveryStatus: m.DeliveryStatus,
		Notes:          m.Notes,
	}
}

// ReminderRecordModelFromDomain creates a new persistence model from a domain ReminderRecord
func ReminderRecordModelFromDomain(r *invoicing.ReminderRecord) *ReminderRecordModel {
	m := &ReminderRecordModel{
		TenantID:       r.TenantID,
		InvoiceID:      r.InvoiceID,
		SentBy:         r.SentBy,
		ReminderLevel:  int(r.Level),
		SentAt:         r.SentAt,
		RecipientEmail: r.RecipientEmail,
		Subject:        r.Subject,
		Body:           r.Body,
		DeliveryStatus: r.DeliveryStatus,
		Notes:          r.Notes,
	}
	m.setEntity(r.BaseEntity)
	return m
}

// ReminderTemplateModel is the persistence model for a tenant's reminder template
type ReminderTemplateModel struct {
	BaseModel
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index:idx_reminder_template_level,priority:1"`
	Name          string    `gorm:"type:varchar(100);not null"`
	ReminderLevel int       `gorm:"not null;index:idx_reminder_template_level,priority:2"`
	Subject       string    `gorm:"type:varchar(500);not null"`
	Body          string    `gorm:"type:text;not null"`
	IsDefault     bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (ReminderTemplateModel) TableName() string {
	return "reminder_templates"
}

// ToDomain converts the persistence model to a domain ReminderTemplate
func (m *ReminderTemplateModel) ToDomain() *invoicing.ReminderTemplate {
	return &invoicing.ReminderTemplate{
		BaseEntity: m.entity(),
		TenantID:   m.TenantID,
		Name:       m.Name,
		Level:      invoicing.ReminderLevel(m.ReminderLevel),
		Subject:    m.Subject,
		Body:       m.Body,
		IsDefault:  m.IsDefault,
	}
}

// ReminderTemplateModelFromDomain creates a new persistence model from a domain ReminderTemplate
func ReminderTemplateModelFromDomain(t *invoicing.ReminderTemplate) *ReminderTemplateModel {
	m := &ReminderTemplateModel{
		TenantID:      t.TenantID,
		Name:          t.Name,
		ReminderLevel: int(t.Level),
		Subject:       t.Subject,
		Body:          t.Body,
		IsDefault:     t.IsDefault,
	}
	m.setEntity(t.BaseEntity)
	return m
}

// AuditLogModel is the persistence model for audit entries
type AuditLogModel struct {
	BaseModel
	TenantID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	EntityType string     `gorm:"type:varchar(50);not null;index:idx_audit_entity,priority:1"`
	EntityID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_audit_entity,priority:2"`
	Action     string     `gorm:"type:varchar(50);not null"`
	ActorID    *uuid.UUID `gorm:"type:uuid"`
	BeforeJSON string     `gorm:"column:before_value;type:jsonb;default:'{}'"`
	AfterJSON  string     `gorm:"column:after_value;type:jsonb;default:'{}'"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain AuditEntry
func (m *AuditLogModel) ToDomain() *invoicing.AuditEntry {
	return &invoicing.AuditEntry{
		BaseEntity: m.entity(),
		TenantID:   m.TenantID,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Action:     invoicing.AuditAction(m.Action),
		ActorID:    m.ActorID,
		Before:     decodeJSONMap(m.BeforeJSON, m.ID),
		After:      decodeJSONMap(m.AfterJSON, m.ID),
	}
}

// AuditLogModelFromDomain creates a new persistence model from a domain AuditEntry
func AuditLogModelFromDomain(e *invoicing.AuditEntry) *AuditLogModel {
	m := &AuditLogModel{
		TenantID:   e.TenantID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     string(e.Action),
		ActorID:    e.ActorID,
		BeforeJSON: encodeJSONMap(e.Before),
		AfterJSON:  encodeJSONMap(e.After),
	}
	m.setEntity(e.BaseEntity)
	return m
}

func encodeJSONMap(v map[string]any) string {
	if len(v) == 0 {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		modelLogger.Warn("failed to encode audit value", zap.Error(err))
		return "{}"
	}
	return string(data)
}

func decodeJSONMap(raw string, id uuid.UUID) map[string]any {
	out := map[string]any{}
	if raw == "" || raw == "{}" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		modelLogger.Warn("failed to parse audit JSON",
			zap.String("audit_id", id.String()),
			zap.String("raw_json", raw),
			zap.Error(err))
	}
	return out
}
