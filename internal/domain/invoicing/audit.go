package invoicing

import (
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// AuditAction is the kind of change recorded in the audit log
type AuditAction string

const (
	AuditActionStatusChanged AuditAction = "status_changed"
)

// AuditEntry records who changed what on an entity
type AuditEntry struct {
	shared.BaseEntity
	TenantID   uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Action     AuditAction
	ActorID    *uuid.UUID
	Before     map[string]any
	After      map[string]any
}

// NewStatusChangedAuditEntry records a user transition of an invoice
func NewStatusChangedAuditEntry(inv *Invoice, actorID *uuid.UUID, from, to InvoiceStatus) *AuditEntry {
	return &AuditEntry{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   inv.TenantID,
		EntityType: AggregateTypeInvoice,
		EntityID:   inv.ID,
		Action:     AuditActionStatusChanged,
		ActorID:    actorID,
		Before:     map[string]any{"status": string(from)},
		After:      map[string]any{"status": string(to)},
	}
}
