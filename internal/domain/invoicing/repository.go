package invoicing

import (
	"context"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	Statuses  []InvoiceStatus
	DueBefore *time.Time
}

// InvoiceRepository defines the persistence operations on invoices
type InvoiceRepository interface {
	// FindByIDForTenant finds an invoice by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDs returns the tenant's invoices among ids
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Invoice, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock persists a change, failing with a conflict when the version
	// moved underneath
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// FindForReconciliation pages through a tenant's invoices whose cached status
	// can disagree with the reminder history
	FindForReconciliation(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// FindOverdueCandidates returns open invoices of a tenant that are past due at now
	FindOverdueCandidates(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]Invoice, error)
}

// ReminderRecordRepository persists the append-only reminder history
type ReminderRecordRepository interface {
	// ListByInvoice returns the reminders of an invoice ordered by sent_at ascending
	ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (ReminderHistory, error)

	// ListByInvoices returns the histories of several invoices keyed by invoice ID
	ListByInvoices(ctx context.Context, tenantID uuid.UUID, invoiceIDs []uuid.UUID) (map[uuid.UUID]ReminderHistory, error)

	// FindLatestByInvoice returns the most recent reminder, or shared.ErrNotFound
	FindLatestByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*ReminderRecord, error)

	// MaxLevelByInvoice returns the highest level sent, or zero when none
	MaxLevelByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (ReminderLevel, error)

	// ExistsAtLevel reports whether a reminder at level was already sent
	ExistsAtLevel(ctx context.Context, tenantID, invoiceID uuid.UUID, level ReminderLevel) (bool, error)

	// ListForTenant returns every reminder of a tenant
	ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]ReminderRecord, error)

	// Create appends a record
	Create(ctx context.Context, record *ReminderRecord) error
}

// ReminderTemplateRepository persists reminder templates
type ReminderTemplateRepository interface {
	// FindByIDForTenant finds a template by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ReminderTemplate, error)

	// FindDefaultForLevel finds the tenant's default template for a level
	FindDefaultForLevel(ctx context.Context, tenantID uuid.UUID, level ReminderLevel) (*ReminderTemplate, error)

	// ListForTenant returns templates ordered by level, defaults first
	ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]ReminderTemplate, error)

	// CountForTenant counts a tenant's templates
	CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// Create stores a template. A default template clears any other default of
	// its level in the same transaction.
	Create(ctx context.Context, template *ReminderTemplate) error

	// SeedDefaults stores the default templates when the tenant has none
	SeedDefaults(ctx context.Context, tenantID uuid.UUID) error

	// ClearDefaultForLevel unsets the default flag on every template of a level
	ClearDefaultForLevel(ctx context.Context, tenantID uuid.UUID, level ReminderLevel) error
}

// ClientRepository reads clients and sender profiles
type ClientRepository interface {
	// FindByIDForTenant finds a client with its contacts
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Client, error)

	// FindSenderProfile finds the profile of the sending user
	FindSenderProfile(ctx context.Context, tenantID, userID uuid.UUID) (*SenderProfile, error)
}

// AuditLogRepository appends audit entries
type AuditLogRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
}

// TenantProvider lists the tenants that have invoices under collection
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}
