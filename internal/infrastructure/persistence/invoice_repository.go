package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"invoice_number": true,
	"invoice_date":   true,
	"due_date":       true,
	"status":         true,
	"total_amount":   true,
}

// reconcilableStatuses are the cached statuses the resolver can disagree with
var reconcilableStatuses = []invoicing.InvoiceStatus{
	invoicing.InvoiceStatusSent,
	invoicing.InvoiceStatusOverdue,
	invoicing.InvoiceStatusOverdueReminder1,
	invoicing.InvoiceStatusOverdueReminder2,
	invoicing.InvoiceStatusOverdueReminder3,
}

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: tx}
}

// FindByIDForTenant finds an invoice by ID for a specific tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs returns the tenant's invoices among ids, in no particular order
func (r *GormInvoiceRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]invoicing.Invoice, error) {
	if len(ids) == 0 {
		return []invoicing.Invoice{}, nil
	}
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toDomainInvoices(invoiceModels), nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking. The nullable lifecycle columns are
// selected explicitly so that clearing them is persisted.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("tenant_id = ? AND version = ?", invoice.TenantID, invoice.Version-1).
		Select("status", "sent_at", "paid_at", "paid_amount", "version", "updated_at").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindForReconciliation pages through invoices in a sent, overdue or reminder stage
func (r *GormInvoiceRepository) FindForReconciliation(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = reconcilableStatuses
	}
	query := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND status IN ?", tenantID, statuses)
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}

	orderBy := ValidateSortField(filter.OrderBy, InvoiceSortFields, "due_date")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir).Order("id ASC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var invoiceModels []models.InvoiceModel
	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toDomainInvoices(invoiceModels), nil
}

// FindOverdueCandidates returns sent or overdue invoices past their due date,
// oldest due date first
func (r *GormInvoiceRepository) FindOverdueCandidates(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]invoicing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND due_date < ?", tenantID,
			[]invoicing.InvoiceStatus{invoicing.InvoiceStatusSent, invoicing.InvoiceStatusOverdue}, now).
		Order("due_date ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return toDomainInvoices(invoiceModels), nil
}

func toDomainInvoices(invoiceModels []models.InvoiceModel) []invoicing.Invoice {
	invoices := make([]invoicing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices
}

// GormTenantProvider implements TenantProvider using GORM
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns the tenants with at least one invoice under collection
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Distinct("tenant_id").
		Where("status IN ?", reconcilableStatuses).
		Pluck("tenant_id", &ids).Error
	return ids, err
}
