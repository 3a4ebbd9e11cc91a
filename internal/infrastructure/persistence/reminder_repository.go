package persistence

import (
	"context"
	"errors"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReminderRecordRepository implements ReminderRecordRepository using GORM
type GormReminderRecordRepository struct {
	db *gorm.DB
}

// NewGormReminderRecordRepository creates a new GormReminderRecordRepository
func NewGormReminderRecordRepository(db *gorm.DB) *GormReminderRecordRepository {
	return &GormReminderRecordRepository{db: db}
}

// ListByInvoice returns an invoice's reminders ordered by sent_at ascending
func (r *GormReminderRecordRepository) ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (invoicing.ReminderHistory, error) {
	var recordModels []models.ReminderRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("sent_at ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	history := make(invoicing.ReminderHistory, len(recordModels))
	for i := range recordModels {
		history[i] = *recordModels[i].ToDomain()
	}
	return history, nil
}

// ListByInvoices returns the histories of several invoices in one query
func (r *GormReminderRecordRepository) ListByInvoices(ctx context.Context, tenantID uuid.UUID, invoiceIDs []uuid.UUID) (map[uuid.UUID]invoicing.ReminderHistory, error) {
	out := make(map[uuid.UUID]invoicing.ReminderHistory, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	var recordModels []models.ReminderRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id IN ?", tenantID, invoiceIDs).
		Order("sent_at ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	for i := range recordModels {
		record := recordModels[i].ToDomain()
		out[record.InvoiceID] = append(out[record.InvoiceID], *record)
	}
	return out, nil
}

// FindLatestByInvoice returns the most recently sent reminder
func (r *GormReminderRecordRepository) FindLatestByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*invoicing.ReminderRecord, error) {
	var model models.ReminderRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("sent_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// MaxLevelByInvoice returns the highest level sent, or zero when none
func (r *GormReminderRecordRepository) MaxLevelByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (invoicing.ReminderLevel, error) {
	var level int
	err := r.db.WithContext(ctx).
		Model(&models.ReminderRecordModel{}).
		Select("COALESCE(MAX(reminder_level), 0)").
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Scan(&level).Error
	return invoicing.ReminderLevel(level), err
}

// ExistsAtLevel reports whether a reminder at level was already sent
func (r *GormReminderRecordRepository) ExistsAtLevel(ctx context.Context, tenantID, invoiceID uuid.UUID, level invoicing.ReminderLevel) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReminderRecordModel{}).
		Where("tenant_id = ? AND invoice_id = ? AND reminder_level = ?", tenantID, invoiceID, int(level)).
		Count(&count).Error
	return count > 0, err
}

// ListForTenant returns every reminder of a tenant
func (r *GormReminderRecordRepository) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]invoicing.ReminderRecord, error) {
	var recordModels []models.ReminderRecordModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("sent_at ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	records := make([]invoicing.ReminderRecord, len(recordModels))
	for i := range recordModels {
		records[i] = *recordModels[i].ToDomain()
	}
	return records, nil
}

// Create appends a reminder record
func (r *GormReminderRecordRepository) Create(ctx context.Context, record *invoicing.ReminderRecord) error {
	return r.db.WithContext(ctx).Create(models.ReminderRecordModelFromDomain(record)).Error
}
