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

// GormReminderTemplateRepository implements ReminderTemplateRepository using GORM
type GormReminderTemplateRepository struct {
	db *gorm.DB
}

// NewGormReminderTemplateRepository creates a new GormReminderTemplateRepository
func NewGormReminderTemplateRepository(db *gorm.DB) *GormReminderTemplateRepository {
	return &GormReminderTemplateRepository{db: db}
}

// FindByIDForTenant finds a template by ID for a specific tenant
func (r *GormReminderTemplateRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.ReminderTemplate, error) {
	var model models.ReminderTemplateModel
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

// FindDefaultForLevel finds the tenant's default template for a level
func (r *GormReminderTemplateRepository) FindDefaultForLevel(ctx context.Context, tenantID uuid.UUID, level invoicing.ReminderLevel) (*invoicing.ReminderTemplate, error) {
	var model models.ReminderTemplateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reminder_level = ? AND is_default = ?", tenantID, int(level), true).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListForTenant returns templates ordered by level, defaults first
func (r *GormReminderTemplateRepository) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]invoicing.ReminderTemplate, error) {
	var templateModels []models.ReminderTemplateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("reminder_level ASC").
		Order("is_default DESC").
		Order("created_at ASC").
		Find(&templateModels).Error; err != nil {
		return nil, err
	}
	templates := make([]invoicing.ReminderTemplate, len(templateModels))
	for i := range templateModels {
		templates[i] = *templateModels[i].ToDomain()
	}
	return templates, nil
}

// CountForTenant counts a tenant's templates
func (r *GormReminderTemplateRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReminderTemplateModel{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}

// Create stores a template, clearing other defaults of its level first when it is a default
func (r *GormReminderTemplateRepository) Create(ctx context.Context, template *invoicing.ReminderTemplate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if template.IsDefault {
			if err := clearDefaultForLevel(tx, template.TenantID, template.Level); err != nil {
				return err
			}
		}
		return tx.Create(models.ReminderTemplateModelFromDomain(template)).Error
	})
}

// SeedDefaults stores the default templates when the tenant has none
func (r *GormReminderTemplateRepository) SeedDefaults(ctx context.Context, tenantID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ReminderTemplateModel{}).
			Where("tenant_id = ?", tenantID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		defaults := invoicing.DefaultReminderTemplates(tenantID)
		templateModels := make([]*models.ReminderTemplateModel, 0, len(defaults))
		for _, t := range defaults {
			templateModels = append(templateModels, models.ReminderTemplateModelFromDomain(t))
		}
		return tx.Create(&templateModels).Error
	})
}

// ClearDefaultForLevel unsets the default flag on every template of a level
func (r *GormReminderTemplateRepository) ClearDefaultForLevel(ctx context.Context, tenantID uuid.UUID, level invoicing.ReminderLevel) error {
	return clearDefaultForLevel(r.db.WithContext(ctx), tenantID, level)
}

func clearDefaultForLevel(db *gorm.DB, tenantID uuid.UUID, level invoicing.ReminderLevel) error {
	return db.Model(&models.ReminderTemplateModel{}).
		Where("tenant_id = ? AND reminder_level = ? AND is_default = ?", tenantID, int(level), true).
		Update("is_default", false).Error
}
