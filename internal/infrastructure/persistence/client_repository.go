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

// GormClientRepository implements ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindByIDForTenant finds a client with its contacts
func (r *GormClientRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Client, error) {
	var model models.ClientModel
	if err := r.db.WithContext(ctx).
		Preload("Contacts", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindSenderProfile finds the profile of the sending user
func (r *GormClientRepository) FindSenderProfile(ctx context.Context, tenantID, userID uuid.UUID) (*invoicing.SenderProfile, error) {
	var model models.ProfileModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, userID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GormAuditLogRepository implements AuditLogRepository using GORM
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Append stores an audit entry
func (r *GormAuditLogRepository) Append(ctx context.Context, entry *invoicing.AuditEntry) error {
	return r.db.WithContext(ctx).Create(models.AuditLogModelFromDomain(entry)).Error
}

// ListForEntity returns the audit trail of an entity, newest first
func (r *GormAuditLogRepository) ListForEntity(ctx context.Context, tenantID uuid.UUID, entityType string, entityID uuid.UUID) ([]invoicing.AuditEntry, error) {
	var auditModels []models.AuditLogModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, entityID).
		Order("created_at DESC").
		Find(&auditModels).Error; err != nil {
		return nil, err
	}
	entries := make([]invoicing.AuditEntry, len(auditModels))
	for i := range auditModels {
		entries[i] = *auditModels[i].ToDomain()
	}
	return entries, nil
}
