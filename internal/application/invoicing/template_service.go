package invoicing

import (
	"context"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReminderTemplateService manages a tenant's reminder templates
type ReminderTemplateService struct {
	templateRepo invoicing.ReminderTemplateRepository
	serviceOptions
}

// NewReminderTemplateService creates a new ReminderTemplateService
func NewReminderTemplateService(templateRepo invoicing.ReminderTemplateRepository, opts ...Option) *ReminderTemplateService {
	return &ReminderTemplateService{
		templateRepo:   templateRepo,
		serviceOptions: newServiceOptions(opts),
	}
}

// ListTemplates returns the tenant's templates by level, defaults first. A tenant
// without templates gets the defaults seeded on first access.
func (s *ReminderTemplateService) ListTemplates(ctx context.Context, tenantID uuid.UUID) ([]ReminderTemplateResponse, error) {
	if err := s.templateRepo.SeedDefaults(ctx, tenantID); err != nil {
		return nil, shared.NewInternalError("Failed to seed reminder templates", err)
	}
	templates, err := s.templateRepo.ListForTenant(ctx, tenantID)
	if err != nil {
		return nil, shared.NewInternalError("Failed to fetch reminder templates", err)
	}

	responses := make([]ReminderTemplateResponse, len(templates))
	for i := range templates {
		responses[i] = ToReminderTemplateResponse(&templates[i])
	}
	return responses, nil
}

// CreateTemplate stores a new template. A default template replaces the previous
// default of its level.
func (s *ReminderTemplateService) CreateTemplate(ctx context.Context, tenantID uuid.UUID, req CreateReminderTemplateRequest) (*ReminderTemplateResponse, error) {
	template, err := invoicing.NewReminderTemplate(tenantID, req.Name, invoicing.ReminderLevel(req.ReminderLevel), req.Subject, req.Body, req.IsDefault)
	if err != nil {
		return nil, err
	}
	if err := s.templateRepo.Create(ctx, template); err != nil {
		return nil, shared.NewInternalError("Failed to create reminder template", err)
	}

	s.logger.Info("Reminder template created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("template_id", template.ID.String()),
		zap.Int("level", req.ReminderLevel),
		zap.Bool("is_default", req.IsDefault))

	resp := ToReminderTemplateResponse(template)
	return &resp, nil
}
