package handler

import (
	"context"

	invoicingapp "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TemplateUseCases is what the template endpoints need from the template service
type TemplateUseCases interface {
	ListTemplates(ctx context.Context, tenantID uuid.UUID) ([]invoicingapp.ReminderTemplateResponse, error)
	CreateTemplate(ctx context.Context, tenantID uuid.UUID, req invoicingapp.CreateReminderTemplateRequest) (*invoicingapp.ReminderTemplateResponse, error)
}

// StatsUseCases is what the statistics endpoint needs from the stats service
type StatsUseCases interface {
	GetStats(ctx context.Context, tenantID uuid.UUID) (*invoicingapp.ReminderStatsResponse, error)
}

// ReminderTemplateHandler serves reminder templates and reminder statistics
type ReminderTemplateHandler struct {
	BaseHandler
	templates TemplateUseCases
	stats     StatsUseCases
}

// NewReminderTemplateHandler creates a new ReminderTemplateHandler
func NewReminderTemplateHandler(templates TemplateUseCases, stats StatsUseCases) *ReminderTemplateHandler {
	return &ReminderTemplateHandler{templates: templates, stats: stats}
}

// ListTemplates godoc
//
//	@ID				listReminderTemplates
//	@Summary		List reminder templates
//	@Description	Lists the tenant's templates by level, defaults first. The three default templates are created on first use.
//	@Tags			reminders
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]invoicingapp.ReminderTemplateResponse]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/reminders/templates [get]
func (h *ReminderTemplateHandler) ListTemplates(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	templates, err := h.templates.ListTemplates(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, templates)
}

// CreateTemplate godoc
//
//	@ID				createReminderTemplate
//	@Summary		Create a reminder template
//	@Description	A template marked as default replaces the previous default of its level
//	@Tags			reminders
//	@Accept			json
//	@Produce		json
//	@Param			request	body		invoicingapp.CreateReminderTemplateRequest	true	"Template"
//	@Success		201		{object}	APIResponse[invoicingapp.ReminderTemplateResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/reminders/templates [post]
func (h *ReminderTemplateHandler) CreateTemplate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	var req invoicingapp.CreateReminderTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	template, err := h.templates.CreateTemplate(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, template)
}

// GetStats godoc
//
//	@ID				getReminderStats
//	@Summary		Reminder statistics
//	@Description	Reminders sent per level, response rates and the overdue backlog by suggested level
//	@Tags			reminders
//	@Produce		json
//	@Success		200	{object}	APIResponse[invoicingapp.ReminderStatsResponse]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/reminders/stats [get]
func (h *ReminderTemplateHandler) GetStats(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	stats, err := h.stats.GetStats(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
