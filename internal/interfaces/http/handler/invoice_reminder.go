package handler

import (
	"context"
	"errors"
	"io"

	invoicingapp "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReminderUseCases is what the invoice reminder endpoints need from the reminder service
type ReminderUseCases interface {
	GetReminderEligibility(ctx context.Context, tenantID, invoiceID uuid.UUID) (*invoicingapp.ReminderEligibilityResponse, error)
	SendReminder(ctx context.Context, tenantID, actorID, invoiceID uuid.UUID, req invoicingapp.SendReminderRequest) (*invoicingapp.SendReminderResult, error)
}

// InvoiceStatusUseCases is what the invoice status endpoints need from the status service
type InvoiceStatusUseCases interface {
	SetInvoiceStatus(ctx context.Context, tenantID, actorID, invoiceID uuid.UUID, req invoicingapp.SetInvoiceStatusRequest) (*invoicingapp.SetInvoiceStatusResult, error)
	GetInvoiceStatus(ctx context.Context, tenantID, invoiceID uuid.UUID) (*invoicingapp.InvoiceStatusResponse, error)
}

// InvoiceReminderHandler serves the per-invoice reminder and status endpoints
type InvoiceReminderHandler struct {
	BaseHandler
	reminders ReminderUseCases
	statuses  InvoiceStatusUseCases
}

// NewInvoiceReminderHandler creates a new InvoiceReminderHandler
func NewInvoiceReminderHandler(reminders ReminderUseCases, statuses InvoiceStatusUseCases) *InvoiceReminderHandler {
	return &InvoiceReminderHandler{reminders: reminders, statuses: statuses}
}

// GetReminders godoc
//
//	@ID				getInvoiceReminders
//	@Summary		Get reminder history and eligibility
//	@Description	Returns the reminders sent for an invoice, newest first, and whether the next one can go out now
//	@Tags			reminders
//	@Produce		json
//	@Param			id	path		string	true	"Invoice ID"
//	@Success		200	{object}	APIResponse[invoicingapp.ReminderEligibilityResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/reminders [get]
func (h *InvoiceReminderHandler) GetReminders(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}
	invoiceID, ok := parseIDParam(c)
	if !ok {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	resp, err := h.reminders.GetReminderEligibility(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SendReminder godoc
//
//	@ID				sendInvoiceReminder
//	@Summary		Send the next payment reminder
//	@Description	Emails the next reminder level for an overdue invoice. The body is optional.
//	@Description	outcome is sent_with_bookkeeping_warning when the email went out but the record or status update failed.
//	@Tags			reminders
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string								true	"Invoice ID"
//	@Param			request	body		invoicingapp.SendReminderRequest	false	"Template and personal note"
//	@Success		200		{object}	APIResponse[invoicingapp.SendReminderResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		429		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/send-reminder [post]
func (h *InvoiceReminderHandler) SendReminder(c *gin.Context) {
	tenantID, actorID, ok := h.identity(c)
	if !ok {
		return
	}
	invoiceID, ok := parseIDParam(c)
	if !ok {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	// The body is optional
	var req invoicingapp.SendReminderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			h.BindError(c, err)
			return
		}
	}

	result, err := h.reminders.SendReminder(c.Request.Context(), tenantID, actorID, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SetStatus godoc
//
//	@ID				setInvoiceStatus
//	@Summary		Change the invoice status
//	@Description	Applies a user status change along the allowed transitions
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string									true	"Invoice ID"
//	@Param			request	body		invoicingapp.SetInvoiceStatusRequest	true	"Target status"
//	@Success		200		{object}	APIResponse[invoicingapp.InvoiceResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/status [patch]
//	@Router			/invoices/{id}/status [put]
func (h *InvoiceReminderHandler) SetStatus(c *gin.Context) {
	tenantID, actorID, ok := h.identity(c)
	if !ok {
		return
	}
	invoiceID, ok := parseIDParam(c)
	if !ok {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	var req invoicingapp.SetInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.statuses.SetInvoiceStatus(c.Request.Context(), tenantID, actorID, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMessage(c, result.Invoice, result.Message)
}

// GetStatus godoc
//
//	@ID				getInvoiceStatus
//	@Summary		Get the invoice status
//	@Description	Returns the current status, the transitions allowed from it and whether the invoice is overdue
//	@Tags			invoices
//	@Produce		json
//	@Param			id	path		string	true	"Invoice ID"
//	@Success		200	{object}	APIResponse[invoicingapp.InvoiceStatusResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/status [get]
func (h *InvoiceReminderHandler) GetStatus(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}
	invoiceID, ok := parseIDParam(c)
	if !ok {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	resp, err := h.statuses.GetInvoiceStatus(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// identity resolves tenant and acting user, answering 401 when either is missing
func (h *InvoiceReminderHandler) identity(c *gin.Context) (tenantID, userID uuid.UUID, ok bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return uuid.Nil, uuid.Nil, false
	}
	userID, err = getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identification required")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, userID, true
}
