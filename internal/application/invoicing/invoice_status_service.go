package invoicing

import (
	"context"
	"errors"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoiceStatusService applies user status transitions
type InvoiceStatusService struct {
	invoiceRepo invoicing.InvoiceRepository
	auditRepo   invoicing.AuditLogRepository
	serviceOptions
}

// NewInvoiceStatusService creates a new InvoiceStatusService
func NewInvoiceStatusService(invoiceRepo invoicing.InvoiceRepository, auditRepo invoicing.AuditLogRepository, opts ...Option) *InvoiceStatusService {
	return &InvoiceStatusService{
		invoiceRepo:    invoiceRepo,
		auditRepo:      auditRepo,
		serviceOptions: newServiceOptions(opts),
	}
}

// SetInvoiceStatus moves an invoice along a user edge of the transition table.
// A failed audit append is logged and does not fail the change.
func (s *InvoiceStatusService) SetInvoiceStatus(ctx context.Context, tenantID, actorID, invoiceID uuid.UUID, req SetInvoiceStatusRequest) (*SetInvoiceStatusResult, error) {
	target, err := invoicing.ParseInvoiceStatus(req.Status)
	if err != nil {
		return nil, err
	}

	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Invoice")
		}
		return nil, shared.NewInternalError("Failed to load invoice", err)
	}

	from := inv.Status
	if err := inv.TransitionTo(target, s.now()); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, err
		}
		return nil, shared.NewInternalError("Failed to update invoice status", err)
	}

	actor := actorID
	if err := s.auditRepo.Append(ctx, invoicing.NewStatusChangedAuditEntry(inv, &actor, from, target)); err != nil {
		s.logger.Warn("Failed to write audit log for status change",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err))
	}

	s.publish(ctx, inv.GetDomainEvents()...)
	inv.ClearDomainEvents()

	s.logger.Info("Invoice status changed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)))

	return &SetInvoiceStatusResult{
		Invoice: ToInvoiceResponse(inv),
		Message: invoicing.TransitionMessage(inv.InvoiceNumber, target),
	}, nil
}

// GetInvoiceStatus returns the current status and the user transitions available from it
func (s *InvoiceStatusService) GetInvoiceStatus(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceStatusResponse, error) {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Invoice")
		}
		return nil, shared.NewInternalError("Failed to load invoice", err)
	}

	allowed := inv.Status.AllowedTransitions()
	transitions := make([]string, len(allowed))
	for i, st := range allowed {
		transitions[i] = string(st)
	}

	return &InvoiceStatusResponse{
		InvoiceNumber:        inv.InvoiceNumber,
		CurrentStatus:        string(inv.Status),
		AvailableTransitions: transitions,
		SentAt:               inv.SentAt,
		PaidAt:               inv.PaidAt,
		DueDate:              inv.DueDate,
		IsOverdue:            inv.IsOverdue(s.now()),
	}, nil
}
