package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReminderServiceConfig contains the collaborators of ReminderService
type ReminderServiceConfig struct {
	InvoiceRepo  invoicing.InvoiceRepository
	ReminderRepo invoicing.ReminderRecordRepository
	TemplateRepo invoicing.ReminderTemplateRepository
	ClientRepo   invoicing.ClientRepository
	Mailer       MailSender
	Locker       InvoiceLocker
	Settings     ReminderSettings
}

// ReminderService answers reminder eligibility and dispatches reminders
type ReminderService struct {
	invoiceRepo  invoicing.InvoiceRepository
	reminderRepo invoicing.ReminderRecordRepository
	templateRepo invoicing.ReminderTemplateRepository
	clientRepo   invoicing.ClientRepository
	mailer       MailSender
	locker       InvoiceLocker
	settings     ReminderSettings
	serviceOptions
}

// NewReminderService creates a new ReminderService
func NewReminderService(config ReminderServiceConfig, opts ...Option) *ReminderService {
	return &ReminderService{
		invoiceRepo:    config.InvoiceRepo,
		reminderRepo:   config.ReminderRepo,
		templateRepo:   config.TemplateRepo,
		clientRepo:     config.ClientRepo,
		mailer:         config.Mailer,
		locker:         config.Locker,
		settings:       config.Settings,
		serviceOptions: newServiceOptions(opts),
	}
}

const msgStageEscalationDisabled = "Escalating from a reminder stage requires reminder.send_from_reminder_stages to be enabled."

// GetReminderEligibility reports whether the invoice can be reminded now and
// returns its reminder history, newest first. It never writes.
func (s *ReminderService) GetReminderEligibility(ctx context.Context, tenantID, invoiceID uuid.UUID) (*ReminderEligibilityResponse, error) {
	inv, err := s.loadInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	history, err := s.reminderRepo.ListByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, shared.NewInternalError("Failed to load reminder history", err)
	}

	result := invoicing.ResolveEligibility(inv, history, s.settings.Policy, s.now())
	s.warnIfReconciled(inv, result)
	// SendReminder refuses these, so the answer must not promise a send
	if result.CanSend && inv.Status.ReminderStage() > 0 && !s.canSendFrom(inv.Status) {
		result.CanSend = false
		result.Message = msgStageEscalationDisabled
	}

	reminders := make([]ReminderResponse, 0, len(history))
	for _, r := range history.NewestFirst() {
		reminders = append(reminders, ToReminderResponse(&r))
	}

	return &ReminderEligibilityResponse{
		InvoiceID:             inv.ID,
		InvoiceNumber:         inv.InvoiceNumber,
		Status:                string(inv.Status),
		Reminders:             reminders,
		NextReminderLevel:     result.NextLevel,
		CanSendReminder:       result.CanSend,
		DaysOverdue:           result.DaysOverdue,
		DaysUntilNextReminder: result.DaysRemaining,
		Message:               result.Message,
	}, nil
}

// SendReminder emails the next reminder of an invoice. The level is derived from
// the reminder history, never from the caller. Once the email has gone out the
// call succeeds; failing to record it or to advance the status only downgrades
// the outcome to a bookkeeping warning.
func (s *ReminderService) SendReminder(ctx context.Context, tenantID, actorID, invoiceID uuid.UUID, req SendReminderRequest) (*SendReminderResult, error) {
	release, err := s.locker.Acquire(ctx, tenantID, invoiceID)
	if err != nil {
		s.logger.Info("Reminder send rejected, invoice is locked",
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err))
		return nil, shared.NewConflictError("Another reminder for this invoice is being sent")
	}
	defer release()

	inv, err := s.loadInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !s.canSendFrom(inv.Status) {
		return nil, shared.NewConflictError("Can only send reminders for sent or overdue invoices")
	}

	client, err := s.clientRepo.FindByIDForTenant(ctx, tenantID, inv.ClientID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Client")
		}
		return nil, shared.NewInternalError("Failed to load client", err)
	}
	recipient, err := client.ResolveRecipient()
	if err != nil {
		return nil, err
	}

	history, err := s.reminderRepo.ListByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, shared.NewInternalError("Failed to load reminder history", err)
	}
	eligibility := invoicing.ResolveEligibility(inv, history, s.settings.Policy, s.now())
	s.warnIfReconciled(inv, eligibility)

	var warnings []string
	level, duplicate, err := s.chooseLevel(eligibility)
	if err != nil {
		return nil, err
	}
	if !duplicate {
		duplicate, err = s.reminderRepo.ExistsAtLevel(ctx, tenantID, invoiceID, level)
		if err != nil {
			return nil, shared.NewInternalError("Failed to check reminder history", err)
		}
		if duplicate && !s.settings.AllowDuplicateLevelResend {
			return nil, shared.NewConflictError("Reminder level %d was already sent for this invoice", level)
		}
	}
	if duplicate {
		s.logger.Warn("Reminder level already sent, sending again",
			zap.String("invoice_id", invoiceID.String()),
			zap.Int("level", int(level)))
		warnings = append(warnings, fmt.Sprintf("Reminder level %d was already sent for this invoice", level))
	}

	template, err := s.resolveTemplate(ctx, tenantID, level, req.TemplateID)
	if err != nil {
		return nil, err
	}
	profile, err := s.clientRepo.FindSenderProfile(ctx, tenantID, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Sender profile")
		}
		return nil, shared.NewInternalError("Failed to load sender profile", err)
	}

	subject, body := template.Render(invoicing.TemplateVariables{
		ClientName:    client.CompanyName,
		AdminName:     recipient.GreetingName,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceDate:   inv.InvoiceDate,
		DueDate:       inv.DueDate,
		DaysOverdue:   eligibility.DaysOverdue,
		TotalAmount:   invoicing.FormatAmount(inv.TotalAmount, inv.Currency),
		BusinessName:  profile.DisplayName(),
		PaymentLink:   s.paymentLink(inv),
	}, req.PersonalNote)

	msg := MailMessage{
		To:       recipient.Email,
		From:     s.settings.FromAddress,
		FromName: s.settings.FromName,
		ReplyTo:  profile.Email,
		Subject:  subject,
		Body:     body,
	}
	if req.SendCopyToSender && profile.Email != "" {
		msg.Cc = []string{profile.Email}
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("Failed to send reminder email",
			zap.String("invoice_id", invoiceID.String()),
			zap.Int("level", int(level)),
			zap.Error(err))
		return nil, shared.NewDomainError(shared.CodeExternalService, "Failed to send email: "+err.Error()).WithCause(err)
	}

	// The email is out. Nothing below may fail the request.
	sentAt := s.now()
	var failures []invoicing.BookkeepingFailure
	var details []string

	record, err := invoicing.NewReminderRecord(tenantID, invoiceID, actorID, level,
		recipient.Email, subject, body, strings.TrimSpace(req.PersonalNote), sentAt)
	if err == nil {
		err = s.reminderRepo.Create(ctx, record)
	}
	if err != nil {
		s.logger.Error("Reminder sent but not recorded",
			zap.String("invoice_id", invoiceID.String()),
			zap.Int("level", int(level)),
			zap.Error(err))
		failures = append(failures, invoicing.BookkeepingFailureRecord)
		details = append(details, err.Error())
		warnings = append(warnings, "Reminder was sent but could not be recorded")
		record = nil
	}

	if err := s.advanceStage(ctx, inv, level, sentAt); err != nil {
		s.logger.Error("Reminder sent but invoice status not updated",
			zap.String("invoice_id", invoiceID.String()),
			zap.Int("level", int(level)),
			zap.Error(err))
		failures = append(failures, invoicing.BookkeepingFailureStatus)
		details = append(details, err.Error())
		warnings = append(warnings, "Reminder was sent but the invoice status could not be updated")
	}

	events := make([]shared.DomainEvent, 0, 3)
	if record != nil {
		events = append(events, invoicing.NewReminderSentEvent(record, duplicate))
	}
	if len(failures) > 0 {
		events = append(events, invoicing.NewReminderBookkeepingStaleEvent(tenantID, invoiceID, level, failures, strings.Join(details, "; "), sentAt))
	}
	s.publish(ctx, events...)

	nextLevel, daysUntilNext := invoicing.NextReminderInfo(level)
	result := &SendReminderResult{
		Outcome:               SendOutcomeSent,
		NextReminderLevel:     nextLevel,
		DaysUntilNextReminder: daysUntilNext,
		Warnings:              warnings,
	}
	if record != nil {
		resp := ToReminderResponse(record)
		result.Reminder = &resp
	}
	if len(failures) > 0 {
		result.Outcome = SendOutcomeSentWithBookkeepingWarning
	}

	s.logger.Info("Payment reminder sent",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.Int("level", int(level)),
		zap.String("outcome", string(result.Outcome)))
	return result, nil
}

// chooseLevel turns the eligibility into the level to send. A complete ladder
// resends the final level only when duplicates are allowed.
func (s *ReminderService) chooseLevel(e invoicing.Eligibility) (invoicing.ReminderLevel, bool, error) {
	if level, ok := e.NextLevel.Level(); ok && e.CanSend {
		return level, false, nil
	}
	if e.NextLevel.IsComplete() && s.settings.AllowDuplicateLevelResend {
		return invoicing.MaxReminderLevel, true, nil
	}
	message := e.Message
	if message == "" {
		message = "Invoice is not eligible for a reminder"
	}
	return 0, false, shared.NewConflictError("%s", message)
}

func (s *ReminderService) canSendFrom(status invoicing.InvoiceStatus) bool {
	switch status {
	case invoicing.InvoiceStatusSent, invoicing.InvoiceStatusOverdue:
		return true
	case invoicing.InvoiceStatusOverdueReminder1, invoicing.InvoiceStatusOverdueReminder2:
		return s.settings.SendFromReminderStages
	default:
		return false
	}
}

// resolveTemplate picks the caller's template, then the tenant default for the
// level, seeding the defaults once when the tenant has none
func (s *ReminderService) resolveTemplate(ctx context.Context, tenantID uuid.UUID, level invoicing.ReminderLevel, templateID *uuid.UUID) (*invoicing.ReminderTemplate, error) {
	if templateID != nil {
		template, err := s.templateRepo.FindByIDForTenant(ctx, tenantID, *templateID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewNotFoundError("Reminder template")
			}
			return nil, shared.NewInternalError("Failed to load reminder template", err)
		}
		return template, nil
	}

	template, err := s.templateRepo.FindDefaultForLevel(ctx, tenantID, level)
	if err == nil {
		return template, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewInternalError("Could not load reminder template", err)
	}

	if err := s.templateRepo.SeedDefaults(ctx, tenantID); err != nil {
		return nil, shared.NewInternalError("Could not load reminder template", err)
	}
	template, err = s.templateRepo.FindDefaultForLevel(ctx, tenantID, level)
	if err != nil {
		return nil, shared.NewInternalError("Could not load reminder template", err)
	}
	return template, nil
}

// advanceStage moves the cached status to the level just sent and saves it
func (s *ReminderService) advanceStage(ctx context.Context, inv *invoicing.Invoice, level invoicing.ReminderLevel, now time.Time) error {
	changed, err := inv.AdvanceReminderStage(level, now)
	if err != nil || !changed {
		return err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return err
	}
	s.publish(ctx, inv.GetDomainEvents()...)
	inv.ClearDomainEvents()
	return nil
}

func (s *ReminderService) paymentLink(inv *invoicing.Invoice) string {
	base := strings.TrimRight(s.settings.PaymentLinkBaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/" + inv.ID.String()
}

func (s *ReminderService) loadInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*invoicing.Invoice, error) {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Invoice")
		}
		return nil, shared.NewInternalError("Failed to load invoice", err)
	}
	return inv, nil
}

func (s *ReminderService) warnIfReconciled(inv *invoicing.Invoice, e invoicing.Eligibility) {
	if !e.Reconciled {
		return
	}
	s.logger.Warn("Invoice status does not match reminder history",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("cached_status", string(e.CachedStatus)),
		zap.Int("highest_level", int(e.HighestLevel)))
}

func (o serviceOptions) publish(ctx context.Context, events ...shared.DomainEvent) {
	if o.publisher == nil || len(events) == 0 {
		return
	}
	if err := o.publisher.Publish(ctx, events...); err != nil {
		o.logger.Warn("Failed to publish events", zap.Int("count", len(events)), zap.Error(err))
	}
}
