package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSweepPageSize = 200

// SweepReport summarizes one reconciliation pass
type SweepReport struct {
	Tenants  int `json:"tenants"`
	Scanned  int `json:"scanned"`
	Stale    int `json:"stale"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

func (r *SweepReport) add(other SweepReport) {
	r.Tenants += other.Tenants
	r.Scanned += other.Scanned
	r.Stale += other.Stale
	r.Repaired += other.Repaired
	r.Failed += other.Failed
}

// ReconciliationSweep repairs cached invoice statuses that lag behind the reminder
// history. It never sends email.
type ReconciliationSweep struct {
	invoiceRepo    invoicing.InvoiceRepository
	reminderRepo   invoicing.ReminderRecordRepository
	tenantProvider invoicing.TenantProvider
	policy         invoicing.EscalationPolicy
	pageSize       int
	dryRun         bool
	serviceOptions
}

// NewReconciliationSweep creates a new ReconciliationSweep
func NewReconciliationSweep(
	invoiceRepo invoicing.InvoiceRepository,
	reminderRepo invoicing.ReminderRecordRepository,
	tenantProvider invoicing.TenantProvider,
	policy invoicing.EscalationPolicy,
	opts ...Option,
) *ReconciliationSweep {
	return &ReconciliationSweep{
		invoiceRepo:    invoiceRepo,
		reminderRepo:   reminderRepo,
		tenantProvider: tenantProvider,
		policy:         policy,
		pageSize:       defaultSweepPageSize,
		serviceOptions: newServiceOptions(opts),
	}
}

// DryRun returns a copy of the sweep that only reports stale invoices
func (s *ReconciliationSweep) DryRun() *ReconciliationSweep {
	c := *s
	c.dryRun = true
	return &c
}

// Run sweeps every tenant with invoices under collection. A failing tenant is
// logged and does not stop the others.
func (s *ReconciliationSweep) Run(ctx context.Context) (SweepReport, error) {
	tenantIDs, err := s.tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		return SweepReport{}, err
	}

	var report SweepReport
	for _, tenantID := range tenantIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		tenantReport, err := s.RunForTenant(ctx, tenantID)
		report.add(tenantReport)
		if err != nil {
			s.logger.Error("Reconciliation failed for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("Reconciliation sweep completed",
		zap.Int("tenants", report.Tenants),
		zap.Int("scanned", report.Scanned),
		zap.Int("stale", report.Stale),
		zap.Int("repaired", report.Repaired),
		zap.Int("failed", report.Failed),
		zap.Bool("dry_run", s.dryRun))
	return report, nil
}

// RunForTenant sweeps the invoices of one tenant page by page
func (s *ReconciliationSweep) RunForTenant(ctx context.Context, tenantID uuid.UUID) (SweepReport, error) {
	report := SweepReport{Tenants: 1}
	now := s.now()

	for page := 1; ; page++ {
		filter := invoicing.InvoiceFilter{
			Filter: shared.Filter{Page: page, PageSize: s.pageSize, OrderBy: "due_date", OrderDir: "asc"},
		}
		invoices, err := s.invoiceRepo.FindForReconciliation(ctx, tenantID, filter)
		if err != nil {
			return report, err
		}
		if len(invoices) == 0 {
			return report, nil
		}

		ids := make([]uuid.UUID, len(invoices))
		for i := range invoices {
			ids[i] = invoices[i].ID
		}
		histories, err := s.reminderRepo.ListByInvoices(ctx, tenantID, ids)
		if err != nil {
			return report, err
		}

		for i := range invoices {
			report.Scanned++
			s.reconcile(ctx, &invoices[i], histories[invoices[i].ID], now, &report)
		}
		if len(invoices) < s.pageSize {
			return report, nil
		}
	}
}

func (s *ReconciliationSweep) reconcile(ctx context.Context, inv *invoicing.Invoice, history invoicing.ReminderHistory, now time.Time, report *SweepReport) {
	result := invoicing.ResolveEligibility(inv, history, s.policy, now)
	if !result.Reconciled {
		return
	}
	report.Stale++

	cached := inv.Status
	logger := s.logger.With(
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("cached_status", string(cached)),
		zap.Int("highest_level", int(result.HighestLevel)))

	// Only a status behind the history can be repaired. A stage without its
	// record is trusted as is.
	if result.HighestLevel <= cached.ReminderStage() {
		logger.Warn("Reminder record missing for cached reminder stage")
		return
	}
	if s.dryRun {
		logger.Warn("Stale invoice status found")
		return
	}

	changed, err := inv.AdvanceReminderStage(result.HighestLevel, now)
	if err == nil && changed {
		err = s.invoiceRepo.SaveWithLock(ctx, inv)
	}
	if err != nil {
		report.Failed++
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			logger.Info("Invoice changed during reconciliation, skipped")
		} else {
			logger.Error("Failed to repair invoice status", zap.Error(err))
		}
		return
	}

	report.Repaired++
	logger.Warn("Invoice status repaired from reminder history", zap.String("status", string(inv.Status)))
	s.publish(ctx, inv.GetDomainEvents()...)
	inv.ClearDomainEvents()
	s.publish(ctx, invoicing.NewReminderCacheReconciledEvent(inv, cached, result.HighestLevel, true))
}
