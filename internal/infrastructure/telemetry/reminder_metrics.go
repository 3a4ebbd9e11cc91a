package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
)

const reminderMeterName = "github.com/erp/invoicing/reminders"

// ReminderMetrics turns invoicing domain events into counters. It is
// subscribed to the event bus so the services never touch the meter directly.
type ReminderMetrics struct {
	remindersSent     *Counter
	bookkeepingStale  *Counter
	cacheReconciled   *Counter
	statusTransitions *Counter
	sweepDuration     *Histogram
	sweepRepaired     *Counter
}

// NewReminderMetrics registers the reminder instruments on meter
func NewReminderMetrics(meter metric.Meter) (*ReminderMetrics, error) {
	var (
		m   ReminderMetrics
		err error
	)

	if m.remindersSent, err = NewCounter(meter,
		"invoicing_reminders_sent_total", "Reminder emails handed to the mail transport", "{reminder}"); err != nil {
		return nil, err
	}
	if m.bookkeepingStale, err = NewCounter(meter,
		"invoicing_reminder_bookkeeping_stale_total", "Sent reminders whose record or status update was lost", "{reminder}"); err != nil {
		return nil, err
	}
	if m.cacheReconciled, err = NewCounter(meter,
		"invoicing_reminder_cache_reconciled_total", "Cached statuses found behind the reminder history", "{invoice}"); err != nil {
		return nil, err
	}
	if m.statusTransitions, err = NewCounter(meter,
		"invoicing_status_transitions_total", "Invoice status transitions", "{transition}"); err != nil {
		return nil, err
	}
	if m.sweepRepaired, err = NewCounter(meter,
		"invoicing_reconciliation_repaired_total", "Invoices repaired by the reconciliation sweep", "{invoice}"); err != nil {
		return nil, err
	}
	if m.sweepDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "invoicing_reconciliation_duration_seconds",
		Description: "Duration of reconciliation sweeps",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	}); err != nil {
		return nil, err
	}

	return &m, nil
}

// EventTypes implements shared.EventHandler
func (m *ReminderMetrics) EventTypes() []string {
	return []string{
		invoicing.EventTypeInvoiceStatusChanged,
		invoicing.EventTypeReminderSent,
		invoicing.EventTypeReminderBookkeepingStale,
		invoicing.EventTypeReminderCacheReconciled,
	}
}

// Handle implements shared.EventHandler
func (m *ReminderMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	tenant := AttrTenantID.String(event.TenantID().String())

	switch e := event.(type) {
	case *invoicing.ReminderSentEvent:
		m.remindersSent.Inc(ctx, tenant,
			AttrReminderLevel.Int(int(e.Level)),
			AttrDuplicate.Bool(e.Duplicate))
	case *invoicing.ReminderBookkeepingStaleEvent:
		for _, f := range e.Failures {
			m.bookkeepingStale.Inc(ctx, tenant,
				AttrReminderLevel.Int(int(e.Level)),
				AttrFailure.String(string(f)))
		}
	case *invoicing.ReminderCacheReconciledEvent:
		m.cacheReconciled.Inc(ctx, tenant, AttrRepaired.Bool(e.Repaired))
	case *invoicing.InvoiceStatusChangedEvent:
		m.statusTransitions.Inc(ctx, tenant,
			AttrFromStatus.String(string(e.FromStatus)),
			AttrToStatus.String(string(e.ToStatus)))
	default:
		return fmt.Errorf("unexpected event %T", event)
	}
	return nil
}

// RecordSweep records one reconciliation run
func (m *ReminderMetrics) RecordSweep(ctx context.Context, elapsed time.Duration, repaired int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.sweepDuration.RecordDuration(ctx, elapsed, AttrOutcome.String(outcome))
	if repaired > 0 {
		m.sweepRepaired.Add(ctx, int64(repaired))
	}
}

var _ shared.EventHandler = (*ReminderMetrics)(nil)
