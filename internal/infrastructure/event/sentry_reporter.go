package event

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/getsentry/sentry-go"
)

// SentryReporter forwards reminder bookkeeping problems to Sentry.
// A stale bookkeeping event is captured as a warning because a customer
// received an email the system has no durable trace of. A reconciled cache
// only leaves a breadcrumb.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter creates a reporter on hub
func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	return &SentryReporter{hub: hub}
}

// EventTypes implements shared.EventHandler
func (r *SentryReporter) EventTypes() []string {
	return []string{
		invoicing.EventTypeReminderBookkeepingStale,
		invoicing.EventTypeReminderCacheReconciled,
	}
}

// Handle implements shared.EventHandler
func (r *SentryReporter) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *invoicing.ReminderBookkeepingStaleEvent:
		r.captureStale(e)
	case *invoicing.ReminderCacheReconciledEvent:
		r.hub.AddBreadcrumb(&sentry.Breadcrumb{
			Category: "reminder",
			Message:  "Invoice status repaired from reminder history",
			Level:    sentry.LevelInfo,
			Data: map[string]interface{}{
				"invoice_id":    e.InvoiceID.String(),
				"cached_status": string(e.CachedStatus),
				"highest_level": int(e.HighestLevel),
				"repaired":      e.Repaired,
			},
			Timestamp: e.OccurredAt(),
		}, nil)
	}
	return nil
}

func (r *SentryReporter) captureStale(e *invoicing.ReminderBookkeepingStaleEvent) {
	failures := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		failures[i] = string(f)
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTag("tenant_id", e.TenantID().String())
		scope.SetTag("invoice_id", e.InvoiceID.String())
		scope.SetTag("reminder_level", strconv.Itoa(int(e.Level)))
		scope.SetExtra("failures", failures)
		scope.SetExtra("detail", e.Detail)
		scope.SetFingerprint([]string{"reminder-bookkeeping-stale", strings.Join(failures, ",")})
		r.hub.CaptureMessage(fmt.Sprintf("Reminder sent but bookkeeping failed (%s)", strings.Join(failures, ", ")))
	})
}

var _ shared.EventHandler = (*SentryReporter)(nil)
