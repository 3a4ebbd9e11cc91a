package invoicing

import (
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"go.uber.org/zap"
)

// ReminderSettings holds the tunables of reminder dispatch
type ReminderSettings struct {
	Policy invoicing.EscalationPolicy

	// AllowDuplicateLevelResend lets a level that was already sent go out again
	// with a warning instead of failing with a conflict.
	AllowDuplicateLevelResend bool

	// SendFromReminderStages accepts overdue_reminder_1 and overdue_reminder_2
	// invoices as send targets so the ladder can be escalated.
	SendFromReminderStages bool

	FromAddress        string
	FromName           string
	PaymentLinkBaseURL string
}

// DefaultReminderSettings returns the settings used when nothing is configured
func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{
		Policy:                    invoicing.DefaultEscalationPolicy(),
		AllowDuplicateLevelResend: true,
	}
}

// Option configures a service of this package
type Option func(*serviceOptions)

type serviceOptions struct {
	logger    *zap.Logger
	now       func() time.Time
	publisher shared.EventPublisher
}

func newServiceOptions(opts []Option) serviceOptions {
	o := serviceOptions{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEventPublisher publishes domain events raised by the service
func WithEventPublisher(publisher shared.EventPublisher) Option {
	return func(o *serviceOptions) {
		o.publisher = publisher
	}
}
