package telemetry

import (
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// InitSentry configures the global Sentry hub. An empty DSN leaves Sentry
// disabled and returns a flush function that does nothing.
func InitSentry(cfg config.SentryConfig, release string, logger *zap.Logger) (flush func(), err error) {
	if cfg.DSN == "" {
		logger.Info("Sentry disabled, no DSN configured")
		return func() {}, nil
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	logger.Info("Sentry initialized",
		zap.String("environment", cfg.Environment),
		zap.Float64("traces_sample_rate", cfg.TracesSampleRate))

	return func() { sentry.Flush(2 * time.Second) }, nil
}
