package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // Include query variables in spans (dev only)
	SlowQueryThresh time.Duration // Queries above this get a slow_query_warning event
	DBSystem        string
	TracerProvider  trace.TracerProvider
}

// DBTracingConfigFrom derives the tracing config from the telemetry section
func DBTracingConfigFrom(cfg config.TelemetryConfig, dbSystem string) DBTracingConfig {
	thresh := cfg.DBSlowQueryThresh
	if thresh <= 0 {
		thresh = 200 * time.Millisecond
	}
	return DBTracingConfig{
		Enabled:         cfg.Enabled && cfg.DBTraceEnabled,
		LogFullSQL:      cfg.DBLogFullSQL,
		SlowQueryThresh: thresh,
		DBSystem:        dbSystem,
	}
}

// DBTracingPlugin wraps otelgorm with slow query detection.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

// RegisterOtelGorm registers otelgorm and the timing callbacks on db.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
		otelgorm.WithoutMetrics(),
	}
	if p.config.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(p.config.TracerProvider))
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// processorHooks narrows one gorm callback processor to the two calls used here
type processorHooks struct {
	before func(string) callbackRegistrar
	after  func(string) callbackRegistrar
}

func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	processors := map[string]processorHooks{
		"create": {
			before: func(n string) callbackRegistrar { return cb.Create().Before(n) },
			after:  func(n string) callbackRegistrar { return cb.Create().After(n) },
		},
		"query": {
			before: func(n string) callbackRegistrar { return cb.Query().Before(n) },
			after:  func(n string) callbackRegistrar { return cb.Query().After(n) },
		},
		"update": {
			before: func(n string) callbackRegistrar { return cb.Update().Before(n) },
			after:  func(n string) callbackRegistrar { return cb.Update().After(n) },
		},
		"delete": {
			before: func(n string) callbackRegistrar { return cb.Delete().Before(n) },
			after:  func(n string) callbackRegistrar { return cb.Delete().After(n) },
		},
		"row": {
			before: func(n string) callbackRegistrar { return cb.Row().Before(n) },
			after:  func(n string) callbackRegistrar { return cb.Row().After(n) },
		},
		"raw": {
			before: func(n string) callbackRegistrar { return cb.Raw().Before(n) },
			after:  func(n string) callbackRegistrar { return cb.Raw().After(n) },
		},
	}

	for op, proc := range processors {
		if err := proc.before("gorm:"+op).Register("otel_timing:before_"+op, markQueryStart); err != nil {
			return err
		}
		if err := proc.after("gorm:"+op).Register("otel_slow_query:"+op, p.afterQuery); err != nil {
			return err
		}
	}
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// afterQuery annotates the current span with row counts, errors and slowness.
func (p *DBTracingPlugin) afterQuery(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if startTime, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed := time.Since(startTime)
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"
