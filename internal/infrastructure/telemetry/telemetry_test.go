package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestMetrics(t *testing.T) (*ReminderMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewReminderMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, "metric %s is not an int64 sum", name)
				return sum
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Sum[int64]{}
}

func valueWith(sum metricdata.Sum[int64], kv attribute.KeyValue) int64 {
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(kv.Key); ok && v == kv.Value {
			total += dp.Value
		}
	}
	return total
}

// ============ Reminder Metrics Tests ============

func TestReminderMetrics_CountsSentReminders(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	record := &invoicing.ReminderRecord{TenantID: uuid.New(), InvoiceID: uuid.New(), Level: invoicing.ReminderLevelGentle}
	require.NoError(t, m.Handle(ctx, invoicing.NewReminderSentEvent(record, false)))
	record.Level = invoicing.ReminderLevelFinal
	require.NoError(t, m.Handle(ctx, invoicing.NewReminderSentEvent(record, true)))

	sum := collectSum(t, reader, "invoicing_reminders_sent_total")
	assert.True(t, sum.IsMonotonic)
	assert.EqualValues(t, 1, valueWith(sum, AttrReminderLevel.Int(1)))
	assert.EqualValues(t, 1, valueWith(sum, AttrDuplicate.Bool(true)))
}

func TestReminderMetrics_CountsEachBookkeepingFailure(t *testing.T) {
	m, reader := newTestMetrics(t)

	event := invoicing.NewReminderBookkeepingStaleEvent(uuid.New(), uuid.New(), invoicing.ReminderLevelFollowUp,
		[]invoicing.BookkeepingFailure{invoicing.BookkeepingFailureRecord, invoicing.BookkeepingFailureStatus}, "db down", time.Now())
	require.NoError(t, m.Handle(context.Background(), event))

	sum := collectSum(t, reader, "invoicing_reminder_bookkeeping_stale_total")
	assert.EqualValues(t, 1, valueWith(sum, AttrFailure.String("record_not_persisted")))
	assert.EqualValues(t, 1, valueWith(sum, AttrFailure.String("status_not_updated")))
}

func TestReminderMetrics_StatusTransitionsAndReconciliation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	inv := &invoicing.Invoice{InvoiceNumber: "INV-1"}
	inv.ID = uuid.New()
	require.NoError(t, m.Handle(ctx, invoicing.NewInvoiceStatusChangedEvent(inv, invoicing.InvoiceStatusSent, invoicing.InvoiceStatusOverdue, time.Now())))
	require.NoError(t, m.Handle(ctx, invoicing.NewReminderCacheReconciledEvent(inv, invoicing.InvoiceStatusOverdue, invoicing.ReminderLevelGentle, true)))

	transitions := collectSum(t, reader, "invoicing_status_transitions_total")
	assert.EqualValues(t, 1, valueWith(transitions, AttrToStatus.String("overdue")))

	reconciled := collectSum(t, reader, "invoicing_reminder_cache_reconciled_total")
	assert.EqualValues(t, 1, valueWith(reconciled, AttrRepaired.Bool(true)))
}

func TestReminderMetrics_RecordSweep(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordSweep(context.Background(), 3*time.Second, 4, nil)
	m.RecordSweep(context.Background(), time.Second, 0, errors.New("db down"))

	sum := collectSum(t, reader, "invoicing_reconciliation_repaired_total")
	require.Len(t, sum.DataPoints, 1)
	assert.EqualValues(t, 4, sum.DataPoints[0].Value)
}

func TestReminderMetrics_EventTypes(t *testing.T) {
	m, _ := newTestMetrics(t)
	assert.ElementsMatch(t, []string{
		invoicing.EventTypeInvoiceStatusChanged,
		invoicing.EventTypeReminderSent,
		invoicing.EventTypeReminderBookkeepingStale,
		invoicing.EventTypeReminderCacheReconciled,
	}, m.EventTypes())
}

// ============ Provider Tests ============

func TestProviders_DisabledAreNoop(t *testing.T) {
	ctx := context.Background()
	cfg := config.TelemetryConfig{Enabled: false, ServiceName: "invoicing"}

	tp, err := NewTracerProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := NewMeterProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	_, err = NewReminderMetrics(mp.Meter("test"))
	assert.NoError(t, err)
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestInitSentry_EmptyDSNDisabled(t *testing.T) {
	flush, err := InitSentry(config.SentryConfig{}, "test", zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, flush)
	flush()
}

// ============ DB Tracing Tests ============

type tracedRow struct {
	ID   int `gorm:"primaryKey"`
	Name string
}

func openTracedDB(t *testing.T, cfg DBTracingConfig) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).RegisterOtelGorm(db))
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestDBTracingPlugin_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := NewSDKTracerProvider(nil, sdktrace.WithSpanProcessor(recorder), 1)

	db := openTracedDB(t, DBTracingConfig{
		Enabled:         true,
		SlowQueryThresh: time.Hour,
		DBSystem:        "sqlite",
		TracerProvider:  provider,
	})

	require.NoError(t, db.Create(&tracedRow{ID: 1, Name: "a"}).Error)
	var row tracedRow
	require.NoError(t, db.First(&row, 1).Error)

	assert.NotEmpty(t, recorder.Ended())
}

func TestDBTracingPlugin_DisabledRegistersNothing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := NewSDKTracerProvider(nil, sdktrace.WithSpanProcessor(recorder), 1)

	db := openTracedDB(t, DBTracingConfig{Enabled: false, TracerProvider: provider})
	require.NoError(t, db.Create(&tracedRow{ID: 1, Name: "a"}).Error)

	assert.Empty(t, recorder.Ended())
}

func TestDBTracingConfigFrom(t *testing.T) {
	cfg := DBTracingConfigFrom(config.TelemetryConfig{Enabled: true, DBTraceEnabled: true}, "postgresql")
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)

	cfg = DBTracingConfigFrom(config.TelemetryConfig{Enabled: false, DBTraceEnabled: true}, "postgresql")
	assert.False(t, cfg.Enabled)
}
