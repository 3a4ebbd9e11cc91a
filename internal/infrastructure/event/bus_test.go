package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Invoice", uuid.New(), uuid.New(), time.Now())}
}

type testHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func startedBus(t *testing.T, log *zap.Logger) *InMemoryEventBus {
	t.Helper()
	bus := NewInMemoryEventBus(log)
	require.NoError(t, bus.Start(context.Background()))
	return bus
}

// ============ Bus Tests ============

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := startedBus(t, zap.NewNop())
	sent := &testHandler{eventTypes: []string{invoicing.EventTypeReminderSent}}
	all := &testHandler{}
	bus.Subscribe(sent)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent(invoicing.EventTypeReminderSent),
		newTestEvent(invoicing.EventTypeInvoiceStatusChanged),
	))

	assert.Equal(t, 1, sent.count())
	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandlerTypes(t *testing.T) {
	bus := startedBus(t, zap.NewNop())
	h := &testHandler{eventTypes: []string{"Other"}}
	bus.Subscribe(h, invoicing.EventTypeReminderSent)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent(invoicing.EventTypeReminderSent)))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_HandlerFailuresAreIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	bus := startedBus(t, zap.New(core))

	failing := &testHandler{err: errors.New("metrics backend down")}
	panicking := &testHandler{panicWith: "nil map"}
	healthy := &testHandler{}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent(invoicing.EventTypeReminderSent))

	require.NoError(t, err)
	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, 2, logs.FilterMessage("Event handler failed").Len())
}

func TestInMemoryEventBus_DropsWhenStopped(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := &testHandler{}
	bus.Subscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A")))
	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A")))
	require.NoError(t, bus.Stop(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A"), newTestEvent("B")))

	assert.Equal(t, 1, h.count())
	assert.EqualValues(t, 3, bus.Dropped())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := startedBus(t, zap.NewNop())
	h := &testHandler{eventTypes: []string{"A", "B"}}
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A"), newTestEvent("B")))
	assert.Zero(t, h.count())
	assert.Empty(t, bus.registry.Handlers("A"))
}

// ============ Sentry Reporter Tests ============

type recordingTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *recordingTransport) Configure(sentry.ClientOptions) {}
func (t *recordingTransport) Flush(time.Duration) bool { return true }
func (t *recordingTransport) SendEvent(e *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

func newTestHub(t *testing.T) (*sentry.Hub, *recordingTransport) {
	t.Helper()
	transport := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Transport: transport})
	require.NoError(t, err)
	return sentry.NewHub(client, sentry.NewScope()), transport
}

func TestSentryReporter_CapturesBookkeepingStale(t *testing.T) {
	hub, transport := newTestHub(t)
	reporter := NewSentryReporter(hub)
	tenantID, invoiceID := uuid.New(), uuid.New()

	event := invoicing.NewReminderBookkeepingStaleEvent(tenantID, invoiceID, invoicing.ReminderLevelFollowUp,
		[]invoicing.BookkeepingFailure{invoicing.BookkeepingFailureRecord}, "insert failed", time.Now())
	require.NoError(t, reporter.Handle(context.Background(), event))

	require.Len(t, transport.events, 1)
	captured := transport.events[0]
	assert.Equal(t, sentry.LevelWarning, captured.Level)
	assert.Equal(t, invoiceID.String(), captured.Tags["invoice_id"])
	assert.Equal(t, "2", captured.Tags["reminder_level"])
	assert.Contains(t, captured.Message, "record_not_persisted")
}

func TestSentryReporter_ReconciledLeavesBreadcrumbOnly(t *testing.T) {
	hub, transport := newTestHub(t)
	reporter := NewSentryReporter(hub)

	inv := &invoicing.Invoice{}
	inv.ID = uuid.New()
	event := invoicing.NewReminderCacheReconciledEvent(inv, invoicing.InvoiceStatusSent, invoicing.ReminderLevelFollowUp, true)
	require.NoError(t, reporter.Handle(context.Background(), event))

	assert.Empty(t, transport.events)

	// The breadcrumb rides along with the next captured event
	hub.CaptureMessage("next")
	require.Len(t, transport.events, 1)
	require.Len(t, transport.events[0].Breadcrumbs, 1)
	assert.Equal(t, "reminder", transport.events[0].Breadcrumbs[0].Category)
}

func TestSentryReporter_SubscribedTypes(t *testing.T) {
	bus := startedBus(t, zap.NewNop())
	hub, transport := newTestHub(t)
	bus.Subscribe(NewSentryReporter(hub))

	record := &invoicing.ReminderRecord{InvoiceID: uuid.New(), TenantID: uuid.New(), Level: invoicing.ReminderLevelGentle}
	require.NoError(t, bus.Publish(context.Background(), invoicing.NewReminderSentEvent(record, false)))

	assert.Empty(t, transport.events)
}
