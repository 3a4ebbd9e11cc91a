package integration

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/cache"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	CleanupSharedRedis()
	os.Exit(code)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []appinvoicing.MailMessage
}

func (m *recordingMailer) Send(_ context.Context, msg appinvoicing.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type reminderFlow struct {
	db       *TestDB
	invoices *persistence.GormInvoiceRepository
	service  *appinvoicing.ReminderService
	sweep    *appinvoicing.ReconciliationSweep
	mailer   *recordingMailer
	now      time.Time
	tenantID uuid.UUID
	userID   uuid.UUID
	invoice  *invoicing.Invoice
}

func newReminderFlow(t *testing.T) *reminderFlow {
	t.Helper()
	tdb := NewSharedTestDB(t)

	f := &reminderFlow{
		db:       tdb,
		invoices: persistence.NewGormInvoiceRepository(tdb.DB),
		mailer:   &recordingMailer{},
		now:      time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
		tenantID: uuid.New(),
		userID:   uuid.New(),
	}
	reminders := persistence.NewGormReminderRecordRepository(tdb.DB)
	settings := appinvoicing.DefaultReminderSettings()
	settings.FromAddress = "billing@invoicing.test"
	opts := []appinvoicing.Option{
		appinvoicing.WithLogger(zap.NewNop()),
		appinvoicing.WithClock(func() time.Time { return f.now }),
	}

	f.service = appinvoicing.NewReminderService(appinvoicing.ReminderServiceConfig{
		InvoiceRepo:  f.invoices,
		ReminderRepo: reminders,
		TemplateRepo: persistence.NewGormReminderTemplateRepository(tdb.DB),
		ClientRepo:   persistence.NewGormClientRepository(tdb.DB),
		Mailer:       f.mailer,
		Locker:       cache.NewInMemoryInvoiceLocker(cache.LockOptions{TTL: time.Minute}),
		Settings:     settings,
	}, opts...)
	f.sweep = appinvoicing.NewReconciliationSweep(f.invoices, reminders,
		persistence.NewGormTenantProvider(tdb.DB), settings.Policy, opts...)

	clientID := tdb.CreateClient(f.tenantID, "acme", "admin@acme.test")
	tdb.CreateSenderProfile(f.tenantID, f.userID, "Studio North", "sam@studio-north.test")

	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	inv, err := invoicing.NewInvoice(f.tenantID, clientID, "F-2024-001", due.AddDate(0, 0, -14), due, decimal.NewFromInt(1210))
	require.NoError(t, err)
	inv.Status = invoicing.InvoiceStatusOverdue
	require.NoError(t, f.invoices.Save(context.Background(), inv))
	f.invoice = inv

	return f
}

func (f *reminderFlow) status(t *testing.T) invoicing.InvoiceStatus {
	t.Helper()
	inv, err := f.invoices.FindByIDForTenant(context.Background(), f.tenantID, f.invoice.ID)
	require.NoError(t, err)
	return inv.Status
}

func (f *reminderFlow) send(t *testing.T) (*appinvoicing.SendReminderResult, error) {
	t.Helper()
	return f.service.SendReminder(context.Background(), f.tenantID, f.userID, f.invoice.ID, appinvoicing.SendReminderRequest{})
}

func TestReminderFlow_EscalatesWithCooldown(t *testing.T) {
	f := newReminderFlow(t)
	ctx := context.Background()

	eligibility, err := f.service.GetReminderEligibility(ctx, f.tenantID, f.invoice.ID)
	require.NoError(t, err)
	assert.True(t, eligibility.CanSendReminder)
	assert.Empty(t, eligibility.Reminders)
	assert.Equal(t, 9, eligibility.DaysOverdue)

	// First reminder seeds the default templates and advances the stage
	result, err := f.send(t)
	require.NoError(t, err)
	assert.Equal(t, appinvoicing.SendOutcomeSent, result.Outcome)
	require.NotNil(t, result.Reminder)
	assert.Equal(t, 1, result.Reminder.ReminderLevel)
	assert.Equal(t, "admin@acme.test", result.Reminder.RecipientEmail)
	assert.Equal(t, invoicing.InvoiceStatusOverdueReminder1, f.status(t))
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "sam@studio-north.test", f.mailer.sent[0].ReplyTo)
	assert.Contains(t, f.mailer.sent[0].Body, "F-2024-001")

	// Within the cooldown nothing goes out
	_, err = f.send(t)
	assert.ErrorIs(t, err, shared.NewDomainError(shared.CodeConflict, ""))
	assert.Len(t, f.mailer.sent, 1)

	f.now = f.now.AddDate(0, 0, 8)
	result, err = f.send(t)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Reminder.ReminderLevel)
	assert.Equal(t, invoicing.InvoiceStatusOverdueReminder2, f.status(t))

	eligibility, err = f.service.GetReminderEligibility(ctx, f.tenantID, f.invoice.ID)
	require.NoError(t, err)
	require.Len(t, eligibility.Reminders, 2)
	assert.Equal(t, 2, eligibility.Reminders[0].ReminderLevel, "newest first")
	assert.False(t, eligibility.CanSendReminder)
}

func TestReminderFlow_SweepRepairsLaggingStatus(t *testing.T) {
	f := newReminderFlow(t)
	ctx := context.Background()

	_, err := f.send(t)
	require.NoError(t, err)

	// The status write got lost: history says level 1, cache says overdue
	f.db.SetInvoiceStatus(f.invoice.ID, string(invoicing.InvoiceStatusOverdue))

	report, err := f.sweep.DryRun().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stale)
	assert.Zero(t, report.Repaired)
	assert.Equal(t, invoicing.InvoiceStatusOverdue, f.status(t))

	report, err = f.sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tenants)
	assert.Equal(t, 1, report.Repaired)
	assert.Zero(t, report.Failed)
	assert.Equal(t, invoicing.InvoiceStatusOverdueReminder1, f.status(t))

	// A second pass has nothing left to do
	report, err = f.sweep.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Stale)
}
