package invoicing

import (
	"context"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockInvoiceRepo is a mock implementation of invoicing.InvoiceRepository
type mockInvoiceRepo struct {
	mock.Mock
}

func (m *mockInvoiceRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *mockInvoiceRepo) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *mockInvoiceRepo) FindForReconciliation(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) FindOverdueCandidates(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

// mockReminderRepo is a mock implementation of invoicing.ReminderRecordRepository
type mockReminderRepo struct {
	mock.Mock
}

func (m *mockReminderRepo) ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (invoicing.ReminderHistory, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(invoicing.ReminderHistory), args.Error(1)
}

func (m *mockReminderRepo) ListByInvoices(ctx context.Context, tenantID uuid.UUID, invoiceIDs []uuid.UUID) (map[uuid.UUID]invoicing.ReminderHistory, error) {
	args := m.Called(ctx, tenantID, invoiceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]invoicing.ReminderHistory), args.Error(1)
}

func (m *mockReminderRepo) FindLatestByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*invoicing.ReminderRecord, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.ReminderRecord), args.Error(1)
}

func (m *mockReminderRepo) MaxLevelByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (invoicing.ReminderLevel, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	return args.Get(0).(invoicing.ReminderLevel), args.Error(1)
}

func (m *mockReminderRepo) ExistsAtLevel(ctx context.Context, tenantID, invoiceID uuid.UUID, level invoicing.ReminderLevel) (bool, error) {
	args := m.Called(ctx, tenantID, invoiceID, level)
	return args.Bool(0), args.Error(1)
}

func (m *mockReminderRepo) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]invoicing.ReminderRecord, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.ReminderRecord), args.Error(1)
}

func (m *mockReminderRepo) Create(ctx context.Context, record *invoicing.ReminderRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// mockTemplateRepo is a mock implementation of invoicing.ReminderTemplateRepository
type mockTemplateRepo struct {
	mock.Mock
}

func (m *mockTemplateRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.ReminderTemplate, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.ReminderTemplate), args.Error(1)
}

func (m *mockTemplateRepo) FindDefaultForLevel(ctx context.Context, tenantID uuid.UUID, level invoicing.ReminderLevel) (*invoicing.ReminderTemplate, error) {
	args := m.Called(ctx, tenantID, level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.ReminderTemplate), args.Error(1)
}

func (m *mockTemplateRepo) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]invoicing.ReminderTemplate, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.ReminderTemplate), args.Error(1)
}

func (m *mockTemplateRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTemplateRepo) Create(ctx context.Context, template *invoicing.ReminderTemplate) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *mockTemplateRepo) SeedDefaults(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *mockTemplateRepo) ClearDefaultForLevel(ctx context.Context, tenantID uuid.UUID, level invoicing.ReminderLevel) error {
	args := m.Called(ctx, tenantID, level)
	return args.Error(0)
}

// mockClientRepo is a mock implementation of invoicing.ClientRepository
type mockClientRepo struct {
	mock.Mock
}

func (m *mockClientRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Client, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Client), args.Error(1)
}

func (m *mockClientRepo) FindSenderProfile(ctx context.Context, tenantID, userID uuid.UUID) (*invoicing.SenderProfile, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.SenderProfile), args.Error(1)
}

// mockAuditRepo is a mock implementation of invoicing.AuditLogRepository
type mockAuditRepo struct {
	mock.Mock
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *invoicing.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// mockTenantProvider is a mock implementation of invoicing.TenantProvider
type mockTenantProvider struct {
	mock.Mock
}

func (m *mockTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// mockMailer is a mock implementation of MailSender
type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg MailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// mockLocker is a mock implementation of InvoiceLocker
type mockLocker struct {
	mock.Mock
	released int
}

func (m *mockLocker) Acquire(ctx context.Context, tenantID, invoiceID uuid.UUID) (func(), error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func() { m.released++ }, nil
}

// mockPublisher is a mock implementation of shared.EventPublisher
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// publishedTypes returns the event types of every Publish call, in order
func (m *mockPublisher) publishedTypes() []string {
	var types []string
	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}
		for _, e := range call.Arguments.Get(1).([]shared.DomainEvent) {
			types = append(types, e.EventType())
		}
	}
	return types
}
