package invoicing

import (
	"context"
	"math"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// minRemindersForEffectiveness is the sample size below which a level is not
// considered for the most effective level
const minRemindersForEffectiveness = 3

// ReminderStatsService reports how well reminders convert into payments
type ReminderStatsService struct {
	invoiceRepo  invoicing.InvoiceRepository
	reminderRepo invoicing.ReminderRecordRepository
	policy       invoicing.EscalationPolicy
	serviceOptions
}

// NewReminderStatsService creates a new ReminderStatsService
func NewReminderStatsService(
	invoiceRepo invoicing.InvoiceRepository,
	reminderRepo invoicing.ReminderRecordRepository,
	policy invoicing.EscalationPolicy,
	opts ...Option,
) *ReminderStatsService {
	return &ReminderStatsService{
		invoiceRepo:    invoiceRepo,
		reminderRepo:   reminderRepo,
		policy:         policy,
		serviceOptions: newServiceOptions(opts),
	}
}

// GetStats computes per-level response rates, the average days from reminder to
// payment and the backlog of overdue invoices by suggested level
func (s *ReminderStatsService) GetStats(ctx context.Context, tenantID uuid.UUID) (*ReminderStatsResponse, error) {
	reminders, err := s.reminderRepo.ListForTenant(ctx, tenantID)
	if err != nil {
		return nil, shared.NewInternalError("Failed to fetch reminders", err)
	}
	invoicesByID, err := s.invoicesOf(ctx, tenantID, reminders)
	if err != nil {
		return nil, err
	}

	var counts, paid [invoicing.MaxReminderLevel]int
	var daysToPay []int
	for _, r := range reminders {
		if !r.Level.IsValid() {
			continue
		}
		counts[r.Level-1]++
		inv, ok := invoicesByID[r.InvoiceID]
		if !ok || inv.Status != invoicing.InvoiceStatusPaid || inv.PaidAt == nil || !inv.PaidAt.After(r.SentAt) {
			continue
		}
		paid[r.Level-1]++
		daysToPay = append(daysToPay, int(math.Ceil(inv.PaidAt.Sub(r.SentAt).Hours()/24)))
	}

	byLevel := make([]LevelStats, invoicing.MaxReminderLevel)
	for i := range byLevel {
		byLevel[i] = LevelStats{Level: i + 1, Count: counts[i]}
		if counts[i] > 0 {
			byLevel[i].ResponseRate = float64(paid[i]) / float64(counts[i]) * 100
		}
	}

	backlog, err := s.invoicesNeedingReminders(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &ReminderStatsResponse{
		TotalRemindersSent:       len(reminders),
		RemindersByLevel:         byLevel,
		AverageDaysToPayment:     averageRounded(daysToPay),
		MostEffectiveLevel:       mostEffectiveLevel(byLevel),
		InvoicesNeedingReminders: backlog,
	}, nil
}

func (s *ReminderStatsService) invoicesOf(ctx context.Context, tenantID uuid.UUID, reminders []invoicing.ReminderRecord) (map[uuid.UUID]*invoicing.Invoice, error) {
	seen := make(map[uuid.UUID]struct{}, len(reminders))
	ids := make([]uuid.UUID, 0, len(reminders))
	for _, r := range reminders {
		if _, ok := seen[r.InvoiceID]; !ok {
			seen[r.InvoiceID] = struct{}{}
			ids = append(ids, r.InvoiceID)
		}
	}
	invoices, err := s.invoiceRepo.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, shared.NewInternalError("Failed to fetch invoices", err)
	}
	byID := make(map[uuid.UUID]*invoicing.Invoice, len(invoices))
	for i := range invoices {
		byID[invoices[i].ID] = &invoices[i]
	}
	return byID, nil
}

func (s *ReminderStatsService) invoicesNeedingReminders(ctx context.Context, tenantID uuid.UUID) (InvoicesNeedingReminders, error) {
	now := s.now()
	candidates, err := s.invoiceRepo.FindOverdueCandidates(ctx, tenantID, now)
	if err != nil {
		return InvoicesNeedingReminders{}, shared.NewInternalError("Failed to fetch overdue invoices", err)
	}
	ids := make([]uuid.UUID, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
	}
	histories, err := s.reminderRepo.ListByInvoices(ctx, tenantID, ids)
	if err != nil {
		return InvoicesNeedingReminders{}, shared.NewInternalError("Failed to fetch reminder history", err)
	}

	result := InvoicesNeedingReminders{ByLevel: make([]LevelBacklog, invoicing.MaxReminderLevel)}
	for i := range result.ByLevel {
		result.ByLevel[i] = LevelBacklog{Level: i + 1, TotalAmount: decimal.Zero}
	}
	for i := range candidates {
		inv := &candidates[i]
		daysOverdue := invoicing.DaysOverdue(inv.DueDate, now)
		if daysOverdue <= 0 {
			continue
		}
		level := s.policy.SuggestedLevel(daysOverdue, histories[inv.ID])
		entry := &result.ByLevel[level-1]
		entry.Count++
		entry.TotalAmount = entry.TotalAmount.Add(inv.TotalAmount)
		result.Total++
	}
	return result, nil
}

// mostEffectiveLevel starts from level 1 and prefers a level with a strictly
// higher response rate among those with enough reminders
func mostEffectiveLevel(levels []LevelStats) int {
	if len(levels) == 0 {
		return int(invoicing.ReminderLevelGentle)
	}
	best := levels[0]
	for _, l := range levels {
		if l.Count >= minRemindersForEffectiveness && l.ResponseRate > best.ResponseRate {
			best = l
		}
	}
	return best.Level
}

// averageRounded returns the mean rounded to one decimal, zero for no values
func averageRounded(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return math.Round(float64(sum)/float64(len(values))*10) / 10
}
