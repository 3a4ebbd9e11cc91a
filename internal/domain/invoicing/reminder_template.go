package invoicing

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// personalNoteSeparator precedes a sender's personal note in the body
const personalNoteSeparator = "\n\n---\nPersonal Note:\n"

// ReminderTemplate is a tenant's subject/body pattern for one reminder level.
// Patterns use {{variable}} placeholders.
type ReminderTemplate struct {
	shared.BaseEntity
	TenantID  uuid.UUID
	Name      string
	Level     ReminderLevel
	Subject   string
	Body      string
	IsDefault bool
}

// NewReminderTemplate creates a validated template
func NewReminderTemplate(tenantID uuid.UUID, name string, level ReminderLevel, subject, body string, isDefault bool) (*ReminderTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("Name is required")
	}
	if len(name) > 100 {
		return nil, shared.NewValidationError("Name cannot exceed 100 characters")
	}
	if !level.IsValid() {
		return nil, shared.NewValidationError("Reminder level must be between 1 and 3")
	}
	if strings.TrimSpace(subject) == "" {
		return nil, shared.NewValidationError("Subject is required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, shared.NewValidationError("Body is required")
	}

	return &ReminderTemplate{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Name:       name,
		Level:      level,
		Subject:    subject,
		Body:       body,
		IsDefault:  isDefault,
	}, nil
}

// Render substitutes vars into the subject and body. A personal note is appended
// to the body after a separator and is never itself substituted.
func (t *ReminderTemplate) Render(vars TemplateVariables, personalNote string) (subject, body string) {
	values := vars.Values()
	subject = RenderPattern(t.Subject, values)
	body = RenderPattern(t.Body, values)
	if note := strings.TrimSpace(personalNote); note != "" {
		body += personalNoteSeparator + personalNote
	}
	return subject, body
}

// TemplateVariables are the values available to reminder templates
type TemplateVariables struct {
	ClientName    string
	AdminName     string
	InvoiceNumber string
	InvoiceDate   time.Time
	DueDate       time.Time
	DaysOverdue   int
	TotalAmount   string
	BusinessName  string
	PaymentLink   string
}

// Values returns the placeholder map
func (v TemplateVariables) Values() map[string]string {
	return map[string]string{
		"client_name":    v.ClientName,
		"admin_name":     v.AdminName,
		"invoice_number": v.InvoiceNumber,
		"invoice_date":   FormatDate(v.InvoiceDate),
		"due_date":       FormatDate(v.DueDate),
		"days_overdue":   strconv.Itoa(v.DaysOverdue),
		"total_amount":   v.TotalAmount,
		"business_name":  v.BusinessName,
		"payment_link":   v.PaymentLink,
	}
}

var placeholderPattern = regexp.MustCompile(`\{\{\{?\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}?\}\}`)

// RenderPattern replaces {{name}} and {{{name}}} placeholders. Unknown names render empty.
func RenderPattern(pattern string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(pattern, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		return values[name]
	})
}

// DefaultReminderTemplates returns the templates seeded for a tenant that has none
func DefaultReminderTemplates(tenantID uuid.UUID) []*ReminderTemplate {
	defaults := []struct {
		name    string
		level   ReminderLevel
		subject string
		body    string
	}{
		{
			name:    "Vriendelijke herinnering",
			level:   ReminderLevelGentle,
			subject: "Herinnering: factuur {{invoice_number}}",
			body: "Beste {{admin_name}},\n\n" +
				"Volgens onze administratie staat factuur {{invoice_number}} van {{invoice_date}} ter waarde van {{total_amount}} nog open. " +
				"De vervaldatum was {{due_date}}.\n\n" +
				"Wellicht is de betaling aan uw aandacht ontsnapt. Wilt u het bedrag zo spoedig mogelijk overmaken?\n\n" +
				"Met vriendelijke groet,\n{{business_name}}",
		},
		{
			name:    "Tweede herinnering",
			level:   ReminderLevelFollowUp,
			subject: "Tweede herinnering: factuur {{invoice_number}}",
			body: "Beste {{admin_name}},\n\n" +
				"Ondanks onze eerdere herinnering hebben wij de betaling van factuur {{invoice_number}} ({{total_amount}}) nog niet ontvangen. " +
				"De factuur is inmiddels {{days_overdue}} dagen verlopen.\n\n" +
				"Wij verzoeken u het openstaande bedrag binnen 7 dagen te voldoen.\n\n" +
				"Met vriendelijke groet,\n{{business_name}}",
		},
		{
			name:    "Laatste aanmaning",
			level:   ReminderLevelFinal,
			subject: "Laatste aanmaning: factuur {{invoice_number}}",
			body: "Beste {{admin_name}},\n\n" +
				"Factuur {{invoice_number}} van {{invoice_date}} ter waarde van {{total_amount}} is {{days_overdue}} dagen na de vervaldatum nog steeds niet betaald.\n\n" +
				"Dit is onze laatste aanmaning. Indien wij de betaling niet binnen 7 dagen ontvangen, zijn wij genoodzaakt verdere stappen te ondernemen.\n\n" +
				"Met vriendelijke groet,\n{{business_name}}",
		},
	}

	templates := make([]*ReminderTemplate, 0, len(defaults))
	for _, d := range defaults {
		templates = append(templates, &ReminderTemplate{
			BaseEntity: shared.NewBaseEntity(),
			TenantID:   tenantID,
			Name:       d.name,
			Level:      d.level,
			Subject:    d.subject,
			Body:       d.body,
			IsDefault:  true,
		})
	}
	return templates
}
