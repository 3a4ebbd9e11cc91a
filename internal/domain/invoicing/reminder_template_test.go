package invoicing

import (
	"strings"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReminderTemplate_Validation(t *testing.T) {
	tenantID := uuid.New()
	tests := []struct {
		name    string
		tplName string
		level   ReminderLevel
		subject string
		body    string
		message string
	}{
		{"missing name", " ", 1, "s", "b", "Name is required"},
		{"level too low", "n", 0, "s", "b", "Reminder level must be between 1 and 3"},
		{"level too high", "n", 4, "s", "b", "Reminder level must be between 1 and 3"},
		{"missing subject", "n", 1, "", "b", "Subject is required"},
		{"missing body", "n", 1, "s", "\n", "Body is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReminderTemplate(tenantID, tt.tplName, tt.level, tt.subject, tt.body, false)
			require.Error(t, err)
			assert.Equal(t, shared.CodeValidation, shared.ErrorCode(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestReminderTemplate_Render(t *testing.T) {
	tpl, err := NewReminderTemplate(uuid.New(), "Custom", ReminderLevelFollowUp,
		"Invoice {{invoice_number}} is {{ days_overdue }} days late",
		"Dear {{admin_name}},\n{{{total_amount}}} due {{due_date}}. {{unknown}}Thanks, {{business_name}}", false)
	require.NoError(t, err)

	vars := TemplateVariables{
		AdminName:     "Sanne",
		InvoiceNumber: "F-9",
		DueDate:       time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		DaysOverdue:   12,
		TotalAmount:   "€ 100,00",
		BusinessName:  "Acme",
	}

	subject, body := tpl.Render(vars, "")
	assert.Equal(t, "Invoice F-9 is 12 days late", subject)
	assert.Equal(t, "Dear Sanne,\n€ 100,00 due 05-03-2024. Thanks, Acme", body)

	_, body = tpl.Render(vars, "Call me {{admin_name}}")
	assert.True(t, strings.HasSuffix(body, "\n\n---\nPersonal Note:\nCall me {{admin_name}}"))
}

func TestDefaultReminderTemplates(t *testing.T) {
	tenantID := uuid.New()
	templates := DefaultReminderTemplates(tenantID)
	require.Len(t, templates, 3)

	for i, tpl := range templates {
		assert.Equal(t, ReminderLevel(i+1), tpl.Level)
		assert.True(t, tpl.IsDefault)
		assert.Equal(t, tenantID, tpl.TenantID)
		assert.Contains(t, tpl.Subject, "{{invoice_number}}")
	}
	assert.Equal(t, "Vriendelijke herinnering", templates[0].Name)
	assert.Equal(t, "Laatste aanmaning", templates[2].Name)
}

func TestFormatting(t *testing.T) {
	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "05-03-2024", FormatDate(date))
	assert.Equal(t, "5-3-2024", FormatShortDate(date))


	amounts := []struct {
		name   string
		amount decimal.Decimal
		code   string
		want   string
	}{
		{"grouping and decimal comma", decimal.RequireFromString("1234.56"), "EUR", "€ 1.234,56"},
		{"pads to two decimals", decimal.NewFromFloat(1234.5), "EUR", "€ 1.234,50"},
		{"millions", decimal.RequireFromString("1234567.8"), "EUR", "€ 1.234.567,80"},
		{"rounds half away from zero", decimal.RequireFromString("0.005"), "EUR", "€ 0,01"},
		{"negative", decimal.RequireFromString("-1234.56"), "EUR", "€ -1.234,56"},
		{"unknown code falls back to euro", decimal.NewFromInt(10), "nope", "€ 10,00"},
	}
	for _, tt := range amounts {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.amount, tt.code))
		})
	}
}

// ============================================
// Client Tests
// ============================================

func TestClient_ResolveRecipient(t *testing.T) {
	tests := []struct {
		name         string
		client       Client
		wantEmail    string
		wantGreeting string
	}{
		{
			name: "administration contact",
			client: Client{Email: "info@acme.nl", Contacts: []ClientContact{
				{FirstName: "Piet", Email: "piet@acme.nl"},
				{FirstName: "Sanne", Email: "boekhouding@acme.nl", IsAdministration: true},
			}},
			wantEmail:    "boekhouding@acme.nl",
			wantGreeting: "Sanne",
		},
		{
			name: "administration contact without valid email",
			client: Client{Email: "info@acme.nl", Contacts: []ClientContact{
				{FirstName: "Sanne", Email: "not-an-email", IsAdministration: true},
			}},
			wantEmail:    "info@acme.nl",
			wantGreeting: "Sanne",
		},
		{
			name:         "no administration contact",
			client:       Client{Email: "info@acme.nl"},
			wantEmail:    "info@acme.nl",
			wantGreeting: FallbackGreetingName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.client.ResolveRecipient()
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmail, r.Email)
			assert.Equal(t, tt.wantGreeting, r.GreetingName)
		})
	}
}

func TestClient_ResolveRecipient_NoValidAddress(t *testing.T) {
	c := Client{Email: "acme.nl", Contacts: []ClientContact{{Email: "", IsAdministration: true}}}
	_, err := c.ResolveRecipient()
	require.Error(t, err)
	assert.Equal(t, "Client does not have a valid email address", err.Error())
	assert.Equal(t, shared.CodeValidation, shared.ErrorCode(err))
}

func TestSenderProfile_DisplayName(t *testing.T) {
	assert.Equal(t, "Jan de Vries from Acme", (&SenderProfile{FirstName: "Jan", LastName: "de Vries", BusinessName: "Acme"}).DisplayName())
	assert.Equal(t, "Jan", (&SenderProfile{FirstName: "Jan"}).DisplayName())
	assert.Equal(t, "jan@acme.nl", (&SenderProfile{BusinessName: "Acme", Email: "jan@acme.nl"}).DisplayName())
}
