package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Reminder emails and messages are written for Dutch recipients.
var (
	displayLanguage = language.Dutch
	displayPrinter  = message.NewPrinter(displayLanguage)
)

// FormatDate formats a date as DD-MM-YYYY
func FormatDate(t time.Time) string {
	return t.Format("02-01-2006")
}

// FormatShortDate formats a date as D-M-YYYY without zero padding
func FormatShortDate(t time.Time) string {
	return t.Format("2-1-2006")
}

// FormatAmount formats an amount in the given ISO currency, e.g. "€ 1.234,56".
// Unknown currency codes fall back to euro.
func FormatAmount(amount decimal.Decimal, currencyCode string) string {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		unit = currency.EUR
	}
	return displayPrinter.Sprint(currency.Symbol(unit.Amount(amount.Round(2).InexactFloat64())))
}
