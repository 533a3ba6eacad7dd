// Package export renders billing data for people and spreadsheets: money
// and dates formatted for a locale, and CSV files of reports, invoices and
// clients.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/freelance/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DisplayDateLayout is the long date form used on documents, e.g. "March 01, 2026"
const DisplayDateLayout = "January 02, 2006"

// MoneyFormatter formats amounts in one currency for one locale. Printers
// and casers are not shareable, so each call builds its own.
type MoneyFormatter struct {
	code   valueobject.Currency
	unit   currency.Unit
	tag    language.Tag
	scale  int
	symbol string
}

// NewMoneyFormatter creates a formatter for an ISO 4217 code and a BCP 47
// locale such as "en-IN". An empty locale means "en".
func NewMoneyFormatter(currencyCode, locale string) (*MoneyFormatter, error) {
	code, err := valueobject.ParseCurrency(currencyCode)
	if err != nil {
		return nil, err
	}
	unit, err := currency.ParseISO(string(code))
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", currencyCode, err)
	}
	if strings.TrimSpace(locale) == "" {
		locale = "en"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}

	scale, _ := currency.Standard.Rounding(unit)
	return &MoneyFormatter{
		code:   code,
		unit:   unit,
		tag:    tag,
		scale:  scale,
		symbol: message.NewPrinter(tag).Sprint(currency.Symbol(unit)),
	}, nil
}

// Currency returns the ISO code, e.g. "INR"
func (f *MoneyFormatter) Currency() string {
	return f.unit.String()
}

// Symbol returns the locale's symbol for the currency, e.g. "₹"
func (f *MoneyFormatter) Symbol() string {
	return f.symbol
}

// Scale is the number of minor digits the currency uses
func (f *MoneyFormatter) Scale() int {
	return f.scale
}

// Money tags amount with the formatter's currency
func (f *MoneyFormatter) Money(amount decimal.Decimal) valueobject.Money {
	m, _ := valueobject.NewMoney(amount, f.code)
	return m
}

// Format renders amount with symbol, grouping and the currency's minor
// digits. Negative amounts get a leading minus before the symbol.
func (f *MoneyFormatter) Format(amount decimal.Decimal) string {
	return f.render(f.Money(amount))
}

// FormatMoney is Format for an amount that carries its own currency
func (f *MoneyFormatter) FormatMoney(m valueobject.Money) (string, error) {
	if m.Currency() != f.code {
		return "", fmt.Errorf("%w: cannot format %s as %s", valueobject.ErrCurrencyMismatch, m.Currency(), f.code)
	}
	return f.render(m), nil
}

func (f *MoneyFormatter) render(m valueobject.Money) string {
	rounded := m.Round(int32(f.scale))
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	digits := message.NewPrinter(f.tag).Sprint(number.Decimal(rounded.Abs().Amount().InexactFloat64(), number.Scale(f.scale)))
	return sign + f.symbol + digits
}

// FormatPlain renders amount rounded to the currency's minor digits with no
// symbol or grouping, for machine-readable output
func (f *MoneyFormatter) FormatPlain(amount decimal.Decimal) string {
	return amount.StringFixed(int32(f.scale))
}

// FormatPercent renders a percentage value such as 62.5 as "62.50%"
func (f *MoneyFormatter) FormatPercent(pct decimal.Decimal) string {
	return pct.StringFixed(2) + "%"
}

// FormatDate renders t with DisplayDateLayout
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DisplayDateLayout)
}

// FormatStatus turns an enum value like "PARTIALLY_PAID" into "Partially Paid"
func (f *MoneyFormatter) FormatStatus(status string) string {
	return cases.Title(f.tag).String(strings.ToLower(strings.ReplaceAll(status, "_", " ")))
}
