package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItemKind distinguishes time-based from flat-fee billables
type LineItemKind string

const (
	LineItemKindHourly LineItemKind = "HOURLY" // quantity hours at rate
	LineItemKindFixed  LineItemKind = "FIXED"  // flat fee
)

// IsValid checks if the kind is valid
func (k LineItemKind) IsValid() bool {
	return k == LineItemKindHourly || k == LineItemKindFixed
}

// LineItem is one billable entry on a project or invoice
type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Kind        LineItemKind    `json:"kind"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	FixedFee    decimal.Decimal `json:"fixed_fee"`
}

// NewHourlyItem creates a line item billed as hours × rate
func NewHourlyItem(description string, hours, rate decimal.Decimal) (LineItem, error) {
	item := LineItem{
		ID:          uuid.New(),
		Description: strings.TrimSpace(description),
		Kind:        LineItemKindHourly,
		Quantity:    hours,
		Rate:        rate,
	}
	if err := item.Validate(); err != nil {
		return LineItem{}, err
	}
	return item, nil
}

// NewFixedItem creates a line item billed as a flat fee
func NewFixedItem(description string, fee decimal.Decimal) (LineItem, error) {
	item := LineItem{
		ID:          uuid.New(),
		Description: strings.TrimSpace(description),
		Kind:        LineItemKindFixed,
		FixedFee:    fee,
	}
	if err := item.Validate(); err != nil {
		return LineItem{}, err
	}
	return item, nil
}

// Validate rejects empty descriptions, unknown kinds and negative figures
func (li LineItem) Validate() error {
	if li.Description == "" {
		return validationError("line item description is required")
	}
	switch li.Kind {
	case LineItemKindHourly:
		if li.Quantity.IsNegative() {
			return validationError("line item %q has negative quantity %s", li.Description, li.Quantity)
		}
		if li.Rate.IsNegative() {
			return validationError("line item %q has negative rate %s", li.Description, li.Rate)
		}
	case LineItemKindFixed:
		if li.FixedFee.IsNegative() {
			return validationError("line item %q has negative fee %s", li.Description, li.FixedFee)
		}
	default:
		return validationError("line item %q has unknown kind %q", li.Description, li.Kind)
	}
	return nil
}

// Amount returns quantity × rate for hourly items and the fee for fixed items
func (li LineItem) Amount() decimal.Decimal {
	if li.Kind == LineItemKindFixed {
		return li.FixedFee
	}
	return li.Quantity.Mul(li.Rate)
}

// LineItems is an ordered list of line items stored as a JSON column
type LineItems []LineItem

// Total validates every item and sums their amounts
func (items LineItems) Total() (decimal.Decimal, error) {
	total := decimal.Zero
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(item.Amount())
	}
	return total, nil
}

// Hours sums the quantity of hourly items
func (items LineItems) Hours() decimal.Decimal {
	hours := decimal.Zero
	for _, item := range items {
		if item.Kind == LineItemKindHourly {
			hours = hours.Add(item.Quantity)
		}
	}
	return hours
}

// Clone returns an independent copy
func (items LineItems) Clone() LineItems {
	if items == nil {
		return LineItems{}
	}
	out := make(LineItems, len(items))
	copy(out, items)
	return out
}

// Value implements driver.Valuer for JSON column storage
func (items LineItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSON column storage
func (items *LineItems) Scan(value any) error {
	if value == nil {
		*items = LineItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}

	if len(bytes) == 0 {
		*items = LineItems{}
		return nil
	}
	return json.Unmarshal(bytes, items)
}
