package totals

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Decimal places the document tables keep. Totals are computed from the values
// as given, so inputs finer than this would not reproduce from stored rows.
const (
	QuantityPlaces   int32 = 4
	RatePlaces       int32 = 4
	PercentagePlaces int32 = 3
)

// FitsScale reports whether d has at most places decimal places.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// CheckScale returns a validation error naming field when d has more than
// places decimal places.
func CheckScale(field string, d decimal.Decimal, places int32) error {
	if !FitsScale(d, places) {
		return shared.Validationf("%s must have at most %d decimal places", field, places)
	}
	return nil
}

// Validate rejects quantities and rates finer than the stored scale.
func (l LineItem) Validate() error {
	if err := CheckScale("quantity", l.Quantity, QuantityPlaces); err != nil {
		return err
	}
	return CheckScale("rate_per_unit", l.Rate, RatePlaces)
}

// Validate rejects percentages finer than the stored scale.
func (t TaxConfig) Validate() error {
	if err := CheckScale("levy_percentage", t.LevyPercentage, PercentagePlaces); err != nil {
		return err
	}
	return CheckScale("vat_percentage", t.VATPercentage, PercentagePlaces)
}

// ValidateItems checks every line and the tax configuration of a document.
func ValidateItems(items []LineItem, tax TaxConfig) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return tax.Validate()
}
