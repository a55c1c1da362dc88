// Package totals computes document totals: gross, PPDA levy, VAT and net.
//
// Every intermediate amount is rounded half-up to two decimal places before
// it feeds the next step, so the stored figures always add up exactly.
package totals

import "github.com/shopspring/decimal"

// Places is the number of decimal places money amounts are rounded to.
const Places int32 = 2

var hundred = decimal.NewFromInt(100)

// LineItem is a single priced line of a quotation or invoice.
type LineItem struct {
	Quantity decimal.Decimal `json:"quantity"`
	Rate     decimal.Decimal `json:"rate_per_unit"`
}

// TaxConfig holds the levy and VAT settings stored on a document.
type TaxConfig struct {
	ApplyLevy      bool            `json:"apply_levy"`
	LevyPercentage decimal.Decimal `json:"levy_percentage"`
	VATPercentage  decimal.Decimal `json:"vat_percentage"`
}

// Result is the full breakdown for a document.
type Result struct {
	GrossTotal      decimal.Decimal `json:"gross_total"`
	LevyAmount      decimal.Decimal `json:"levy_amount"`
	AmountBeforeVAT decimal.Decimal `json:"amount_before_vat"`
	VATAmount       decimal.Decimal `json:"vat_amount"`
	NetTotal        decimal.Decimal `json:"net_total"`
}

// Round rounds d half-up to two places. Inputs are non-negative, where
// half-away-from-zero and half-up agree.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// LineTotal returns round(quantity * rate, 2) after sanitising the line.
func LineTotal(item LineItem) decimal.Decimal {
	item = item.Sanitize()
	return Round(item.Quantity.Mul(item.Rate))
}

// Sanitize clamps negative values to zero.
func (l LineItem) Sanitize() LineItem {
	return LineItem{Quantity: nonNegative(l.Quantity), Rate: nonNegative(l.Rate)}
}

// Sanitize clamps negative percentages to zero.
func (t TaxConfig) Sanitize() TaxConfig {
	return TaxConfig{
		ApplyLevy:      t.ApplyLevy,
		LevyPercentage: nonNegative(t.LevyPercentage),
		VATPercentage:  nonNegative(t.VATPercentage),
	}
}

// Compute derives the totals for items under tax. It never fails: malformed
// (negative) values are treated as zero.
func Compute(items []LineItem, tax TaxConfig) Result {
	tax = tax.Sanitize()

	sum := decimal.Zero
	for _, item := range items {
		item = item.Sanitize()
		sum = sum.Add(item.Quantity.Mul(item.Rate))
	}
	gross := Round(sum)

	levy := decimal.Zero
	if tax.ApplyLevy {
		levy = Round(gross.Mul(tax.LevyPercentage).Div(hundred))
	}
	beforeVAT := Round(gross.Add(levy))
	vat := Round(beforeVAT.Mul(tax.VATPercentage).Div(hundred))
	net := Round(beforeVAT.Add(vat))

	return Result{
		GrossTotal:      gross,
		LevyAmount:      levy,
		AmountBeforeVAT: beforeVAT,
		VATAmount:       vat,
		NetTotal:        net,
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
