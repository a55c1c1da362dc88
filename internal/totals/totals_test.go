package totals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "%s: want %s, got %s", msg, want, got.String())
}

func TestComputeLevyAndVATScenario(t *testing.T) {
	items := []LineItem{
		{Quantity: d("2"), Rate: d("50.25")},
		{Quantity: d("1"), Rate: d("25.00")},
	}
	tax := TaxConfig{ApplyLevy: true, LevyPercentage: d("1"), VATPercentage: d("16.5")}

	res := Compute(items, tax)

	assertDecimal(t, "125.50", res.GrossTotal, "gross")
	assertDecimal(t, "1.26", res.LevyAmount, "levy")
	assertDecimal(t, "126.76", res.AmountBeforeVAT, "before vat")
	assertDecimal(t, "20.92", res.VATAmount, "vat")
	assertDecimal(t, "147.68", res.NetTotal, "net")
}

func TestComputeWithoutLevy(t *testing.T) {
	items := []LineItem{{Quantity: d("3"), Rate: d("10")}}
	tax := TaxConfig{ApplyLevy: false, LevyPercentage: d("1"), VATPercentage: d("16.5")}

	res := Compute(items, tax)

	assertDecimal(t, "30", res.GrossTotal, "gross")
	assertDecimal(t, "0", res.LevyAmount, "levy")
	assert.True(t, res.AmountBeforeVAT.Equal(res.GrossTotal))
	assertDecimal(t, "4.95", res.VATAmount, "vat")
	assertDecimal(t, "34.95", res.NetTotal, "net")
}

func TestComputeEmptyItemsIsZero(t *testing.T) {
	res := Compute(nil, TaxConfig{ApplyLevy: true, LevyPercentage: d("1"), VATPercentage: d("16.5")})

	for name, v := range map[string]decimal.Decimal{
		"gross": res.GrossTotal, "levy": res.LevyAmount, "before": res.AmountBeforeVAT,
		"vat": res.VATAmount, "net": res.NetTotal,
	} {
		assert.Truef(t, v.IsZero(), "%s should be zero, got %s", name, v)
	}
}

func TestComputeRoundsGrossBeforeLevy(t *testing.T) {
	// 3 x 0.335 = 1.005 rounds to 1.01 before any percentage is applied.
	items := []LineItem{{Quantity: d("3"), Rate: d("0.335")}}
	res := Compute(items, TaxConfig{ApplyLevy: true, LevyPercentage: d("50"), VATPercentage: d("0")})

	assertDecimal(t, "1.01", res.GrossTotal, "gross")
	assertDecimal(t, "0.51", res.LevyAmount, "levy") // 0.505 rounds up
	assertDecimal(t, "1.52", res.AmountBeforeVAT, "before vat")
	assertDecimal(t, "1.52", res.NetTotal, "net")
}

func TestComputeHalfUpRounding(t *testing.T) {
	cases := []struct {
		name  string
		rate  string
		vat   string
		gross string
		vatAm string
	}{
		{name: "exact half rounds up", rate: "0.125", vat: "0", gross: "0.13", vatAm: "0"},
		{name: "below half rounds down", rate: "0.124", vat: "0", gross: "0.12", vatAm: "0"},
		{name: "vat half rounds up", rate: "10.10", vat: "5", gross: "10.10", vatAm: "0.51"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Compute([]LineItem{{Quantity: d("1"), Rate: d(tc.rate)}}, TaxConfig{VATPercentage: d(tc.vat)})
			assertDecimal(t, tc.gross, res.GrossTotal, "gross")
			assertDecimal(t, tc.vatAm, res.VATAmount, "vat")
		})
	}
}

func TestComputeClampsNegativeInputs(t *testing.T) {
	items := []LineItem{
		{Quantity: d("-2"), Rate: d("10")},
		{Quantity: d("1"), Rate: d("-5")},
		{Quantity: d("1"), Rate: d("4")},
	}
	res := Compute(items, TaxConfig{ApplyLevy: true, LevyPercentage: d("-1"), VATPercentage: d("-16.5")})

	assertDecimal(t, "4", res.GrossTotal, "gross")
	assertDecimal(t, "0", res.LevyAmount, "levy")
	assertDecimal(t, "0", res.VATAmount, "vat")
	assertDecimal(t, "4", res.NetTotal, "net")
}

func TestComputeInvariants(t *testing.T) {
	rates := []string{"0.01", "0.333", "1.995", "12.5", "99.999", "1234.567"}
	quantities := []string{"0", "1", "1.5", "3", "7.25"}
	levies := []string{"0", "1", "2.5"}
	vats := []string{"0", "16", "16.5"}

	for _, r := range rates {
		for _, q := range quantities {
			for _, lp := range levies {
				for _, vp := range vats {
					items := []LineItem{{Quantity: d(q), Rate: d(r)}, {Quantity: d("2"), Rate: d(r)}}
					tax := TaxConfig{ApplyLevy: lp != "0", LevyPercentage: d(lp), VATPercentage: d(vp)}
					res := Compute(items, tax)

					require.True(t, res.AmountBeforeVAT.Equal(Round(res.GrossTotal.Add(res.LevyAmount))))
					require.True(t, res.NetTotal.Equal(Round(res.AmountBeforeVAT.Add(res.VATAmount))))
					for _, v := range []decimal.Decimal{res.GrossTotal, res.LevyAmount, res.AmountBeforeVAT, res.VATAmount, res.NetTotal} {
						require.False(t, v.IsNegative())
						require.LessOrEqual(t, -v.Exponent(), int32(2), "amount %s has more than two places", v)
					}
					require.True(t, res.NetTotal.GreaterThanOrEqual(res.GrossTotal))

					again := Compute(items, tax)
					require.True(t, again.NetTotal.Equal(res.NetTotal) && again.VATAmount.Equal(res.VATAmount) && again.LevyAmount.Equal(res.LevyAmount))
				}
			}
		}
	}
}

func TestLineTotal(t *testing.T) {
	assertDecimal(t, "100.50", LineTotal(LineItem{Quantity: d("2"), Rate: d("50.25")}), "line")
	assertDecimal(t, "0.67", LineTotal(LineItem{Quantity: d("2"), Rate: d("0.3333")}), "line")
	assertDecimal(t, "0", LineTotal(LineItem{Quantity: d("-1"), Rate: d("5")}), "line")
}

func TestComputeDocumentedScenario(t *testing.T) {
	items := []LineItem{
		{Quantity: d("2"), Rate: d("50.00")},
		{Quantity: d("1"), Rate: d("25.50")},
	}
	res := Compute(items, TaxConfig{ApplyLevy: true, LevyPercentage: d("1"), VATPercentage: d("16.5")})

	assertDecimal(t, "125.50", res.GrossTotal, "gross")
	assertDecimal(t, "1.26", res.LevyAmount, "levy")
	assertDecimal(t, "126.76", res.AmountBeforeVAT, "before vat")
	assertDecimal(t, "20.92", res.VATAmount, "vat")
	assertDecimal(t, "147.68", res.NetTotal, "net")
}

func TestComputeIgnoresItemOrder(t *testing.T) {
	items := []LineItem{
		{Quantity: d("1.5"), Rate: d("0.333")},
		{Quantity: d("3"), Rate: d("19.99")},
		{Quantity: d("7"), Rate: d("0.005")},
	}
	reversed := []LineItem{items[2], items[1], items[0]}
	tax := TaxConfig{ApplyLevy: true, LevyPercentage: d("1"), VATPercentage: d("16.5")}

	a, b := Compute(items, tax), Compute(reversed, tax)
	assert.True(t, a.NetTotal.Equal(b.NetTotal))
	assert.True(t, a.GrossTotal.Equal(b.GrossTotal))
}

func TestComputeWithoutTaxKeepsGross(t *testing.T) {
	res := Compute([]LineItem{{Quantity: d("4"), Rate: d("12.345")}}, TaxConfig{})
	assert.True(t, res.NetTotal.Equal(res.GrossTotal))
	assertDecimal(t, "49.38", res.NetTotal, "net")
}

func TestValidateItemsRejectsValuesFinerThanStored(t *testing.T) {
	tax := TaxConfig{ApplyLevy: true, LevyPercentage: d("1.125"), VATPercentage: d("16.5")}
	assert.NoError(t, ValidateItems([]LineItem{{Quantity: d("0.0004"), Rate: d("125.1234")}}, tax))

	err := ValidateItems([]LineItem{{Quantity: d("0.00004"), Rate: d("125")}}, tax)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, shared.UserSafeMessage(err), "quantity")

	err = ValidateItems([]LineItem{{Quantity: d("1"), Rate: d("9.99999")}}, tax)
	assert.Contains(t, shared.UserSafeMessage(err), "rate_per_unit")

	tax.VATPercentage = d("16.5005")
	err = ValidateItems(nil, tax)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, shared.UserSafeMessage(err), "vat_percentage")

	assert.True(t, FitsScale(d("12.3400000"), 2))
	assert.False(t, FitsScale(d("12.345"), 2))
}
