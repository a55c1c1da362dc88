package numbering

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

func TestRenderLayouts(t *testing.T) {
	cases := []struct {
		name  string
		parts Parts
		want  string
	}{
		{"quotation", Parts{DocType: Quotation, Prefix: "QT", ShopCode: "HQ", Sequence: 7}, "QT/HQ-007"},
		{"quotation wide sequence", Parts{DocType: Quotation, Prefix: "QT", ShopCode: "HQ", Sequence: 1234}, "QT/HQ-1234"},
		{"invoice", Parts{DocType: Invoice, Prefix: "INV", ShopCode: "HQ", CustomerCode: "C0012", Sequence: 42}, "INV/C0012-HQ0042"},
		{"receipt", Parts{DocType: Receipt, Prefix: "RCT", ShopCode: "LL", Sequence: 3}, "RCT/LL-00003"},
		{"customer", Parts{DocType: Customer, Prefix: "C", Sequence: 12}, "C0012"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Render(tc.parts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	_, err := Render(Parts{DocType: "memo", Prefix: "M", Sequence: 1})
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = Render(Parts{DocType: Quotation, Prefix: "QT", ShopCode: "HQ", Sequence: 0})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestParseRoundTrip(t *testing.T) {
	inputs := []Parts{
		{DocType: Quotation, Prefix: "QT", ShopCode: "HQ", Sequence: 1},
		{DocType: Quotation, Prefix: "Q2T", ShopCode: "BLANTYRE", Sequence: 98765},
		{DocType: Invoice, Prefix: "INV", ShopCode: "HQ", CustomerCode: "C0001", Sequence: 1},
		{DocType: Invoice, Prefix: "INV", ShopCode: "LL", CustomerCode: "ACME-01", Sequence: 10001},
		{DocType: Invoice, Prefix: "INV", ShopCode: "HQ", CustomerCode: FallbackNoCustomer, Sequence: 5},
		{DocType: Receipt, Prefix: "RCT", ShopCode: "ZA", Sequence: 123456},
		{DocType: Customer, Prefix: "C", Sequence: 9},
		{DocType: Customer, Prefix: "CUS1X", Sequence: 10000},
	}
	for _, in := range inputs {
		number, err := Render(in)
		require.NoError(t, err)

		out, err := Parse(in.DocType, number)
		require.NoError(t, err, number)
		assert.Equal(t, in, out, number)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []struct {
		docType DocumentType
		number  string
	}{
		{Quotation, "QTHQ-001"},
		{Quotation, "QT/HQ-"},
		{Quotation, "QT/HQ-00A"},
		{Quotation, "QT/HQ-000"},
		{Invoice, "INV/C0001-0001"},
		{Invoice, "INV/C0001-HQ"},
		{Customer, "0001"},
		{Customer, "C"},
	}
	for _, tc := range cases {
		_, err := Parse(tc.docType, tc.number)
		assert.Truef(t, errors.Is(err, shared.ErrValidation), "%s %q should fail", tc.docType, tc.number)
	}
}

func TestCodeValidation(t *testing.T) {
	assert.NoError(t, ValidatePrefix("QT"))
	assert.NoError(t, ValidatePrefix("Q2T"))
	assert.Error(t, ValidatePrefix("QT1"))
	assert.Error(t, ValidatePrefix("qt"))
	assert.Error(t, ValidatePrefix(""))

	assert.NoError(t, ValidateShopCode("HQ"))
	assert.Error(t, ValidateShopCode("HQ1"))

	assert.NoError(t, ValidateCustomerCode("ACME-01"))
	assert.Error(t, ValidateCustomerCode("-ACME"))
	assert.Error(t, ValidateCustomerCode("AC/ME"))
	assert.ErrorIs(t, ValidateCustomerCode(FallbackNoCustomer), shared.ErrValidation)
	assert.ErrorIs(t, ValidateCustomerCode(FallbackNewCustomer), shared.ErrValidation)
	assert.NoError(t, ValidateCustomerCode("NOCUST1"))

	assert.Equal(t, "ACME", NormalizeCode("  acme "))
}

func TestKeyForScopesByRenderedCodes(t *testing.T) {
	assert.Equal(t, SequenceKey{DocType: Quotation, Scope: "HQ"}, KeyFor(Quotation, "HQ", "C0009"))
	assert.Equal(t, SequenceKey{DocType: Invoice, Scope: "C0009-HQ"}, KeyFor(Invoice, "HQ", "C0009"))
	assert.Equal(t, SequenceKey{DocType: Invoice, Scope: "NOCUST-HQ"}, KeyFor(Invoice, "HQ", FallbackNoCustomer))
	assert.Equal(t, SequenceKey{DocType: Receipt, Scope: "LL"}, KeyFor(Receipt, "LL", "C0009"))
	assert.Equal(t, SequenceKey{DocType: Customer}, KeyFor(Customer, "HQ", "C0009"))
}
