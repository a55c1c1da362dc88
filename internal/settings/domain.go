package settings

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedesk/internal/numbering"
	"github.com/odyssey-erp/quotedesk/internal/totals"
)

// Keys stored in the settings table.
const (
	KeyVATPercentage      = "vat_percentage"
	KeyLevyPercentage     = "levy_percentage"
	KeyApplyLevy          = "apply_levy"
	KeyQuotationPrefix    = "quotation_prefix"
	KeyInvoicePrefix      = "invoice_prefix"
	KeyReceiptPrefix      = "receipt_prefix"
	KeyCustomerCodePrefix = "customer_code_prefix"
	KeyPaymentTermsDays   = "payment_terms_days"
	KeyQuotationNote      = "quotation_note"
	KeyInvoiceNote        = "invoice_note"
)

// Settings is the typed view of the settings table.
type Settings struct {
	VATPercentage      decimal.Decimal `json:"vat_percentage"`
	LevyPercentage     decimal.Decimal `json:"levy_percentage"`
	ApplyLevy          bool            `json:"apply_levy"`
	QuotationPrefix    string          `json:"quotation_prefix"`
	InvoicePrefix      string          `json:"invoice_prefix"`
	ReceiptPrefix      string          `json:"receipt_prefix"`
	CustomerCodePrefix string          `json:"customer_code_prefix"`
	PaymentTermsDays   int             `json:"payment_terms_days"`
	QuotationNote      string          `json:"quotation_note"`
	InvoiceNote        string          `json:"invoice_note"`
}

// Defaults returns the values used for keys that were never stored.
func Defaults() Settings {
	return Settings{
		VATPercentage:      decimal.RequireFromString("16.5"),
		LevyPercentage:     decimal.NewFromInt(1),
		ApplyLevy:          false,
		QuotationPrefix:    "QT",
		InvoicePrefix:      "INV",
		ReceiptPrefix:      "RCT",
		CustomerCodePrefix: "C",
		PaymentTermsDays:   30,
	}
}

// Tax returns the default tax configuration for new documents.
func (s Settings) Tax() totals.TaxConfig {
	return totals.TaxConfig{
		ApplyLevy:      s.ApplyLevy,
		LevyPercentage: s.LevyPercentage,
		VATPercentage:  s.VATPercentage,
	}
}

// Prefix returns the configured prefix for a document type.
func (s Settings) Prefix(t numbering.DocumentType) string {
	switch t {
	case numbering.Quotation:
		return s.QuotationPrefix
	case numbering.Invoice:
		return s.InvoicePrefix
	case numbering.Receipt:
		return s.ReceiptPrefix
	case numbering.Customer:
		return s.CustomerCodePrefix
	}
	return ""
}

// FromValues overlays stored values on the defaults. Keys whose value cannot
// be parsed keep their default and are reported in invalid.
func FromValues(values map[string]string) (s Settings, invalid []string) {
	s = Defaults()
	for key, raw := range values {
		raw = strings.TrimSpace(raw)
		ok := true
		switch key {
		case KeyVATPercentage:
			ok = parsePercentage(raw, &s.VATPercentage)
		case KeyLevyPercentage:
			ok = parsePercentage(raw, &s.LevyPercentage)
		case KeyApplyLevy:
			v, err := strconv.ParseBool(raw)
			ok = err == nil
			if ok {
				s.ApplyLevy = v
			}
		case KeyQuotationPrefix:
			ok = parsePrefix(raw, &s.QuotationPrefix)
		case KeyInvoicePrefix:
			ok = parsePrefix(raw, &s.InvoicePrefix)
		case KeyReceiptPrefix:
			ok = parsePrefix(raw, &s.ReceiptPrefix)
		case KeyCustomerCodePrefix:
			ok = parsePrefix(raw, &s.CustomerCodePrefix)
		case KeyPaymentTermsDays:
			v, err := strconv.Atoi(raw)
			ok = err == nil && v >= 0
			if ok {
				s.PaymentTermsDays = v
			}
		case KeyQuotationNote:
			s.QuotationNote = raw
		case KeyInvoiceNote:
			s.InvoiceNote = raw
		}
		if !ok {
			invalid = append(invalid, key)
		}
	}
	return s, invalid
}

// Values flattens s into table rows.
func (s Settings) Values() map[string]string {
	return map[string]string{
		KeyVATPercentage:      s.VATPercentage.String(),
		KeyLevyPercentage:     s.LevyPercentage.String(),
		KeyApplyLevy:          strconv.FormatBool(s.ApplyLevy),
		KeyQuotationPrefix:    s.QuotationPrefix,
		KeyInvoicePrefix:      s.InvoicePrefix,
		KeyReceiptPrefix:      s.ReceiptPrefix,
		KeyCustomerCodePrefix: s.CustomerCodePrefix,
		KeyPaymentTermsDays:   strconv.Itoa(s.PaymentTermsDays),
		KeyQuotationNote:      s.QuotationNote,
		KeyInvoiceNote:        s.InvoiceNote,
	}
}

// UpdateInput is a partial update; nil fields keep their value.
type UpdateInput struct {
	VATPercentage      *decimal.Decimal `json:"vat_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	LevyPercentage     *decimal.Decimal `json:"levy_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	ApplyLevy          *bool            `json:"apply_levy,omitempty"`
	QuotationPrefix    *string          `json:"quotation_prefix,omitempty"`
	InvoicePrefix      *string          `json:"invoice_prefix,omitempty"`
	ReceiptPrefix      *string          `json:"receipt_prefix,omitempty"`
	CustomerCodePrefix *string          `json:"customer_code_prefix,omitempty"`
	PaymentTermsDays   *int             `json:"payment_terms_days,omitempty" validate:"omitempty,gte=0,lte=365"`
	QuotationNote      *string          `json:"quotation_note,omitempty" validate:"omitempty,max=2000"`
	InvoiceNote        *string          `json:"invoice_note,omitempty" validate:"omitempty,max=2000"`
}

// Apply merges in onto s and validates the prefixes and percentage scale.
func (in UpdateInput) Apply(s Settings) (Settings, error) {
	if in.VATPercentage != nil {
		if err := totals.CheckScale("vat_percentage", *in.VATPercentage, totals.PercentagePlaces); err != nil {
			return Settings{}, err
		}
		s.VATPercentage = *in.VATPercentage
	}
	if in.LevyPercentage != nil {
		if err := totals.CheckScale("levy_percentage", *in.LevyPercentage, totals.PercentagePlaces); err != nil {
			return Settings{}, err
		}
		s.LevyPercentage = *in.LevyPercentage
	}
	if in.ApplyLevy != nil {
		s.ApplyLevy = *in.ApplyLevy
	}
	if in.PaymentTermsDays != nil {
		s.PaymentTermsDays = *in.PaymentTermsDays
	}
	if in.QuotationNote != nil {
		s.QuotationNote = strings.TrimSpace(*in.QuotationNote)
	}
	if in.InvoiceNote != nil {
		s.InvoiceNote = strings.TrimSpace(*in.InvoiceNote)
	}
	prefixes := []struct {
		in  *string
		out *string
	}{
		{in.QuotationPrefix, &s.QuotationPrefix},
		{in.InvoicePrefix, &s.InvoicePrefix},
		{in.ReceiptPrefix, &s.ReceiptPrefix},
		{in.CustomerCodePrefix, &s.CustomerCodePrefix},
	}
	for _, p := range prefixes {
		if p.in == nil {
			continue
		}
		prefix := numbering.NormalizeCode(*p.in)
		if err := numbering.ValidatePrefix(prefix); err != nil {
			return Settings{}, err
		}
		*p.out = prefix
	}
	return s, nil
}

func parsePercentage(raw string, dst *decimal.Decimal) bool {
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) || !totals.FitsScale(d, totals.PercentagePlaces) {
		return false
	}
	*dst = d
	return true
}

func parsePrefix(raw string, dst *string) bool {
	if numbering.ValidatePrefix(raw) != nil {
		return false
	}
	*dst = raw
	return true
}
