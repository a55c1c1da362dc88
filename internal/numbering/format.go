// Package numbering allocates human-readable document numbers such as
// QT/HQ-007 or INV/C0012-HQ0042 from per-scope counters.
package numbering

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// DocumentType names a numbered document family.
type DocumentType string

const (
	Quotation DocumentType = "quotation"
	Invoice   DocumentType = "invoice"
	Receipt   DocumentType = "receipt"
	Customer  DocumentType = "customer"
)

// Layout describes how the parts of a number are joined.
type Layout int

const (
	// LayoutShop renders PREFIX/SHOP-SEQ.
	LayoutShop Layout = iota + 1
	// LayoutCustomerShop renders PREFIX/CUSTOMER-SHOPSEQ.
	LayoutCustomerShop
	// LayoutPlain renders PREFIXSEQ.
	LayoutPlain
)

// Format fixes the layout and minimum sequence width of a document type.
type Format struct {
	Layout Layout
	Width  int
}

var formats = map[DocumentType]Format{
	Quotation: {Layout: LayoutShop, Width: 3},
	Invoice:   {Layout: LayoutCustomerShop, Width: 4},
	Receipt:   {Layout: LayoutShop, Width: 5},
	Customer:  {Layout: LayoutPlain, Width: 4},
}

// Fallback codes rendered when a scope has no usable code.
const (
	FallbackShopCode    = "HQ"
	FallbackNoCustomer  = "NOCUST"
	FallbackNewCustomer = "NEW"
)

var (
	prefixPattern       = regexp.MustCompile(`^[A-Z0-9]{0,9}[A-Z]$`)
	shopCodePattern     = regexp.MustCompile(`^[A-Z]{1,10}$`)
	customerCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{0,19}$`)
)

// FormatFor returns the format of t.
func FormatFor(t DocumentType) (Format, error) {
	f, ok := formats[t]
	if !ok {
		return Format{}, shared.Validationf("unknown document type %q", t)
	}
	return f, nil
}

// ValidatePrefix checks a configured document prefix.
func ValidatePrefix(prefix string) error {
	if !prefixPattern.MatchString(prefix) {
		return shared.Validationf("prefix %q must be 1-10 uppercase letters or digits ending in a letter", prefix)
	}
	return nil
}

// ValidateShopCode checks a shop code. Letters only keeps the shop and the
// sequence separable in customer-scoped numbers.
func ValidateShopCode(code string) error {
	if !shopCodePattern.MatchString(code) {
		return shared.Validationf("shop code %q must be 1-10 uppercase letters", code)
	}
	return nil
}

// ValidateCustomerCode checks a caller supplied customer code. The customer
// fallbacks are reserved so a real customer never renders as a missing one.
func ValidateCustomerCode(code string) error {
	if code == FallbackNoCustomer || code == FallbackNewCustomer {
		return shared.Validationf("customer code %q is reserved", code)
	}
	if !customerCodePattern.MatchString(code) {
		return shared.Validationf("customer code %q must be 1-20 uppercase letters, digits or dashes", code)
	}
	return nil
}

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Parts are the components of a rendered number.
type Parts struct {
	DocType      DocumentType `json:"doc_type"`
	Prefix       string       `json:"prefix"`
	ShopCode     string       `json:"shop_code,omitempty"`
	CustomerCode string       `json:"customer_code,omitempty"`
	Sequence     int64        `json:"sequence"`
}

// Render formats p according to its document type.
func Render(p Parts) (string, error) {
	f, err := FormatFor(p.DocType)
	if err != nil {
		return "", err
	}
	if p.Sequence < 1 {
		return "", shared.Validationf("sequence must be positive, got %d", p.Sequence)
	}
	seq := fmt.Sprintf("%0*d", f.Width, p.Sequence)
	switch f.Layout {
	case LayoutShop:
		return p.Prefix + "/" + p.ShopCode + "-" + seq, nil
	case LayoutCustomerShop:
		return p.Prefix + "/" + p.CustomerCode + "-" + p.ShopCode + seq, nil
	default:
		return p.Prefix + seq, nil
	}
}

// Parse splits a number produced by Render back into its parts.
func Parse(t DocumentType, number string) (Parts, error) {
	f, err := FormatFor(t)
	if err != nil {
		return Parts{}, err
	}
	bad := func() (Parts, error) {
		return Parts{}, shared.Validationf("%q is not a valid %s number", number, t)
	}
	parts := Parts{DocType: t}

	if f.Layout == LayoutPlain {
		idx := len(number)
		for idx > 0 && isDigit(rune(number[idx-1])) {
			idx--
		}
		if idx == 0 {
			return bad()
		}
		seq, ok := parseSeq(number[idx:])
		if !ok {
			return bad()
		}
		parts.Prefix, parts.Sequence = number[:idx], seq
		return parts, nil
	}

	slash := strings.Index(number, "/")
	if slash <= 0 {
		return bad()
	}
	parts.Prefix = number[:slash]
	rest := number[slash+1:]
	dash := strings.LastIndex(rest, "-")
	if dash <= 0 || dash == len(rest)-1 {
		return bad()
	}
	head, tail := rest[:dash], rest[dash+1:]

	switch f.Layout {
	case LayoutShop:
		seq, ok := parseSeq(tail)
		if !ok {
			return bad()
		}
		parts.ShopCode, parts.Sequence = head, seq
	case LayoutCustomerShop:
		digits := strings.IndexFunc(tail, isDigit)
		if digits <= 0 {
			return bad()
		}
		seq, ok := parseSeq(tail[digits:])
		if !ok {
			return bad()
		}
		parts.CustomerCode, parts.ShopCode, parts.Sequence = head, tail[:digits], seq
	}
	return parts, nil
}

func parseSeq(s string) (int64, bool) {
	if s == "" || !allDigits(s) {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func allDigits(s string) bool {
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return s != ""
}
