package numbering

import (
	"context"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// SequenceKey identifies one counter. Scope is the code text a layout embeds
// in the number (shop code, or customer and shop code), so any two documents
// that would render the same stem draw from the same counter even when the
// codes moved between shops or customers.
type SequenceKey struct {
	DocType DocumentType
	Scope   string
}

// KeyFor builds the counter key for a document of type t from the codes that
// will be rendered into it.
func KeyFor(t DocumentType, shopCode, customerCode string) SequenceKey {
	key := SequenceKey{DocType: t}
	f, ok := formats[t]
	if !ok {
		return key
	}
	switch f.Layout {
	case LayoutShop:
		key.Scope = shopCode
	case LayoutCustomerShop:
		key.Scope = customerCode + "-" + shopCode
	}
	return key
}

// Store hands out the next value of a counter. Implementations must hold a
// lock on the counter until the surrounding transaction ends, so two
// concurrent callers never observe the same value.
type Store interface {
	NextValue(ctx context.Context, key SequenceKey) (int64, error)
}

// Directory resolves the codes embedded in numbers.
type Directory interface {
	// ShopCode returns the code of a shop, or a not found error.
	ShopCode(ctx context.Context, shopID int64) (string, error)
	// CustomerCode returns the code of a customer. found is false when the
	// customer does not exist.
	CustomerCode(ctx context.Context, customerID int64) (code string, found bool, err error)
}

// Recorder observes allocations.
type Recorder interface {
	DocumentNumberAllocated(docType string)
}

// Request describes a number to allocate.
type Request struct {
	DocType    DocumentType
	Prefix     string
	ShopID     int64
	CustomerID *int64
}

// Generator renders numbers from counters.
type Generator struct {
	logger   *slog.Logger
	recorder Recorder
}

// NewGenerator constructs a Generator. recorder may be nil.
func NewGenerator(logger *slog.Logger, recorder Recorder) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{logger: logger, recorder: recorder}
}

// Next increments the counter scoped by the supplied codes and renders the
// number. The caller owns the transaction behind store.
func (g *Generator) Next(ctx context.Context, store Store, docType DocumentType, prefix, shopCode, customerCode string) (string, error) {
	if err := ValidatePrefix(prefix); err != nil {
		return "", err
	}
	key := KeyFor(docType, shopCode, customerCode)
	value, err := store.NextValue(ctx, key)
	if err != nil {
		return "", err
	}
	number, err := Render(Parts{
		DocType:      key.DocType,
		Prefix:       prefix,
		ShopCode:     shopCode,
		CustomerCode: customerCode,
		Sequence:     value,
	})
	if err != nil {
		return "", err
	}
	if g.recorder != nil {
		g.recorder.DocumentNumberAllocated(string(key.DocType))
	}
	return number, nil
}

// Allocate resolves the codes for req and returns the next number. A shop
// without a code renders as HQ. A missing customer renders as NOCUST and a
// customer without a code as NEW; each substitution is logged.
func (g *Generator) Allocate(ctx context.Context, store Store, dir Directory, req Request) (string, error) {
	f, err := FormatFor(req.DocType)
	if err != nil {
		return "", err
	}
	var shopCode, customerCode string
	if f.Layout != LayoutPlain {
		shopCode, err = g.shopCode(ctx, dir, req)
		if err != nil {
			return "", err
		}
	}
	if f.Layout == LayoutCustomerShop {
		customerCode, err = g.customerCode(ctx, dir, req)
		if err != nil {
			return "", err
		}
	}
	return g.Next(ctx, store, req.DocType, req.Prefix, shopCode, customerCode)
}

func (g *Generator) shopCode(ctx context.Context, dir Directory, req Request) (string, error) {
	if req.ShopID <= 0 {
		return "", shared.Validationf("shop is required for %s numbers", req.DocType)
	}
	code, err := dir.ShopCode(ctx, req.ShopID)
	if err != nil {
		return "", err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		g.logger.WarnContext(ctx, "shop has no code, using fallback",
			slog.String("doc_type", string(req.DocType)),
			slog.Int64("shop_id", req.ShopID),
			slog.String("fallback", FallbackShopCode))
		return FallbackShopCode, nil
	}
	return code, nil
}

func (g *Generator) customerCode(ctx context.Context, dir Directory, req Request) (string, error) {
	if req.CustomerID == nil {
		g.logger.WarnContext(ctx, "document has no customer, using fallback",
			slog.String("doc_type", string(req.DocType)),
			slog.Int64("shop_id", req.ShopID),
			slog.String("fallback", FallbackNoCustomer))
		return FallbackNoCustomer, nil
	}
	code, found, err := dir.CustomerCode(ctx, *req.CustomerID)
	if err != nil {
		return "", err
	}
	if !found {
		g.logger.WarnContext(ctx, "customer not found, using fallback",
			slog.String("doc_type", string(req.DocType)),
			slog.Int64("customer_id", *req.CustomerID),
			slog.String("fallback", FallbackNoCustomer))
		return FallbackNoCustomer, nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		g.logger.WarnContext(ctx, "customer has no code, using fallback",
			slog.String("doc_type", string(req.DocType)),
			slog.Int64("customer_id", *req.CustomerID),
			slog.String("fallback", FallbackNewCustomer))
		return FallbackNewCustomer, nil
	}
	return code, nil
}
