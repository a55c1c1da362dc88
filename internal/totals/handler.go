package totals

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedesk/internal/platform/httpx"
)

// DefaultsProvider supplies the tax configuration used when a request leaves
// a field out.
type DefaultsProvider interface {
	TaxDefaults(ctx context.Context) (TaxConfig, error)
}

// Handler exposes the calculator to the presentation layer so that previews
// and stored documents always agree.
type Handler struct {
	logger    *slog.Logger
	defaults  DefaultsProvider
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, defaults DefaultsProvider) *Handler {
	return &Handler{logger: logger, defaults: defaults, validator: httpx.NewValidator()}
}

// MountRoutes registers calculator routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/preview", h.preview)
}

// ItemRequest is one line of a preview request.
type ItemRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"gte=0"`
	Rate     decimal.Decimal `json:"rate_per_unit" validate:"gte=0"`
}

// TaxRequest carries optional overrides of the stored tax defaults.
type TaxRequest struct {
	ApplyLevy      *bool            `json:"apply_levy,omitempty"`
	LevyPercentage *decimal.Decimal `json:"levy_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	VATPercentage  *decimal.Decimal `json:"vat_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// Resolve fills unset fields from defaults.
func (t TaxRequest) Resolve(defaults TaxConfig) TaxConfig {
	cfg := defaults
	if t.ApplyLevy != nil {
		cfg.ApplyLevy = *t.ApplyLevy
	}
	if t.LevyPercentage != nil {
		cfg.LevyPercentage = *t.LevyPercentage
	}
	if t.VATPercentage != nil {
		cfg.VATPercentage = *t.VATPercentage
	}
	return cfg
}

// Complete reports whether every tax field is set.
func (t TaxRequest) Complete() bool {
	return t.ApplyLevy != nil && t.LevyPercentage != nil && t.VATPercentage != nil
}

type previewRequest struct {
	Items []ItemRequest `json:"items" validate:"dive"`
	TaxRequest
}

type previewLine struct {
	ItemRequest
	LineTotal decimal.Decimal `json:"line_total"`
}

type previewResponse struct {
	Lines []previewLine `json:"lines"`
	Tax   TaxConfig     `json:"tax"`
	Result
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	tax := TaxConfig{}
	if !req.Complete() && h.defaults != nil {
		defaults, err := h.defaults.TaxDefaults(r.Context())
		if err != nil {
			h.logger.Error("load tax defaults", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		tax = defaults
	}
	tax = req.Resolve(tax)

	items := make([]LineItem, 0, len(req.Items))
	lines := make([]previewLine, 0, len(req.Items))
	for _, it := range req.Items {
		item := LineItem{Quantity: it.Quantity, Rate: it.Rate}
		items = append(items, item)
		lines = append(lines, previewLine{ItemRequest: it, LineTotal: LineTotal(item)})
	}
	if err := ValidateItems(items, tax); err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.OK(w, http.StatusOK, previewResponse{Lines: lines, Tax: tax, Result: Compute(items, tax)})
}
