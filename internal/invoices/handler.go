package invoices

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/quotedesk/internal/platform/httpx"
	"github.com/odyssey-erp/quotedesk/internal/rbac"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// IdempotencyHeader carries the client supplied idempotency key.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes invoice and payment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: httpx.NewValidator()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInvoiceView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/payments", h.listPayments)
	})
	r.With(h.rbac.RequireAny(shared.PermInvoiceEdit)).Post("/{id}/send", h.markSent)
	r.With(h.rbac.RequireAny(shared.PermPaymentRecord)).Post("/{id}/payments", h.recordPayment)
	r.With(h.rbac.RequireAny(shared.PermInvoiceDelete)).Delete("/{id}", h.delete)
}

// MountConversionRoutes registers POST /{id}/invoice on the quotation router.
func (h *Handler) MountConversionRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermQuotationConvert)).Post("/{id}/invoice", h.createFromQuotation)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ListFilter{
		Status: Status(strings.ToUpper(strings.TrimSpace(query.Get("status")))),
		Search: strings.TrimSpace(query.Get("q")),
		Page:   shared.PageRequestFromQuery(query),
	}
	var err error
	if filter.CustomerID, err = httpx.OptionalInt64(r, "customer_id"); err != nil {
		httpx.Error(h.logger, w, r, "list invoices", err)
		return
	}
	items, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Error(h.logger, w, r, "list invoices", err)
		return
	}
	if items == nil {
		items = []Invoice{}
	}
	httpx.Page(w, items, page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "get invoice", err)
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(h.logger, w, r, "get invoice", err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) createFromQuotation(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "create invoice", err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "create invoice", err)
		return
	}
	var input ConvertInput
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &input); err != nil {
			httpx.Error(h.logger, w, r, "create invoice", err)
			return
		}
		if err := httpx.ValidateStruct(h.validator, input); err != nil {
			httpx.Error(h.logger, w, r, "create invoice", err)
			return
		}
	}
	inv, err := h.service.CreateFromQuotation(r.Context(), actor, id, input, r.Header.Get(IdempotencyHeader))
	if err != nil {
		httpx.Error(h.logger, w, r, "create invoice", err)
		return
	}
	httpx.OK(w, http.StatusCreated, inv)
}

func (h *Handler) markSent(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "send invoice", err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "send invoice", err)
		return
	}
	inv, err := h.service.MarkSent(r.Context(), actor, id)
	if err != nil {
		httpx.Error(h.logger, w, r, "send invoice", err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "delete invoice", err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "delete invoice", err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.Error(h.logger, w, r, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "record payment", err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "record payment", err)
		return
	}
	var input PaymentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Error(h.logger, w, r, "record payment", err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, input); err != nil {
		httpx.Error(h.logger, w, r, "record payment", err)
		return
	}
	p, err := h.service.RecordPayment(r.Context(), actor, id, input, r.Header.Get(IdempotencyHeader))
	if err != nil {
		httpx.Error(h.logger, w, r, "record payment", err)
		return
	}
	httpx.OK(w, http.StatusCreated, p)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "list payments", err)
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		httpx.Error(h.logger, w, r, "list payments", err)
		return
	}
	httpx.OK(w, http.StatusOK, payments)
}
