package quotations

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

// Handler exposes quotation endpoints.
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

// MountRoutes registers quotation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermQuotationView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/history", h.history)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermQuotationEdit))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Post("/{id}/submit", h.submit)
		r.Delete("/{id}", h.delete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermQuotationApprove))
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
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
		httpx.Error(h.logger, w, r, "list quotations", err)
		return
	}
	if filter.ShopID, err = httpx.OptionalInt64(r, "shop_id"); err != nil {
		httpx.Error(h.logger, w, r, "list quotations", err)
		return
	}
	if filter.From, err = httpx.OptionalDate(r, "from"); err != nil {
		httpx.Error(h.logger, w, r, "list quotations", err)
		return
	}
	if filter.To, err = httpx.OptionalDate(r, "to"); err != nil {
		httpx.Error(h.logger, w, r, "list quotations", err)
		return
	}
	items, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Error(h.logger, w, r, "list quotations", err)
		return
	}
	if items == nil {
		items = []Quotation{}
	}
	httpx.Page(w, items, page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "get quotation", err)
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(h.logger, w, r, "get quotation", err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "quotation history", err)
		return
	}
	logs, err := h.service.History(r.Context(), id)
	if err != nil {
		httpx.Error(h.logger, w, r, "quotation history", err)
		return
	}
	httpx.OK(w, http.StatusOK, logs)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "create quotation", err)
		return
	}
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Error(h.logger, w, r, "create quotation", err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, input); err != nil {
		httpx.Error(h.logger, w, r, "create quotation", err)
		return
	}
	q, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		httpx.Error(h.logger, w, r, "create quotation", err)
		return
	}
	httpx.OK(w, http.StatusCreated, q)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "update quotation", err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "update quotation", err)
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Error(h.logger, w, r, "update quotation", err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, input); err != nil {
		httpx.Error(h.logger, w, r, "update quotation", err)
		return
	}
	q, err := h.service.Update(r.Context(), actor, id, input)
	if err != nil {
		httpx.Error(h.logger, w, r, "update quotation", err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}

type decisionRequest struct {
	Note   string `json:"note" validate:"max=1000"`
	Reason string `json:"reason" validate:"max=1000"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "submit quotation", func(actor shared.Actor, id int64, _ decisionRequest) (Quotation, error) {
		return h.service.Submit(r.Context(), actor, id)
	})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "approve quotation", func(actor shared.Actor, id int64, req decisionRequest) (Quotation, error) {
		return h.service.Approve(r.Context(), actor, id, req.Note)
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "reject quotation", func(actor shared.Actor, id int64, req decisionRequest) (Quotation, error) {
		return h.service.Reject(r.Context(), actor, id, req.Reason)
	})
}

// decide runs a status transition. The body is optional.
func (h *Handler) decide(w http.ResponseWriter, r *http.Request, op string, fn func(shared.Actor, int64, decisionRequest) (Quotation, error)) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, op, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, op, err)
		return
	}
	var req decisionRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Error(h.logger, w, r, op, err)
			return
		}
		if err := httpx.ValidateStruct(h.validator, req); err != nil {
			httpx.Error(h.logger, w, r, op, err)
			return
		}
	}
	q, err := fn(actor, id, req)
	if err != nil {
		httpx.Error(h.logger, w, r, op, err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "delete quotation", err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "delete quotation", err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.Error(h.logger, w, r, "delete quotation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
