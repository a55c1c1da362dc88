package products

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/quotedesk/internal/platform/httpx"
	"github.com/odyssey-erp/quotedesk/internal/rbac"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Handler exposes product endpoints.
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

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermProductView))
		r.Get("/", h.list)
		r.Get("/search", h.search)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermProductEdit))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Patch("/{id}/active", h.setActive)
	})
	r.With(h.rbac.RequireAny(shared.PermProductDelete)).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ListFilter{
		Search: strings.TrimSpace(query.Get("q")),
		Page:   shared.PageRequestFromQuery(query),
	}
	if raw := query.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.Error(h.logger, w, r, "list products", shared.Validationf("invalid active %q", raw))
			return
		}
		filter.Active = &active
	}
	items, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Error(h.logger, w, r, "list products", err)
		return
	}
	httpx.Page(w, items, page)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		httpx.Error(h.logger, w, r, "search products", err)
		return
	}
	httpx.OK(w, http.StatusOK, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "get product", err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(h.logger, w, r, "get product", err)
		return
	}
	httpx.OK(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "create product", err)
		return
	}
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Error(h.logger, w, r, "create product", err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, input); err != nil {
		httpx.Error(h.logger, w, r, "create product", err)
		return
	}
	p, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		httpx.Error(h.logger, w, r, "create product", err)
		return
	}
	httpx.OK(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "update product", err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "update product", err)
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Error(h.logger, w, r, "update product", err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, input); err != nil {
		httpx.Error(h.logger, w, r, "update product", err)
		return
	}
	p, err := h.service.Update(r.Context(), actor, id, input)
	if err != nil {
		httpx.Error(h.logger, w, r, "update product", err)
		return
	}
	httpx.OK(w, http.StatusOK, p)
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "set product active", err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "set product active", err)
		return
	}
	var req activeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(h.logger, w, r, "set product active", err)
		return
	}
	if err := httpx.ValidateStruct(h.validator, req); err != nil {
		httpx.Error(h.logger, w, r, "set product active", err)
		return
	}
	p, err := h.service.SetActive(r.Context(), actor, id, *req.Active)
	if err != nil {
		httpx.Error(h.logger, w, r, "set product active", err)
		return
	}
	httpx.OK(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "delete product", err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(h.logger, w, r, "delete product", err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.Error(h.logger, w, r, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
