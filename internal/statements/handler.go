package statements

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/quotedesk/internal/platform/httpx"
	"github.com/odyssey-erp/quotedesk/internal/rbac"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

// Handler exposes customer statement endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountCustomerRoutes registers statement routes on the customer router.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStatementView))
		r.Get("/{id}/statement", h.get)
		r.Get("/{id}/statement.pdf", h.pdf)
		r.Post("/{id}/statement/deliver", h.deliver)
	})
}

func (h *Handler) params(r *http.Request) (int64, *time.Time, *time.Time, error) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		return 0, nil, nil, err
	}
	from, err := httpx.OptionalDate(r, "from")
	if err != nil {
		return 0, nil, nil, err
	}
	to, err := httpx.OptionalDate(r, "to")
	if err != nil {
		return 0, nil, nil, err
	}
	return id, from, to, nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, from, to, err := h.params(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "build statement", err)
		return
	}
	st, err := h.service.Build(r.Context(), id, from, to)
	if err != nil {
		httpx.Error(h.logger, w, r, "build statement", err)
		return
	}
	httpx.OK(w, http.StatusOK, st)
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	id, from, to, err := h.params(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "render statement", err)
		return
	}
	st, data, err := h.service.RenderPDF(r.Context(), id, from, to)
	if err != nil {
		httpx.Error(h.logger, w, r, "render statement", err)
		return
	}
	name := fmt.Sprintf("statement-%s-%s.pdf", customerLabel(st.Customer), st.To.Format(dateLayout))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "deliver statement", err)
		return
	}
	id, from, to, err := h.params(r)
	if err != nil {
		httpx.Error(h.logger, w, r, "deliver statement", err)
		return
	}
	receipt, err := h.service.RequestDelivery(r.Context(), actor, id, from, to)
	if err != nil {
		httpx.Error(h.logger, w, r, "deliver statement", err)
		return
	}
	status := http.StatusCreated
	if receipt.Queued {
		status = http.StatusAccepted
	}
	httpx.OK(w, status, receipt)
}

func customerLabel(c Customer) string {
	if c.Code != "" {
		return c.Code
	}
	return strconv.FormatInt(c.ID, 10)
}
