package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/quotedesk/internal/auth"
	"github.com/odyssey-erp/quotedesk/internal/customers"
	"github.com/odyssey-erp/quotedesk/internal/invoices"
	"github.com/odyssey-erp/quotedesk/internal/observability"
	"github.com/odyssey-erp/quotedesk/internal/platform/httpx"
	"github.com/odyssey-erp/quotedesk/internal/products"
	"github.com/odyssey-erp/quotedesk/internal/quotations"
	"github.com/odyssey-erp/quotedesk/internal/rbac"
	"github.com/odyssey-erp/quotedesk/internal/settings"
	"github.com/odyssey-erp/quotedesk/internal/shared"
	"github.com/odyssey-erp/quotedesk/internal/shops"
	"github.com/odyssey-erp/quotedesk/internal/statements"
	"github.com/odyssey-erp/quotedesk/internal/totals"
	"github.com/odyssey-erp/quotedesk/jobs"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	RBAC               rbac.Middleware
	Metrics            *observability.Metrics
	Checks             map[string]Pinger
	AuthHandler        *auth.Handler
	PermissionsHandler *rbac.PermissionsHandler
	TotalsHandler      *totals.Handler
	ShopsHandler       *shops.Handler
	CustomersHandler   *customers.Handler
	ProductsHandler    *products.Handler
	QuotationsHandler  *quotations.Handler
	InvoicesHandler    *invoices.Handler
	StatementsHandler  *statements.Handler
	SettingsHandler    *settings.Handler
	JobHandler         *jobs.Handler
}

// NewRouter builds the chi router with all HTTP routes.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler(params.Checks))
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(params.RBAC.Authenticate)
		if params.PermissionsHandler != nil {
			api.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.TotalsHandler != nil {
			api.Route("/totals", params.TotalsHandler.MountRoutes)
		}
		if params.SettingsHandler != nil {
			api.Route("/settings", params.SettingsHandler.MountRoutes)
		}
		if params.ShopsHandler != nil {
			api.Route("/shops", params.ShopsHandler.MountRoutes)
		}
		if params.ProductsHandler != nil {
			api.Route("/products", params.ProductsHandler.MountRoutes)
		}
		api.Route("/customers", func(cr chi.Router) {
			if params.CustomersHandler != nil {
				params.CustomersHandler.MountRoutes(cr)
			}
			if params.StatementsHandler != nil {
				params.StatementsHandler.MountCustomerRoutes(cr)
			}
		})
		api.Route("/quotations", func(qr chi.Router) {
			if params.QuotationsHandler != nil {
				params.QuotationsHandler.MountRoutes(qr)
			}
			if params.InvoicesHandler != nil {
				params.InvoicesHandler.MountConversionRoutes(qr)
			}
		})
		if params.InvoicesHandler != nil {
			api.Route("/invoices", params.InvoicesHandler.MountRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		report := healthReport{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			report.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				report.Checks[name] = "unavailable"
				report.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report.Checks[name] = "ok"
		}
		httpx.JSON(w, status, report)
	}
}
