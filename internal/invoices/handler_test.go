package invoices

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/quotations"
	"github.com/odyssey-erp/quotedesk/internal/rbac"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

func newRouter(svc *Service, actor shared.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	h := NewHandler(nil, svc, rbac.Middleware{})
	r.Route("/api/invoices", h.MountRoutes)
	r.Route("/api/quotations", h.MountConversionRoutes)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, router http.Handler, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	var env envelope
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func TestHandlerInvoiceFlow(t *testing.T) {
	repo := newMemoryRepo()
	repo.addQuotation(1, quotations.StatusApproved, customer10())
	svc, _ := newTestService(repo)
	router := newRouter(svc, staff)

	rr, env := do(t, router, http.MethodPost, "/api/quotations/1/invoice", "", IdempotencyHeader, "convert-1")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var inv Invoice
	require.NoError(t, json.Unmarshal(env.Data, &inv))
	assert.Equal(t, "INV/C0001-LL0001", inv.Number)

	rr, env = do(t, router, http.MethodPost, "/api/quotations/1/invoice", "", IdempotencyHeader, "convert-1")
	require.Equal(t, http.StatusCreated, rr.Code)
	var replay Invoice
	require.NoError(t, json.Unmarshal(env.Data, &replay))
	assert.Equal(t, inv.ID, replay.ID)

	rr, _ = do(t, router, http.MethodPost, "/api/quotations/1/invoice", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, env = do(t, router, http.MethodPost, "/api/invoices/1/payments", `{"amount": "200.00"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, env.Message, "exceeds")

	rr, env = do(t, router, http.MethodPost, "/api/invoices/1/payments", `{"amount": -5}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, env.Message, "amount")

	rr, _ = do(t, router, http.MethodPost, "/api/invoices/1/payments", `{"amount": 10, "method": "barter"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, env = do(t, router, http.MethodPost, "/api/invoices/1/payments", `{"amount": "147.68", "method": "bank_transfer"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var p Payment
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "RCT/LL-00001", p.ReceiptNumber)

	rr, env = do(t, router, http.MethodGet, "/api/invoices?status=paid", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []Invoice
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, StatusPaid, list[0].Status)

	rr, env = do(t, router, http.MethodGet, "/api/invoices/1/payments", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var payments []Payment
	require.NoError(t, json.Unmarshal(env.Data, &payments))
	assert.Len(t, payments, 1)
}

func TestHandlerPermissions(t *testing.T) {
	repo := newMemoryRepo()
	repo.addQuotation(1, quotations.StatusApproved, customer10())
	svc, _ := newTestService(repo)
	staffRouter := newRouter(svc, staff)

	rr, _ := do(t, staffRouter, http.MethodPost, "/api/quotations/1/invoice", `{"issue_date": "2026-03-01"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr, _ = do(t, staffRouter, http.MethodDelete, "/api/invoices/1", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, _ = do(t, newRouter(svc, admin), http.MethodDelete, "/api/invoices/1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr, _ = do(t, staffRouter, http.MethodGet, "/api/invoices/1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = do(t, staffRouter, http.MethodGet, "/api/invoices/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
