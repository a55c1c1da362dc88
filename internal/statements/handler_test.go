package statements

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	r.Route("/api/customers", NewHandler(nil, svc, rbac.Middleware{}).MountCustomerRoutes)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func get(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandlerStatementJSON(t *testing.T) {
	router := newRouter(newTestService(nil, nil), staff)

	rr := get(t, router, http.MethodGet, "/api/customers/10/statement?from=2026-02-01&to=2026-02-28")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	var st Statement
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Len(t, st.Entries, 3)
	assert.True(t, st.ClosingBalance.Equal(dec("110.00")))

	rr = get(t, router, http.MethodGet, "/api/customers/10/statement?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = get(t, router, http.MethodGet, "/api/customers/99/statement")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerStatementPDF(t *testing.T) {
	router := newRouter(newTestService(nil, nil), staff)

	rr := get(t, router, http.MethodGet, "/api/customers/10/statement.pdf?to=2026-02-28")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "statement-C0001-2026-02-28.pdf")
	assert.True(t, strings.HasPrefix(rr.Body.String(), "%PDF"))
}

func TestHandlerStatementDeliver(t *testing.T) {
	queue := &memoryQueue{}
	rr := get(t, newRouter(newTestService(nil, queue), staff), http.MethodPost, "/api/customers/10/statement/deliver")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.Len(t, queue.requests, 1)

	store := &memoryStore{}
	rr = get(t, newRouter(newTestService(store, nil), staff), http.MethodPost, "/api/customers/10/statement/deliver?from=2026-01-01")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Len(t, store.objects, 1)

	rr = get(t, newRouter(newTestService(store, nil), shared.Actor{UserID: 3, Role: "guest"}), http.MethodGet, "/api/customers/10/statement")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
