package products

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/rbac"
	"github.com/odyssey-erp/quotedesk/internal/shared"
)

type memoryRepo struct {
	products map[int64]Product
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: map[int64]Product{}}
}

func (m *memoryRepo) Create(ctx context.Context, p Product) (Product, error) {
	for _, existing := range m.products {
		if existing.SKU == p.SKU {
			return Product{}, shared.Conflictf("sku %s already exists", p.SKU)
		}
	}
	m.nextID++
	p.ID = m.nextID
	p.IsActive = true
	m.products[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, shared.NotFoundf("product %d not found", id)
	}
	return p, nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	var out []Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Search(ctx context.Context, term string, limit int) ([]Suggestion, error) {
	out := []Suggestion{}
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(term)) {
			out = append(out, Suggestion{ID: p.ID, SKU: p.SKU, Name: p.Name, Unit: p.Unit, Rate: p.Rate})
		}
	}
	return out, nil
}

func (m *memoryRepo) Update(ctx context.Context, p Product) (Product, error) {
	m.products[p.ID] = p
	return p, nil
}

func (m *memoryRepo) SetActive(ctx context.Context, id int64, active bool) (Product, error) {
	p, err := m.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	p.IsActive = active
	m.products[id] = p
	return p, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return shared.NotFoundf("product %d not found", id)
	}
	delete(m.products, id)
	return nil
}

func newRouter(repo *memoryRepo, actor shared.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	h := NewHandler(nil, NewService(repo), rbac.Middleware{})
	r.Route("/api/products", h.MountRoutes)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	var env envelope
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

var (
	admin = shared.Actor{UserID: 1, Role: shared.RoleAdmin}
	staff = shared.Actor{UserID: 2, Role: shared.RoleStaff}
)

func TestCreateAndSearchProduct(t *testing.T) {
	repo := newMemoryRepo()
	router := newRouter(repo, staff)

	rr, env := do(t, router, http.MethodPost, "/api/products", `{"sku": "cem-50", "name": "Cement 50kg", "rate": "12.50"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var p Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "CEM-50", p.SKU)
	assert.Equal(t, "unit", p.Unit)
	assert.True(t, p.Rate.Equal(decimal.RequireFromString("12.5")))

	rr, env = do(t, router, http.MethodGet, "/api/products/search?q=cement", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var suggestions []Suggestion
	require.NoError(t, json.Unmarshal(env.Data, &suggestions))
	require.Len(t, suggestions, 1)
	assert.Equal(t, "CEM-50", suggestions[0].SKU)
}

func TestCreateRejectsNegativeRate(t *testing.T) {
	router := newRouter(newMemoryRepo(), staff)

	rr, env := do(t, router, http.MethodPost, "/api/products", `{"sku": "X", "name": "X", "rate": "-1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, env.Message, "rate")
}

func TestDuplicateSKUConflicts(t *testing.T) {
	router := newRouter(newMemoryRepo(), staff)

	rr, _ := do(t, router, http.MethodPost, "/api/products", `{"sku": "A1", "name": "A", "rate": 1}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr, _ = do(t, router, http.MethodPost, "/api/products", `{"sku": "a1", "name": "B", "rate": 1}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestToggleActiveAndDeletePermissions(t *testing.T) {
	repo := newMemoryRepo()
	_, err := repo.Create(context.Background(), Product{SKU: "A1", Name: "A", Unit: "unit"})
	require.NoError(t, err)

	staffRouter := newRouter(repo, staff)
	rr, env := do(t, staffRouter, http.MethodPatch, "/api/products/1/active", `{"active": false}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var p Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.False(t, p.IsActive)

	rr, _ = do(t, staffRouter, http.MethodDelete, "/api/products/1", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, _ = do(t, newRouter(repo, admin), http.MethodDelete, "/api/products/1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, repo.products)

	rr, _ = do(t, staffRouter, http.MethodGet, "/api/products/1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
