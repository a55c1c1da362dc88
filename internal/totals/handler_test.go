package totals

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticDefaults struct {
	cfg   TaxConfig
	calls int
}

func (s *staticDefaults) TaxDefaults(ctx context.Context) (TaxConfig, error) {
	s.calls++
	return s.cfg, nil
}

type previewEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Lines []struct {
			LineTotal string `json:"line_total"`
		} `json:"lines"`
		GrossTotal string    `json:"gross_total"`
		NetTotal   string    `json:"net_total"`
		Tax        TaxConfig `json:"tax"`
	} `json:"data"`
}

func newPreviewRouter(defaults DefaultsProvider) http.Handler {
	r := chi.NewRouter()
	h := NewHandler(slog.Default(), defaults)
	r.Route("/api/totals", h.MountRoutes)
	return r
}

func postPreview(t *testing.T, router http.Handler, body string) (*httptest.ResponseRecorder, previewEnvelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/totals/preview", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	var env previewEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return rr, env
}

func TestPreviewUsesExplicitTax(t *testing.T) {
	defaults := &staticDefaults{}
	router := newPreviewRouter(defaults)

	rr, env := postPreview(t, router, `{
		"items": [{"quantity": 2, "rate_per_unit": "50.25"}, {"quantity": 1, "rate_per_unit": 25}],
		"apply_levy": true, "levy_percentage": 1, "vat_percentage": 16.5
	}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, "125.5", env.Data.GrossTotal)
	assert.Equal(t, "147.68", env.Data.NetTotal)
	assert.Len(t, env.Data.Lines, 2)
	assert.Zero(t, defaults.calls)
}

func TestPreviewFallsBackToDefaults(t *testing.T) {
	defaults := &staticDefaults{cfg: TaxConfig{ApplyLevy: true, LevyPercentage: d("1"), VATPercentage: d("16.5")}}
	router := newPreviewRouter(defaults)

	rr, env := postPreview(t, router, `{"items": [{"quantity": 1, "rate_per_unit": "125.50"}]}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "147.68", env.Data.NetTotal)
	assert.True(t, env.Data.Tax.ApplyLevy)
	assert.Equal(t, 1, defaults.calls)
}

func TestPreviewRejectsNegativeValues(t *testing.T) {
	router := newPreviewRouter(&staticDefaults{})

	rr, env := postPreview(t, router, `{"items": [{"quantity": -1, "rate_per_unit": 10}], "apply_levy": false, "levy_percentage": 0, "vat_percentage": 0}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "quantity")
}

func TestPreviewRejectsUnknownFields(t *testing.T) {
	router := newPreviewRouter(&staticDefaults{})

	rr, env := postPreview(t, router, `{"items": [], "discount": 5}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, env.Success)
}

func TestPreviewRejectsValuesFinerThanStored(t *testing.T) {
	router := newPreviewRouter(&staticDefaults{})

	rr, env := postPreview(t, router, `{"items": [{"quantity": "0.00004", "rate_per_unit": 125}], "apply_levy": false, "levy_percentage": 0, "vat_percentage": 0}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, env.Message, "quantity")

	rr, env = postPreview(t, router, `{"items": [{"quantity": 1, "rate_per_unit": 10}], "apply_levy": true, "levy_percentage": "1.0001", "vat_percentage": 0}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, env.Message, "levy_percentage")
}
