package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/shared"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		shared.Validationf("x"):                   http.StatusBadRequest,
		shared.ErrInvalidCredentials:              http.StatusUnauthorized,
		shared.ErrUnauthorized:                    http.StatusUnauthorized,
		shared.Forbiddenf("x"):                    http.StatusForbidden,
		shared.NotFoundf("x"):                     http.StatusNotFound,
		shared.Conflictf("x"):                     http.StatusConflict,
		shared.InvalidStatusf("x"):                http.StatusUnprocessableEntity,
		shared.Persistence("op", errors.New("x")): http.StatusInternalServerError,
		errors.New("boom"):                        http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), "%v", err)
	}
	assert.Equal(t, http.StatusOK, StatusFor(nil))
}

func TestErrorWritesSafeEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	Error(nil, rr, req, "load", shared.Persistence("load invoice", errors.New("pq: password authentication failed")))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.NotContains(t, env.Message, "password")
}

type sample struct {
	Name  string          `json:"name" validate:"required"`
	Email string          `json:"email" validate:"omitempty,email"`
	Rate  decimal.Decimal `json:"rate" validate:"gte=0"`
}

func TestDecodeAndValidate(t *testing.T) {
	decode := func(body string) (sample, error) {
		var s sample
		err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &s)
		return s, err
	}

	s, err := decode(`{"name":"Widget","rate":"12.50"}`)
	require.NoError(t, err)
	assert.True(t, s.Rate.Equal(decimal.RequireFromString("12.5")))
	assert.NoError(t, ValidateStruct(NewValidator(), s))

	_, err = decode(`{"name":"Widget","colour":"red"}`)
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = decode(``)
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = decode(`{"name":"a"}{"name":"b"}`)
	assert.ErrorIs(t, err, shared.ErrValidation)

	err = ValidateStruct(NewValidator(), sample{Email: "nope", Rate: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)
	msg := shared.UserSafeMessage(err)
	assert.Contains(t, msg, "name is required")
	assert.Contains(t, msg, "email must be a valid email address")
	assert.Contains(t, msg, "rate must be at least 0")
}

func TestParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?shop_id=3&from=2026-02-01&bad=x", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "17")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	id, err := IDParam(req, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(17), id)

	shop, err := OptionalInt64(req, "shop_id")
	require.NoError(t, err)
	assert.Equal(t, int64(3), *shop)

	missing, err := OptionalInt64(req, "customer_id")
	require.NoError(t, err)
	assert.Nil(t, missing)

	from, err := OptionalDate(req, "from")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", from.Format("2006-01-02"))

	_, err = OptionalDate(req, "bad")
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = IDParam(req, "missing")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestActorFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := Actor(req)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{UserID: 5, Role: shared.RoleStaff}))
	actor, err := Actor(req)
	require.NoError(t, err)
	assert.Equal(t, int64(5), actor.UserID)
}
