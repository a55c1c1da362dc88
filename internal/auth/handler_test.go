package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/auth"
	"github.com/odyssey-erp/quotedesk/internal/shared"
	_ "github.com/odyssey-erp/quotedesk/testing"
)

type stubRepo struct {
	mu       sync.Mutex
	users    map[string]*auth.User
	sessions map[string]int64
}

func newStubRepo(t *testing.T) *stubRepo {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	return &stubRepo{
		users: map[string]*auth.User{
			"admin@quotedesk.test":    {ID: 1, Email: "admin@quotedesk.test", Name: "Admin", PasswordHash: hash, Role: shared.RoleAdmin, IsActive: true},
			"disabled@quotedesk.test": {ID: 2, Email: "disabled@quotedesk.test", PasswordHash: hash, Role: shared.RoleStaff},
		},
		sessions: map[string]int64{},
	}
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if u, ok := s.users[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) UpsertUser(ctx context.Context, user auth.User) (*auth.User, error) {
	user.ID = int64(len(s.users) + 1)
	s.users[user.Email] = &user
	return &user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func newRouter(t *testing.T, repo auth.Repository) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "qd_session", time.Hour, false)
	handler := auth.NewHandler(nil, auth.NewService(repo), sessions, shared.NewCSRFManager("csrf-secret"))

	r := chi.NewRouter()
	r.Use(sessions.Middleware(nil))
	r.Route("/auth", handler.MountRoutes)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, router http.Handler, method, path, body string, cookie *http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	var env envelope
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr, env
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "qd_session" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestLoginMeLogout(t *testing.T) {
	repo := newStubRepo(t)
	router := newRouter(t, repo)

	rr, env := do(t, router, http.MethodGet, "/auth/csrf", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	anonymous := sessionCookie(t, rr)
	assert.Contains(t, string(env.Data), "csrf_token")

	rr, env = do(t, router, http.MethodPost, "/auth/login", `{"email":"admin@quotedesk.test","password":"correct-horse"}`, anonymous)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cookie := sessionCookie(t, rr)
	assert.NotEqual(t, anonymous.Value, cookie.Value, "login issues a fresh session id")

	var profile auth.Profile
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, int64(1), profile.User.ID)
	assert.Equal(t, shared.RoleAdmin, profile.User.Role)
	assert.NotEmpty(t, profile.CSRFToken)
	assert.Contains(t, profile.Permissions, shared.PermQuotationApprove)
	assert.NotContains(t, rr.Body.String(), "password_hash")
	assert.Equal(t, map[string]int64{cookie.Value: 1}, repo.sessions)

	rr, env = do(t, router, http.MethodGet, "/auth/me", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "admin@quotedesk.test", profile.User.Email)

	rr, _ = do(t, router, http.MethodPost, "/auth/logout", "", cookie)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, repo.sessions)

	rr, _ = do(t, router, http.MethodGet, "/auth/me", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router := newRouter(t, newStubRepo(t))

	rr, env := do(t, router, http.MethodPost, "/auth/login", `{"email":"admin@quotedesk.test","password":"wrong-password"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid email or password", env.Message)

	rr, env = do(t, router, http.MethodPost, "/auth/login", `{"email":"nobody@quotedesk.test","password":"correct-horse"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid email or password", env.Message)

	rr, _ = do(t, router, http.MethodPost, "/auth/login", `{"email":"disabled@quotedesk.test","password":"correct-horse"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = do(t, router, http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"correct-horse"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = do(t, router, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestEnsureUserHashesPassword(t *testing.T) {
	repo := newStubRepo(t)
	svc := auth.NewService(repo)

	user, err := svc.EnsureUser(context.Background(), " Staff@QuoteDesk.test ", "Staff", "long-enough", shared.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, "staff@quotedesk.test", user.Email)
	assert.NotEqual(t, "long-enough", user.PasswordHash)

	got, err := svc.Authenticate(context.Background(), "staff@quotedesk.test", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.EnsureUser(context.Background(), "x@quotedesk.test", "", "short", shared.RoleStaff)
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.EnsureUser(context.Background(), "x@quotedesk.test", "", "long-enough", shared.Role("owner"))
	assert.ErrorIs(t, err, shared.ErrValidation)
}
