package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AnshRaj112/providerhub-backend/internal/logger"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
	"github.com/AnshRaj112/providerhub-backend/internal/services"
)

type fakeVerifier struct {
	tokens map[string]models.Identity
	err    error
}

func (f fakeVerifier) Verify(_ context.Context, token string) (models.Identity, error) {
	if f.err != nil {
		return models.Identity{}, f.err
	}
	id, ok := f.tokens[token]
	if !ok {
		return models.Identity{}, services.ErrInvalidToken
	}
	return id, nil
}

func identityEcho(t *testing.T, want *models.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if want == nil {
			assert.False(t, ok)
		} else {
			require.True(t, ok)
			assert.Equal(t, *want, id)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func request(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "bearer  abc ")
	assert.Equal(t, "abc", BearerToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(req))
}

func TestAuthenticate(t *testing.T) {
	guest := models.Identity{UserID: uuid.New(), Role: models.RoleGuest, TokenID: "j1"}
	v := fakeVerifier{tokens: map[string]models.Identity{"good": guest}}

	rec := request(Authenticate(v)(identityEcho(t, &guest)), "good")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = request(Authenticate(v)(identityEcho(t, nil)), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)

	rec = request(Authenticate(v)(identityEcho(t, nil)), "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateRevokedToken(t *testing.T) {
	v := fakeVerifier{err: services.ErrRevokedToken}
	rec := request(Authenticate(v)(identityEcho(t, nil)), "whatever")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "revoked")
}

func TestAuthenticateStoreFailureIs500(t *testing.T) {
	v := fakeVerifier{err: errors.New("connection refused")}
	rec := request(Authenticate(v)(identityEcho(t, nil)), "whatever")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestOptionalAuth(t *testing.T) {
	guest := models.Identity{UserID: uuid.New(), Role: models.RoleGuest}
	v := fakeVerifier{tokens: map[string]models.Identity{"good": guest}}

	assert.Equal(t, http.StatusNoContent, request(OptionalAuth(v)(identityEcho(t, &guest)), "good").Code)
	assert.Equal(t, http.StatusNoContent, request(OptionalAuth(v)(identityEcho(t, nil)), "bad").Code)
	assert.Equal(t, http.StatusNoContent, request(OptionalAuth(v)(identityEcho(t, nil)), "").Code)
}

func TestRequireRole(t *testing.T) {
	provider := models.Identity{UserID: uuid.New(), Role: models.RoleProvider}
	admin := models.Identity{UserID: uuid.New(), Role: models.RoleAdmin}
	v := fakeVerifier{tokens: map[string]models.Identity{"p": provider, "a": admin}}

	h := Authenticate(v)(RequireRole(models.Role.CanModerate, "admin access required")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })))

	assert.Equal(t, http.StatusNoContent, request(h, "a").Code)
	rec := request(h, "p")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin access required")

	bare := RequireRole(models.Role.CanModerate, "x")(identityEcho(t, nil))
	assert.Equal(t, http.StatusUnauthorized, request(bare, "").Code)
}

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestCounterLimit(t *testing.T) {
	store := services.NewMemoryCounterStore()
	h := CounterLimit(store, CounterLimitConfig{Name: "auth", Max: 2, Window: time.Minute}, logger.Discard())(ok())

	for i := 0; i < 2; i++ {
		rec := request(h, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := request(h, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"code":"RATE_LIMITED"`)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:1"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per IP")
}

type brokenCounter struct{}

func (brokenCounter) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("redis down")
}

func TestCounterLimitFailsOpen(t *testing.T) {
	h := CounterLimit(brokenCounter{}, CounterLimitConfig{Name: "auth", Max: 1, Window: time.Minute}, logger.Discard())(ok())
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, request(h, "").Code)
	}
}

func TestGlobalRateLimit(t *testing.T) {
	l := NewKeyedLimiter(rate.Every(time.Hour), 2, time.Minute)
	h := GlobalRateLimit(l)(ok())

	assert.Equal(t, http.StatusOK, request(h, "").Code)
	assert.Equal(t, http.StatusOK, request(h, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(h, "").Code)
}

func TestKeyedLimiterSweep(t *testing.T) {
	l := NewKeyedLimiter(rate.Every(time.Hour), 1, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	now = now.Add(2 * time.Minute)
	l.Sweep()
	assert.Empty(t, l.entries)
	assert.True(t, l.Allow("a"), "a swept key starts with a full bucket")
}

func TestMessageRateLimitPerUser(t *testing.T) {
	l := NewKeyedLimiter(rate.Every(time.Hour), 1, time.Minute)
	h := MessageRateLimit(l)(ok())

	send := func(id models.Identity, method string) int {
		req := httptest.NewRequest(method, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), id))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	alice := models.Identity{UserID: uuid.New(), Role: models.RoleGuest}
	bob := models.Identity{UserID: uuid.New(), Role: models.RoleProvider}

	assert.Equal(t, http.StatusOK, send(alice, http.MethodPost))
	assert.Equal(t, http.StatusTooManyRequests, send(alice, http.MethodPost))
	assert.Equal(t, http.StatusOK, send(alice, http.MethodGet), "reads are not throttled")
	assert.Equal(t, http.StatusOK, send(bob, http.MethodPost))
}

func TestSecurityHeaders(t *testing.T) {
	rec := request(SecurityHeaders(true)(ok()), "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = request(SecurityHeaders(false)(ok()), "")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRecover(t *testing.T) {
	h := Recover(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := request(h, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL_ERROR"`)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(ok())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chats", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

