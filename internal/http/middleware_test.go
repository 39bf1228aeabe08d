package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/forecast-api/config"
	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/service"
	"github.com/quantsignal/forecast-api/internal/testutil"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// okHandler records that it ran.
type okHandler struct{ calls int }

func (h *okHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.calls++
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stubValidator struct {
	validation service.KeyValidation
	err        error
}

func (s stubValidator) Validate(context.Context, string) (service.KeyValidation, error) {
	return s.validation, s.err
}

type recordingTracker struct {
	identifiers []string
	suspicious  bool
}

func (r *recordingTracker) TrackFailedAttempt(_ context.Context, identifier string) bool {
	r.identifiers = append(r.identifiers, identifier)
	return r.suspicious
}

type recordingSink struct {
	counts map[string]int
}

func (s *recordingSink) Count(name string, _ int64, tags map[string]string) {
	if s.counts == nil {
		s.counts = map[string]int{}
	}
	s.counts[name+":"+tags["reason"]]++
}
func (s *recordingSink) Gauge(string, float64, map[string]string)        {}
func (s *recordingSink) Timing(string, time.Duration, map[string]string) {}

func TestAPIKeyAuthRejections(t *testing.T) {
	tests := []struct {
		reason service.KeyRejection
		code   int
	}{
		{service.KeyMissing, http.StatusUnauthorized},
		{service.KeyBadFormat, http.StatusUnauthorized},
		{service.KeyInvalid, http.StatusUnauthorized},
		{service.KeyInactive, http.StatusForbidden},
		{service.KeyExpired, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			tracker := &recordingTracker{}
			sink := &recordingSink{}
			next := &okHandler{}
			h := APIKeyAuth(APIKeyAuthOptions{
				Keys:    stubValidator{validation: service.KeyValidation{Rejection: tt.reason}},
				Tracker: tracker,
				Metrics: sink,
			})(next)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
			req.RemoteAddr = "203.0.113.9:5555"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, string(tt.reason), body["error"])
			assert.Equal(t, tt.reason.Message(), body["message"])
			assert.Zero(t, next.calls)
			assert.Equal(t, []string{"ip:203.0.113.9"}, tracker.identifiers)
			assert.Equal(t, 1, sink.counts["auth.failed:"+string(tt.reason)])
		})
	}
}

func TestAPIKeyAuthSuccessStoresKey(t *testing.T) {
	key := &model.AuthenticatedKey{KeyID: "k1", OwnerID: "owner-1"}
	var seen *model.AuthenticatedKey
	h := APIKeyAuth(APIKeyAuthOptions{
		Keys: stubValidator{validation: service.KeyValidation{Key: key}},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetAPIKeyFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, key, seen)
}

func TestAPIKeyAuthLookupFailure(t *testing.T) {
	logger, _ := testLogger()
	next := &okHandler{}
	h := APIKeyAuth(APIKeyAuthOptions{
		Keys:   stubValidator{err: errors.New("db down")},
		Logger: logger,
	})(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
	assert.Zero(t, next.calls)
}

func newTestLimiter(t *testing.T, requests int) (*service.RateLimiter, *testutil.FakeClock, *testutil.FakeCounterStore) {
	t.Helper()
	clock := testutil.NewFakeClock(testNow)
	store := testutil.NewFakeCounterStore(clock)
	logger, _ := testLogger()
	limiter, err := service.NewRateLimiter(service.RateLimiterOptions{
		Store:  store,
		Config: config.RateLimitConfig{Requests: requests, Window: time.Hour},
		Logger: logger,
	})
	require.NoError(t, err)
	return limiter, clock, store
}

func withKey(r *http.Request, ownerID string) *http.Request {
	return r.WithContext(SetAPIKeyInContext(r.Context(), &model.AuthenticatedKey{KeyID: "k", OwnerID: ownerID}))
}

func TestRateLimitGate(t *testing.T) {
	limiter, clock, _ := newTestLimiter(t, 2)
	next := &okHandler{}
	h := RateLimitGate(limiter)(next)

	call := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, withKey(httptest.NewRequest(http.MethodGet, "/", nil), "owner-1"))
		return w
	}

	w := call()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, "3600", w.Header().Get("RateLimit-Reset"))

	w = call()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("RateLimit-Remaining"))

	clock.Advance(10 * time.Minute)
	w = call()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "rate_limited", body["error"])
	assert.InDelta(t, 3000, body["reset_in"], 0)
	assert.Equal(t, "3000", w.Header().Get("Retry-After"))
	assert.Equal(t, 2, next.calls)

	clock.Advance(time.Hour)
	assert.Equal(t, http.StatusOK, call().Code)
}

func TestRateLimitGateSharesWindowPerOwner(t *testing.T) {
	limiter, _, _ := newTestLimiter(t, 1)
	h := RateLimitGate(limiter)(&okHandler{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, withKey(httptest.NewRequest(http.MethodGet, "/", nil), "owner-1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withKey(httptest.NewRequest(http.MethodGet, "/", nil), "owner-1"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withKey(httptest.NewRequest(http.MethodGet, "/", nil), "owner-2"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitGateFailsOpen(t *testing.T) {
	limiter, _, store := newTestLimiter(t, 1)
	store.SetUnavailable(true)
	next := &okHandler{}
	h := RateLimitGate(limiter)(next)

	for range 3 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, withKey(httptest.NewRequest(http.MethodGet, "/", nil), "owner-1"))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 3, next.calls)
}

func TestRateLimitGateRequiresKey(t *testing.T) {
	limiter, _, _ := newTestLimiter(t, 1)
	w := httptest.NewRecorder()
	RateLimitGate(limiter)(&okHandler{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	sessions := &mockAuthService{getSessionFunc: func(_ context.Context, id string) (*domainauth.Session, error) {
		switch id {
		case "admin":
			return &domainauth.Session{ID: id, OwnerID: "o1", Role: domainauth.RoleAdmin}, nil
		case "user":
			return &domainauth.Session{ID: id, OwnerID: "o2", Role: domainauth.RoleUser}, nil
		case "guest":
			return &domainauth.Session{ID: id, Role: domainauth.RoleGuest}, nil
		}
		return nil, service.ErrSessionExpired
	}}

	tests := []struct {
		cookie   string
		required domainauth.Role
		code     int
	}{
		{"", domainauth.RoleUser, http.StatusUnauthorized},
		{"expired", domainauth.RoleUser, http.StatusUnauthorized},
		{"guest", domainauth.RoleUser, http.StatusForbidden},
		{"user", domainauth.RoleUser, http.StatusOK},
		{"user", domainauth.RoleAdmin, http.StatusForbidden},
		{"admin", domainauth.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.cookie+"->"+string(tt.required), func(t *testing.T) {
			var session *domainauth.Session
			h := RequireRole(sessions, tt.required)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				session, _ = GetSessionFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				require.NotNil(t, session)
				assert.Equal(t, tt.cookie, session.ID)
			}
		})
	}
}

func TestRecoverWritesJSON(t *testing.T) {
	logger, buf := testLogger()
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decodeBody(t, w)["error"])
	assert.Contains(t, buf.String(), "boom")
}

func TestLoggingCapturesStatus(t *testing.T) {
	logger, buf := testLogger()
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/brew", entry["path"])
	assert.InDelta(t, http.StatusTeapot, entry["status"], 0)
}

func TestLoggingOmitsKeySecretFromPath(t *testing.T) {
	logger, buf := testLogger()
	secret := strings.Repeat("ab", 32)

	r := chi.NewRouter()
	r.Use(Logging(logger))
	r.Route("/api/v1", func(api chi.Router) {
		api.Delete("/keys/{key}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/keys/"+secret, nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/api/v1/keys/{key}", entry["path"])
	assert.NotContains(t, buf.String(), secret)

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/keys/"+secret, nil))
	assert.NotEmpty(t, buf.String())
	assert.NotContains(t, buf.String(), secret, "unmatched methods log the mount pattern")
}
