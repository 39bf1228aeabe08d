package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	apperrors "github.com/quantsignal/forecast-api/internal/errors"
	"github.com/quantsignal/forecast-api/internal/service"
)

const goodSecret = "good-secret"

type stubKeys struct {
	created  []string
	revoked  []string
	createFn func(ownerID, name string) (*model.IssuedAPIKey, error)
}

func (s *stubKeys) Validate(_ context.Context, secret string) (service.KeyValidation, error) {
	switch secret {
	case "":
		return service.KeyValidation{Rejection: service.KeyMissing}, nil
	case goodSecret:
		return service.KeyValidation{Key: &model.AuthenticatedKey{
			KeyID:     "k1",
			OwnerID:   "owner-1",
			ExpiresAt: testNow.Add(24 * time.Hour),
		}}, nil
	default:
		return service.KeyValidation{Rejection: service.KeyInvalid}, nil
	}
}

func (s *stubKeys) Create(_ context.Context, ownerID, name string) (*model.IssuedAPIKey, error) {
	s.created = append(s.created, ownerID+"/"+name)
	if s.createFn != nil {
		return s.createFn(ownerID, name)
	}
	return &model.IssuedAPIKey{Secret: "s3cr3t", Key: model.APIKey{ID: "k2", OwnerID: ownerID, Name: name}}, nil
}

func (s *stubKeys) List(_ context.Context, ownerID string) ([]*model.APIKey, error) {
	return []*model.APIKey{{ID: "k1", OwnerID: ownerID, KeySuffix: "abcd1234"}}, nil
}

func (s *stubKeys) Revoke(_ context.Context, secret, _ string) error {
	s.revoked = append(s.revoked, secret)
	if secret != goodSecret {
		return service.ErrKeyNotFound
	}
	return nil
}

func (s *stubKeys) Status(ctx context.Context, key model.AuthenticatedKey, limiter *service.RateLimiter) model.KeyStatus {
	left, reset, _ := limiter.Peek(ctx, key.RateLimitPrincipal())
	return model.KeyStatus{
		Active:            true,
		ExpiresAt:         key.ExpiresAt,
		RemainingRequests: left,
		MaxRequests:       limiter.Limit(),
		ResetIn:           int(reset / time.Second),
	}
}

type stubForecaster struct {
	calls int
	err   error
}

func (s *stubForecaster) ListModels(context.Context, int) ([]*model.ModelVersion, error) {
	s.calls++
	return []*model.ModelVersion{{Version: "AAPL-20240101T010000Z", Ticker: "AAPL"}}, s.err
}

func (s *stubForecaster) Predict(_ context.Context, req service.PredictRequest) (*model.Prediction, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.Prediction{ID: "p1", Ticker: req.Ticker, HorizonDays: req.HorizonDays, Value: 101.5}, nil
}

type stubChecker struct{ status model.HealthStatus }

func (s stubChecker) Check(context.Context) model.HealthReport {
	return model.HealthReport{Status: s.status, Timestamp: testNow}
}

type stubTasks struct{ metrics model.TaskMetrics }

func (s stubTasks) TaskMetrics() model.TaskMetrics { return s.metrics }

type routerFixture struct {
	handler    http.Handler
	keys       *stubKeys
	forecaster *stubForecaster
}

func sessionsByCookie(_ context.Context, id string) (*domainauth.Session, error) {
	switch id {
	case "admin":
		return &domainauth.Session{ID: id, OwnerID: "owner-1", Role: domainauth.RoleAdmin}, nil
	case "user":
		return &domainauth.Session{ID: id, OwnerID: "owner-1", Role: domainauth.RoleUser}, nil
	}
	return nil, service.ErrSessionExpired
}

func newRouterFixture(t *testing.T, mutate func(*RouterServices)) routerFixture {
	t.Helper()
	limiter, _, _ := newTestLimiter(t, 2)
	logger, _ := testLogger()
	f := routerFixture{keys: &stubKeys{}, forecaster: &stubForecaster{}}
	services := RouterServices{
		Health:   stubChecker{status: model.HealthHealthy},
		Keys:     f.keys,
		Limiter:  limiter,
		Security: &recordingTracker{},
		Forecast: f.forecaster,
		Auth:     &mockAuthService{getSessionFunc: sessionsByCookie},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# HELP forecast_up 1\n")
		}),
		Logger: logger,
	}
	if mutate != nil {
		mutate(&services)
	}
	f.handler = NewRouter(services)
	return f
}

func (f routerFixture) do(method, path, body string, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func apiKey(secret string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(APIKeyHeader, secret) }
}

func sessionCookie(id string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: id}) }
}

func TestRouterHealthStatusCodes(t *testing.T) {
	for status, code := range map[model.HealthStatus]int{
		model.HealthHealthy:   http.StatusOK,
		model.HealthDegraded:  http.StatusMultiStatus,
		model.HealthUnhealthy: http.StatusMultiStatus,
	} {
		f := newRouterFixture(t, func(s *RouterServices) { s.Health = stubChecker{status: status} })
		for _, path := range []string{"/health", "/health/check"} {
			w := f.do(http.MethodGet, path, "")
			assert.Equal(t, code, w.Code, "%s %s", status, path)
			assert.Equal(t, string(status), decodeBody(t, w)["status"])
		}
	}
}

func TestRouterLivenessAndMetrics(t *testing.T) {
	f := newRouterFixture(t, nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", "").Code)
	w := f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "forecast_up")

	w = f.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeBody(t, w)["error"])
}

func TestRouterGatedPipeline(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/models", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing_api_key", decodeBody(t, w)["error"])

	w = f.do(http.MethodGet, "/api/v1/models", "", apiKey("wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_api_key", decodeBody(t, w)["error"])
	assert.Zero(t, f.forecaster.calls)

	w = f.do(http.MethodGet, "/api/v1/models", "", apiKey(goodSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("RateLimit-Reset"))

	w = f.do(http.MethodPost, "/api/v1/predict", `{"ticker":"AAPL","horizon_days":5}`, apiKey(goodSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AAPL", decodeBody(t, w)["ticker"])

	w = f.do(http.MethodPost, "/api/v1/predict", `{"ticker":"AAPL","horizon_days":5}`, apiKey(goodSecret))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, decodeBody(t, w), "reset_in")
	assert.Equal(t, 2, f.forecaster.calls)

	// Key status is authenticated but not counted.
	w = f.do(http.MethodGet, "/api/v1/keys/status", "", apiKey(goodSecret))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.InDelta(t, 0, body["remaining_requests"], 0)
	assert.InDelta(t, 2, body["max_requests"], 0)
}

func TestRouterPredictErrors(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodPost, "/api/v1/predict", `{"ticker":"AAPL","unknown":1}`, apiKey(goodSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_json", decodeBody(t, w)["error"])

	f.forecaster.err = apperrors.ValidationField("horizon_days", "horizon_days must be between 1 and 365")
	w = f.do(http.MethodPost, "/api/v1/predict", `{"ticker":"AAPL","horizon_days":0}`, apiKey(goodSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "validation", body["error"])
	assert.Equal(t, "horizon_days", body["field"])
}

func TestRouterKeyManagement(t *testing.T) {
	f := newRouterFixture(t, nil)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/v1/keys", "").Code)

	w := f.do(http.MethodPost, "/api/v1/keys", `{"name":"ci"}`, sessionCookie("user"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "s3cr3t", decodeBody(t, w)["api_key"])
	assert.Equal(t, []string{"owner-1/ci"}, f.keys.created)

	w = f.do(http.MethodPost, "/api/v1/keys", "", sessionCookie("user"))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodGet, "/api/v1/keys", "", sessionCookie("user"))
	require.Equal(t, http.StatusOK, w.Code)
	keys, ok := decodeBody(t, w)["keys"].([]any)
	require.True(t, ok)
	assert.Len(t, keys, 1)

	w = f.do(http.MethodDelete, "/api/v1/keys/"+goodSecret, "", sessionCookie("user"))
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodDelete, "/api/v1/keys/unknown", "", sessionCookie("user"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []string{goodSecret, "unknown"}, f.keys.revoked)
}

func TestRouterKeyLimit(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.keys.createFn = func(string, string) (*model.IssuedAPIKey, error) {
		return nil, fmt.Errorf("owner holds 5 keys: %w", service.ErrKeyLimitReached)
	}

	w := f.do(http.MethodPost, "/api/v1/keys", "", sessionCookie("user"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "key_limit_reached", decodeBody(t, w)["error"])
}

func TestRouterTaskMetrics(t *testing.T) {
	f := newRouterFixture(t, nil)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/tasks/metrics", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/tasks/metrics", "", sessionCookie("user")).Code)

	w := f.do(http.MethodGet, "/api/v1/tasks/metrics", "", sessionCookie("admin"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", decodeBody(t, w)["status"])

	f = newRouterFixture(t, func(s *RouterServices) {
		s.Tasks = stubTasks{metrics: model.TaskMetrics{
			Status: model.HealthHealthy,
			Jobs:   map[model.JobID]model.JobMetrics{model.JobCacheCleanup: {Status: model.ScheduleActive}},
		}}
	})
	w = f.do(http.MethodGet, "/api/v1/tasks/metrics", "", sessionCookie("admin"))
	require.Equal(t, http.StatusOK, w.Code)
	jobs, ok := decodeBody(t, w)["jobs"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, jobs, "cache_cleanup")
}

func TestRouterWithoutAuthSkipsSessionRoutes(t *testing.T) {
	f := newRouterFixture(t, func(s *RouterServices) { s.Auth = nil })

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/auth/login", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/models", "", apiKey(goodSecret)).Code)
}
