package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
	"github.com/quantsignal/forecast-api/internal/observability/metrics"
	"github.com/quantsignal/forecast-api/internal/observability/statsd"
	"github.com/quantsignal/forecast-api/internal/service"
)

// APIKeyHeader carries the hex secret on gated calls.
const APIKeyHeader = "X-API-Key"

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http",
				slog.String("method", r.Method),
				slog.String("path", routePath(r)),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// routePath returns the matched route pattern, so path parameters such as
// a revoked key's secret never reach the logs. Unrouted requests fall back
// to the raw path.
func routePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.ErrorContext(r.Context(), "panic",
						slog.Any("error", err),
						slog.String("path", routePath(r)),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					WriteError(w, ErrorParams{
						Code:    http.StatusInternalServerError,
						ErrCode: "internal",
						Err:     errors.New("internal server error"),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionReader resolves the session cookie. *service.AuthService satisfies it.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
}

// RequireAuth rejects requests without a live owner session.
// The session is added to the request context.
func RequireAuth(sessions SessionReader) func(http.Handler) http.Handler {
	return RequireRole(sessions, domainauth.RoleUser)
}

// RequireRole rejects requests whose session role is below requiredRole.
func RequireRole(sessions SessionReader, requiredRole domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := getSessionFromRequest(r, sessions)
			if session == nil {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}
			if !hasRequiredRole(session.Role, requiredRole) {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), session)))
		})
	}
}

func getSessionFromRequest(r *http.Request, sessions SessionReader) *domainauth.Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	session, err := sessions.GetSession(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return session
}

// hasRequiredRole applies the hierarchy guest < user < admin.
func hasRequiredRole(userRole, requiredRole domainauth.Role) bool {
	roleHierarchy := map[domainauth.Role]int{
		domainauth.RoleGuest: 0,
		domainauth.RoleUser:  1,
		domainauth.RoleAdmin: 2,
	}
	userLevel, userExists := roleHierarchy[userRole]
	requiredLevel, requiredExists := roleHierarchy[requiredRole]
	if !userExists || !requiredExists {
		return false
	}
	return userLevel >= requiredLevel
}

// KeyValidator checks a presented secret. *service.APIKeyService satisfies it.
type KeyValidator interface {
	Validate(ctx context.Context, secret string) (service.KeyValidation, error)
}

// FailedAttemptTracker counts failed credentials. *service.SecurityTracker satisfies it.
type FailedAttemptTracker interface {
	TrackFailedAttempt(ctx context.Context, identifier string) bool
}

// APIKeyAuthOptions groups dependencies for APIKeyAuth.
type APIKeyAuthOptions struct {
	Keys    KeyValidator         // Required
	Tracker FailedAttemptTracker // Optional
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// APIKeyAuth validates the X-API-Key header. Each rejection reason has its
// own error code; rejections are counted against the client address.
func APIKeyAuth(opts APIKeyAuthOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			v, err := opts.Keys.Validate(ctx, r.Header.Get(APIKeyHeader))
			if err != nil {
				logger.ErrorContext(ctx, "api key lookup failed", "error", err)
				WriteError(w, ErrorParams{
					Code:    http.StatusServiceUnavailable,
					ErrCode: "unavailable",
					Err:     errors.New("authentication temporarily unavailable"),
				})
				return
			}
			if !v.OK() {
				rejectKey(w, r, v.Rejection, opts, logger)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetAPIKeyInContext(ctx, v.Key)))
		})
	}
}

func rejectKey(w http.ResponseWriter, r *http.Request, reason service.KeyRejection, opts APIKeyAuthOptions, logger *slog.Logger) {
	ctx := r.Context()
	metrics.EmitAuthFailure(opts.Metrics, string(reason))
	if opts.Tracker != nil {
		client := clientIP(r)
		if opts.Tracker.TrackFailedAttempt(ctx, "ip:"+client) {
			logger.WarnContext(ctx, "suspicious api key activity", "client", client, "reason", string(reason))
		}
	}

	code := http.StatusUnauthorized
	if reason == service.KeyInactive || reason == service.KeyExpired {
		code = http.StatusForbidden
	}
	WriteError(w, ErrorParams{Code: code, ErrCode: string(reason), Err: errors.New(reason.Message())})
}

// clientIP returns the host part of RemoteAddr. chi's RealIP has already
// applied proxy headers when it is mounted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestLimiter counts one request per call. *service.RateLimiter satisfies it.
type RequestLimiter interface {
	Check(ctx context.Context, principal string) service.LimitDecision
}

// RateLimitGate counts the request against the authenticated key's owner.
// Over-limit requests get a 429 with reset_in and never reach next. Allowed
// requests carry RateLimit-Limit, RateLimit-Remaining and RateLimit-Reset.
// It must run after APIKeyAuth.
func RateLimitGate(limiter RequestLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := GetAPIKeyFromContext(r.Context())
			if !ok {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: string(service.KeyMissing),
					Err:     errors.New(service.KeyMissing.Message()),
				})
				return
			}

			d := limiter.Check(r.Context(), key.RateLimitPrincipal())
			reset := d.ResetSeconds()
			if d.Limited {
				w.Header().Set("Retry-After", strconv.Itoa(reset))
				WriteError(w, ErrorParams{
					Code:    http.StatusTooManyRequests,
					ErrCode: "rate_limited",
					Err:     errors.New("rate limit exceeded"),
					Extra:   map[string]any{"reset_in": reset},
				})
				return
			}

			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("RateLimit-Reset", strconv.Itoa(reset))
			next.ServeHTTP(w, r)
		})
	}
}
