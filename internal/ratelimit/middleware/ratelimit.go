// Package middleware enforces per-client and per-principal request budgets.
//
// Checks fail open: when the bucket store is unreachable the request is
// served and the failure is logged and counted.
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"proofid/internal/ratelimit/metrics"
	"proofid/internal/ratelimit/models"
	"proofid/pkg/platform/httputil"
	"proofid/pkg/requestcontext"
)

// BucketStore counts requests in a sliding window per key.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type Middleware struct {
	store    BucketStore
	policies map[models.EndpointClass]models.Policy
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Middleware)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// New returns a Middleware enforcing policies. Classes without an enabled
// policy pass every request through.
func New(store BucketStore, policies map[models.EndpointClass]models.Policy, opts ...Option) *Middleware {
	m := &Middleware{
		store:    store,
		policies: policies,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ByClient budgets requests by client address.
func (m *Middleware) ByClient(next http.Handler) http.Handler {
	return m.limit(models.ClassClient, next, func(r *http.Request) string {
		return clientIP(r)
	})
}

// ByPrincipal budgets requests by the authenticated caller. It must run after
// authentication; requests without a principal fall back to the client address.
func (m *Middleware) ByPrincipal(next http.Handler) http.Handler {
	return m.limit(models.ClassPrincipal, next, func(r *http.Request) string {
		if p := requestcontext.Principal(r.Context()); !p.IsZero() {
			return p.String()
		}
		return clientIP(r)
	})
}

func (m *Middleware) limit(class models.EndpointClass, next http.Handler, identify func(*http.Request) string) http.Handler {
	policy, ok := m.policies[class]
	if !ok || !policy.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identifier := identify(r)

		result, err := m.store.Allow(ctx, models.BucketKey(class, identifier), policy.Limit, policy.Window)
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed",
				"class", class,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			if m.metrics != nil {
				m.metrics.IncrementStoreErrors(string(class))
			}
			next.ServeHTTP(w, r)
			return
		}
		if m.metrics != nil {
			m.metrics.ObserveDecision(string(class), result.Allowed)
		}

		addRateLimitHeaders(w, result)
		if !result.Allowed {
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"class", class,
				"identifier", identifier,
				"request_id", requestcontext.RequestID(ctx),
			)
			writeRateLimitExceeded(w, result)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
