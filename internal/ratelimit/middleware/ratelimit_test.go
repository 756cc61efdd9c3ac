package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"proofid/internal/ratelimit/middleware/mocks"
	"proofid/internal/ratelimit/models"
	"proofid/internal/ratelimit/store/bucket"
	"proofid/pkg/testutil"
)

//go:generate mockgen -source=ratelimit.go -destination=mocks/mocks.go -package=mocks BucketStore

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func newMiddleware(policies map[models.EndpointClass]models.Policy) *Middleware {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := bucket.NewInMemoryBucketStore(bucket.WithClock(func() time.Time { return now }))
	return New(store, policies, WithLogger(discard))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestByClient(t *testing.T) {
	mw := newMiddleware(map[models.EndpointClass]models.Policy{
		models.ClassClient: {Limit: 2, Window: time.Minute},
	})
	h := mw.ByClient(okHandler)

	for i := range 2 {
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/v1/records/1", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, []string{"1", "0"}[i], rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/v1/records/1", nil))
	testutil.AssertStatus(t, rec, http.StatusTooManyRequests)
	testutil.AssertJSONContains(t, rec, "error", "rate_limit_exceeded")
	testutil.AssertJSONContains(t, rec, "retry_after", float64(60))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	other := httptest.NewRequest(http.MethodGet, "/v1/records/1", nil)
	other.RemoteAddr = "198.51.100.7:5555"
	assert.Equal(t, http.StatusNoContent, serve(h, other).Code, "budgets are per client address")
}

func TestByPrincipal(t *testing.T) {
	mw := newMiddleware(map[models.EndpointClass]models.Policy{
		models.ClassPrincipal: {Limit: 1, Window: time.Minute},
	})
	h := mw.ByPrincipal(okHandler)

	alice := testutil.WithPrincipal(httptest.NewRequest(http.MethodPost, "/v1/records", nil), testutil.PrincipalN(1))
	assert.Equal(t, http.StatusNoContent, serve(h, alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, alice).Code)

	// same address, different caller
	bob := testutil.WithPrincipal(httptest.NewRequest(http.MethodPost, "/v1/records", nil), testutil.PrincipalN(2))
	assert.Equal(t, http.StatusNoContent, serve(h, bob).Code)
}

func TestDisabledClassPassesThrough(t *testing.T) {
	mw := newMiddleware(map[models.EndpointClass]models.Policy{
		models.ClassClient: {Limit: 0, Window: time.Minute},
	})
	h := mw.ByClient(okHandler)
	for range 5 {
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
	assert.Equal(t, http.StatusNoContent, serve(mw.ByPrincipal(okHandler), httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestStoreErrorFailsOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockBucketStore(ctrl)
	store.EXPECT().
		Allow(gomock.Any(), "ratelimit:client:192.0.2.1", 5, time.Minute).
		Return(nil, errors.New("connection refused"))

	mw := New(store, map[models.EndpointClass]models.Policy{
		models.ClassClient: {Limit: 5, Window: time.Minute},
	}, WithLogger(discard))

	rec := serve(mw.ByClient(okHandler), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
