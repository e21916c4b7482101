package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	svc "github.com/dropDatabas3/healthhook/internal/http/services/apikey"
	"github.com/dropDatabas3/healthhook/internal/rate"
)

func TestExtractAPIKeyOrder(t *testing.T) {
	cases := []struct {
		name   string
		header string
		auth   string
		query  string
		want   string
	}{
		{"header", "h-key", "Bearer b-key", "q-key", "h-key"},
		{"bearer", "", "Bearer b-key", "q-key", "b-key"},
		{"bearer lower case", "", "bearer b-key", "", "b-key"},
		{"query", "", "", "q-key", "q-key"},
		{"basic auth ignored", "", "Basic abc", "q-key", "q-key"},
		{"empty bearer", "", "Bearer   ", "", ""},
		{"none", "", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/health/android-data"
			if tc.query != "" {
				target += "?api_key=" + tc.query
			}
			r := httptest.NewRequest(http.MethodPost, target, nil)
			if tc.header != "" {
				r.Header.Set("X-API-Key", tc.header)
			}
			if tc.auth != "" {
				r.Header.Set("Authorization", tc.auth)
			}
			assert.Equal(t, tc.want, ExtractAPIKey(r))
		})
	}
}

type authFunc func(ctx context.Context, token string) (*repository.APIKey, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (*repository.APIKey, error) {
	return f(ctx, token)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestRequireAPIKey(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing", svc.ErrKeyRequired, http.StatusUnauthorized, "API_KEY_REQUIRED"},
		{"invalid", svc.ErrKeyInvalid, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"expired", svc.ErrKeyExpired, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"deactivated", svc.ErrKeyDeactivated, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }),
				RequireAPIKey(authFunc(func(context.Context, string) (*repository.APIKey, error) {
					return nil, tc.err
				})))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			assert.False(t, called)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}
}

func TestRequireAPIKeyStoresKey(t *testing.T) {
	var seen *repository.APIKey
	var token string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAPIKey(r.Context())
	}), RequireAPIKey(authFunc(func(_ context.Context, tok string) (*repository.APIKey, error) {
		token = tok
		return &repository.APIKey{ID: "k1", Name: "phone"}, nil
	})))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-API-Key", "whk_abc")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "whk_abc", token)
	require.NotNil(t, seen)
	assert.Equal(t, "k1", seen.ID)
}

func TestChainOrder(t *testing.T) {
	var trace []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trace = append(trace, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { trace = append(trace, "h") }),
		mark("a"), mark("b"), mark("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c", "h"}, trace)
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}), WithRequestID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "abc-123", seen)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Len(t, seen, 36)
}

func TestWithRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), WithRecover())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", errorCode(t, rec))

	abort := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}), WithRecover())
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (rate.Result, error) {
	return rate.Result{}, errors.New("redis down")
}

func TestWithRateLimit(t *testing.T) {
	l := rate.NewMemoryLimiter(1, time.Minute)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Chain(ok, WithRateLimit(l, nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// fail open
	rec = httptest.NewRecorder()
	Chain(ok, WithRateLimit(failingLimiter{}, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// sin limiter no hace nada
	rec = httptest.NewRecorder()
	Chain(ok, WithRateLimit(nil, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIKeyRateKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "ip:10.0.0.1", APIKeyRateKey(r))

	r = r.WithContext(WithAPIKey(r.Context(), &repository.APIKey{ID: "k1"}))
	assert.Equal(t, "key:k1", APIKeyRateKey(r))
}
