package middlewares

import (
	"net/http"
	"strconv"
	"time"

	httperrors "github.com/dropDatabas3/healthhook/internal/http/errors"
	"github.com/dropDatabas3/healthhook/internal/metrics"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"
	"github.com/dropDatabas3/healthhook/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// APIKeyRateKey usa el ID de la key autenticada; sin key cae a la IP.
// Debe ir después de RequireAPIKey.
func APIKeyRateKey(r *http.Request) string {
	if k := GetAPIKey(r.Context()); k != nil {
		return "key:" + k.ID
	}
	return "ip:" + clientIP(r)
}

// WithRateLimit aplica el limiter. Si el limiter falla, el request pasa.
func WithRateLimit(limiter rate.Limiter, keyFunc RateKeyFunc) Middleware {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if keyFunc == nil {
		keyFunc = APIKeyRateKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), keyFunc(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limit check failed", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if res.WindowTTL > 0 {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.WindowTTL).Unix(), 10))
			}

			if !res.Allowed {
				metrics.RateLimited.Inc()
				if res.RetryAfter > 0 {
					secs := int(res.RetryAfter.Round(time.Second).Seconds())
					if secs < 1 {
						secs = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				httperrors.WriteError(w, r, httperrors.ErrRateLimitExceeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
