// Package router arma el árbol de rutas chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apikeysctrl "github.com/dropDatabas3/healthhook/internal/http/controllers/apikeys"
	healthctrl "github.com/dropDatabas3/healthhook/internal/http/controllers/health"
	systemctrl "github.com/dropDatabas3/healthhook/internal/http/controllers/system"
	httperrors "github.com/dropDatabas3/healthhook/internal/http/errors"
	mw "github.com/dropDatabas3/healthhook/internal/http/middlewares"
	svc "github.com/dropDatabas3/healthhook/internal/http/services/apikey"
	"github.com/dropDatabas3/healthhook/internal/rate"
)

// Deps contiene las dependencias del router.
type Deps struct {
	APIKeys *apikeysctrl.Controller
	Health  *healthctrl.Controller
	System  *systemctrl.Controller

	Auth    svc.Authenticator
	Limiter rate.Limiter // nil => sin rate limit

	// Metrics nil => no se expone /metrics.
	Metrics     http.Handler
	MetricsPath string
}

// New registra todas las rutas.
//
//	/healthz, /readyz, /metrics   públicas
//	/api-keys...                  admin (sin auth, se expone solo en red interna)
//	/health/...                   protegidas por API key + rate limit
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithRecover(),
		mw.WithMetrics(),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, r, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, r, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", d.System.Healthz)
	r.Get("/readyz", d.System.Readyz)
	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, d.Metrics)
	}

	r.Route("/api-keys", func(r chi.Router) {
		r.Post("/", d.APIKeys.Create)
		r.Get("/", d.APIKeys.List)
		r.Get("/{id}", d.APIKeys.Get)
		r.Put("/{id}", d.APIKeys.Update)
		r.Delete("/{id}", d.APIKeys.Revoke)
	})

	r.Route("/health", func(r chi.Router) {
		r.Use(
			mw.RequireAPIKey(d.Auth),
			mw.WithRateLimit(d.Limiter, mw.APIKeyRateKey),
		)
		r.Post("/android-data", d.Health.Ingest)
		r.Get("/data", d.Health.Query)
	})

	return r
}
