// Package metrics define las métricas Prometheus del servicio.
//
// Las métricas son variables de paquete para que cualquier capa las use sin
// pasar dependencias; Register las expone en un registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "healthhook"

var (
	// ─── HTTP ───

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Requests procesadas por método, ruta y status",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Latencia de los requests HTTP",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	HTTPInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_inflight_requests",
		Help:      "Requests en vuelo",
	})

	// ─── Auth ───

	// AuthDecisions result: ok|missing|invalid|expired|deactivated|error
	AuthDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_decisions_total",
		Help:      "Decisiones de autenticación por API key",
	}, []string{"result"})

	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rechazadas por rate limit",
	})

	// ─── Ingest ───

	// IngestPoints result: success|validation_failed|persist_failed|abandoned
	IngestPoints = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_points_total",
		Help:      "Mediciones procesadas por resultado",
	}, []string{"result"})

	IngestBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_batch_size",
		Help:      "Cantidad de mediciones por batch",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	// ─── Publish ───

	// PublishTotal result: ok|failed|skipped
	PublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_total",
		Help:      "Publicaciones al sink por resultado",
	}, []string{"result"})

	PublishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "publish_duration_seconds",
		Help:      "Latencia de publicación en el driver",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
	})

	// SinkState es one-hot: 1 en el estado actual, 0 en el resto.
	SinkState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sink_state",
		Help:      "Estado actual del publish sink",
	}, []string{"state"})

	SinkTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_transitions_total",
		Help:      "Transiciones de estado del publish sink",
	}, []string{"from", "to"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestsTotal, HTTPRequestDuration, HTTPInflight,
		AuthDecisions, RateLimited,
		IngestPoints, IngestBatchSize,
		PublishTotal, PublishDuration, SinkState, SinkTransitions,
	}
}

// Register registra todas las métricas en reg (default si nil), ignorando duplicados.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// Handler expone /metrics para el gatherer dado (default si nil).
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// SetSinkState marca state como el estado actual entre all.
func SetSinkState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		SinkState.WithLabelValues(s).Set(v)
	}
}
