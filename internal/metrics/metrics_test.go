package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestSetSinkStateIsOneHot(t *testing.T) {
	all := []string{"disconnected", "connecting", "connected", "reconnecting"}

	SetSinkState("connected", all)
	assert.Equal(t, 1.0, testutil.ToFloat64(SinkState.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(SinkState.WithLabelValues("disconnected")))

	SetSinkState("reconnecting", all)
	assert.Equal(t, 0.0, testutil.ToFloat64(SinkState.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SinkState.WithLabelValues("reconnecting")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	IngestPoints.WithLabelValues("success").Add(2)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `healthhook_ingest_points_total{result="success"}`)
}
