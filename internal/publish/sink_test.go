package publish_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	"github.com/dropDatabas3/healthhook/internal/metrics"
	"github.com/dropDatabas3/healthhook/internal/publish"
	"github.com/dropDatabas3/healthhook/internal/publish/publishtest"
)

func newSink(t *testing.T) (*publish.Sink, *publishtest.FakeDriver) {
	t.Helper()
	d := publishtest.NewFakeDriver()
	return publish.NewSink(d, publish.DefaultOptions()), d
}

func TestSinkStartsDisconnected(t *testing.T) {
	s, _ := newSink(t)
	assert.Equal(t, publish.StateDisconnected, s.State())
}

func TestConnectSuccess(t *testing.T) {
	s, d := newSink(t)
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, publish.StateConnected, s.State())
	assert.Equal(t, 1, d.Connects())

	// segundo Connect es no-op
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, 1, d.Connects())
}

func TestConnectFailureReturnsToDisconnected(t *testing.T) {
	s, d := newSink(t)
	d.ConnectErr = errors.New("broker down")

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, publish.StateDisconnected, s.State())
}

func TestConnectWhileConnecting(t *testing.T) {
	s, d := newSink(t)
	var inner error
	d.ConnectHook = func() {
		assert.Equal(t, publish.StateConnecting, s.State())
		inner = s.Connect(context.Background())
	}

	require.NoError(t, s.Connect(context.Background()))
	assert.ErrorIs(t, inner, publish.ErrConnectInProgress)
}

func TestDisconnectDuringConnect(t *testing.T) {
	s, d := newSink(t)
	d.ConnectHook = func() {
		require.NoError(t, s.Disconnect(context.Background()))
	}

	err := s.Connect(context.Background())
	assert.ErrorIs(t, err, publish.ErrDisconnected)
	assert.Equal(t, publish.StateDisconnected, s.State())
}

func TestLostAndReconnected(t *testing.T) {
	s, d := newSink(t)
	require.NoError(t, s.Connect(context.Background()))

	d.Lose(errors.New("keepalive timeout"))
	assert.Equal(t, publish.StateReconnecting, s.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SinkState.WithLabelValues("reconnecting")))

	// Connect durante la reconexión no arranca otro intento
	assert.ErrorIs(t, s.Connect(context.Background()), publish.ErrConnectInProgress)

	d.Restore()
	assert.Equal(t, publish.StateConnected, s.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SinkState.WithLabelValues("connected")))
}

func TestLivenessCallbacksIgnoredOutsideTheirState(t *testing.T) {
	s, d := newSink(t)
	require.NoError(t, s.Connect(context.Background()))

	d.Restore()
	assert.Equal(t, publish.StateConnected, s.State())

	require.NoError(t, s.Disconnect(context.Background()))
	d.Lose(errors.New("late"))
	assert.Equal(t, publish.StateDisconnected, s.State())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	s, d := newSink(t)
	require.NoError(t, s.Disconnect(context.Background()))
	assert.Equal(t, 0, d.Disconnects())

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Disconnect(context.Background()))
	require.NoError(t, s.Disconnect(context.Background()))
	assert.Equal(t, 1, d.Disconnects())
	assert.Equal(t, publish.StateDisconnected, s.State())
}

func TestPublishSkippedUnlessConnected(t *testing.T) {
	s, d := newSink(t)
	before := testutil.ToFloat64(metrics.PublishTotal.WithLabelValues("skipped"))

	out := s.Publish(context.Background(), "t", []byte("{}"), publish.PublishOptions{})
	assert.Equal(t, publish.Skipped, out)
	assert.Empty(t, d.Messages())

	require.NoError(t, s.Connect(context.Background()))
	d.Lose(errors.New("x"))
	assert.Equal(t, publish.Skipped, s.Publish(context.Background(), "t", nil, publish.PublishOptions{}))
	assert.Empty(t, d.Messages())

	assert.Equal(t, before+2, testutil.ToFloat64(metrics.PublishTotal.WithLabelValues("skipped")))
}

func TestPublishErrorIsSwallowed(t *testing.T) {
	s, d := newSink(t)
	require.NoError(t, s.Connect(context.Background()))
	d.PublishErr = errors.New("queue full")
	before := testutil.ToFloat64(metrics.PublishTotal.WithLabelValues("failed"))

	out := s.Publish(context.Background(), "t", []byte("{}"), publish.PublishOptions{})
	assert.Equal(t, publish.Failed, out)
	assert.Equal(t, publish.StateConnected, s.State(), "publish errors do not change state")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PublishTotal.WithLabelValues("failed")))
}

func TestPublishOptions(t *testing.T) {
	s, d := newSink(t)
	require.NoError(t, s.Connect(context.Background()))

	s.Publish(context.Background(), "a", []byte("1"), publish.PublishOptions{})
	qos := byte(0)
	retain := true
	s.Publish(context.Background(), "b", []byte("2"), publish.PublishOptions{QoS: &qos, Retain: &retain})

	msgs := d.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, byte(1), msgs[0].QoS)
	assert.False(t, msgs[0].Retain)
	assert.Equal(t, byte(0), msgs[1].QoS)
	assert.True(t, msgs[1].Retain)
}

func TestHealthTopic(t *testing.T) {
	uid := "u1"
	empty := ""
	assert.Equal(t, "health/user/u1/heart_rate", publish.HealthTopic(&uid, repository.MetricHeartRate))
	assert.Equal(t, "health/user/anonymous/steps", publish.HealthTopic(nil, repository.MetricSteps))
	assert.Equal(t, "health/user/anonymous/blood_oxygen", publish.HealthTopic(&empty, repository.MetricBloodOxygen))
}

func TestPublishHealthDataPoint(t *testing.T) {
	s, d := newSink(t)
	require.NoError(t, s.Connect(context.Background()))

	uid := "u1"
	v := 72.0
	p := &repository.HealthDataPoint{
		ID:           "id-1",
		MetricType:   repository.MetricHeartRate,
		ValueNumeric: &v,
		RecordedAt:   time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		ReceivedAt:   time.Date(2026, 1, 1, 10, 0, 1, 0, time.UTC),
		UserID:       &uid,
	}

	out, err := s.PublishHealthDataPoint(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, publish.Published, out)

	msgs := d.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "health/user/u1/heart_rate", msgs[0].Topic)
	assert.Equal(t, byte(1), msgs[0].QoS)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &body))
	assert.Equal(t, "id-1", body["id"])
	assert.Equal(t, "HEART_RATE", body["metricType"])
	assert.Equal(t, 72.0, body["valueNumeric"])
	assert.NotContains(t, body, "userId")
}
