package health

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	"github.com/dropDatabas3/healthhook/internal/publish"
	"github.com/dropDatabas3/healthhook/internal/publish/publishtest"
	"github.com/dropDatabas3/healthhook/internal/store/adapters/memory"
)

func entries(raw ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(raw))
	for i, r := range raw {
		out[i] = json.RawMessage(r)
	}
	return out
}

func connectedSink(t *testing.T) (*publish.Sink, *publishtest.FakeDriver) {
	t.Helper()
	fd := publishtest.NewFakeDriver()
	s := publish.NewSink(fd, publish.DefaultOptions())
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })
	return s, fd
}

const (
	heartRate = `{"metricType":"HEART_RATE","valueNumeric":72,"unit":"bpm","recordedAt":"2024-01-15T10:30:00Z","userId":"u1","deviceInfo":{"manufacturer":"Google","model":"Pixel 8"}}`
	steps     = `{"metricType":"STEPS","valueNumeric":1500,"recordedAt":"2024-01-15T10:31:00Z"}`
)

func TestProcessHeartRateAndSteps(t *testing.T) {
	conn := memory.New()
	sink, fd := connectedSink(t)
	p := NewPipeline(conn.HealthData(), sink)

	res := p.Process(context.Background(), entries(heartRate, steps))
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, conn.Len())

	msgs := fd.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "health/user/u1/heart_rate", msgs[0].Topic)
	assert.Equal(t, "health/user/anonymous/steps", msgs[1].Topic)
	assert.EqualValues(t, 1, msgs[0].QoS)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.Equal(t, res.Items[0].ID, payload["id"])
	assert.Equal(t, "HEART_RATE", payload["metricType"])
	assert.EqualValues(t, 72, payload["valueNumeric"])
	assert.NotContains(t, payload, "userId")
}

func TestProcessValidation(t *testing.T) {
	cases := map[string]string{
		"not an object":      `[1,2]`,
		"null entry":         `null`,
		"unknown metric":     `{"metricType":"MOOD","recordedAt":"2024-01-15T10:30:00Z"}`,
		"missing recordedAt": `{"metricType":"STEPS","valueNumeric":10}`,
		"bad recordedAt":     `{"metricType":"STEPS","recordedAt":"yesterday"}`,
		"value not a number": `{"metricType":"STEPS","valueNumeric":"ten","recordedAt":"2024-01-15T10:30:00Z"}`,
		"valueJson array":    `{"metricType":"SLEEP","valueJson":[1],"recordedAt":"2024-01-15T10:30:00Z"}`,
		"metadata string":    `{"metricType":"SLEEP","metadata":"x","recordedAt":"2024-01-15T10:30:00Z"}`,
		"unit too long":      `{"metricType":"STEPS","unit":"` + strings.Repeat("u", 51) + `","recordedAt":"2024-01-15T10:30:00Z"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			conn := memory.New()
			p := NewPipeline(conn.HealthData(), nil)

			res := p.Process(context.Background(), entries(raw, steps))
			assert.Equal(t, 1, res.Success)
			assert.Equal(t, 1, res.Failed)
			assert.Equal(t, StatusValidationFailed, res.Items[0].Status)
			assert.ErrorIs(t, res.Items[0].Err, ErrValidation)
			assert.Equal(t, 1, conn.Len())
		})
	}
}

func TestProcessAcceptsMetadataOnlyAndObjects(t *testing.T) {
	conn := memory.New()
	p := NewPipeline(conn.HealthData(), nil)

	res := p.Process(context.Background(), entries(
		`{"metricType":"SLEEP","valueJson":{"deep":90,"rem":45},"recordedAt":"2024-01-15T06:00:00.123+02:00"}`,
		`{"metricType":"MINDFULNESS","metadata":{"session":"morning"},"recordedAt":"2024-01-15T07:00:00"}`,
	))
	require.Equal(t, 2, res.Success)

	got, err := p.Query(context.Background(), QueryFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, repository.MetricMindfulness, got[0].MetricType)
	assert.Nil(t, got[0].ValueNumeric)
	assert.Equal(t, "morning", got[0].Metadata["session"])
	assert.EqualValues(t, 90, got[1].ValueJSON["deep"])
	assert.Equal(t, time.UTC, got[1].RecordedAt.Location())
}

// flakyRepo falla el Insert número failAt (0-based).
type flakyRepo struct {
	repository.HealthDataRepository
	calls  int
	failAt int
	after  func()
}

func (r *flakyRepo) Insert(ctx context.Context, p *repository.HealthDataPoint) error {
	defer func() { r.calls++ }()
	if r.calls == r.failAt {
		return errors.New("connection reset")
	}
	err := r.HealthDataRepository.Insert(ctx, p)
	if r.after != nil {
		r.after()
	}
	return err
}

func TestPersistFailureIsIsolated(t *testing.T) {
	conn := memory.New()
	sink, fd := connectedSink(t)
	repo := &flakyRepo{HealthDataRepository: conn.HealthData(), failAt: 1}
	p := NewPipeline(repo, sink)

	res := p.Process(context.Background(), entries(heartRate, steps, heartRate))
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, StatusPersistFailed, res.Items[1].Status)
	assert.Equal(t, "STEPS", res.Items[1].MetricType)
	assert.ErrorIs(t, res.Items[1].Err, ErrPersistence)
	// solo se reenvía lo guardado
	assert.Len(t, fd.Messages(), 2)
}

func TestPublishFailureDoesNotAffectCounts(t *testing.T) {
	conn := memory.New()
	sink, fd := connectedSink(t)
	fd.PublishErr = errors.New("broker gone")
	p := NewPipeline(conn.HealthData(), sink)

	res := p.Process(context.Background(), entries(heartRate, steps))
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, conn.Len())
}

func TestDisconnectedSinkStillPersists(t *testing.T) {
	conn := memory.New()
	fd := publishtest.NewFakeDriver()
	sink := publish.NewSink(fd, publish.DefaultOptions())
	p := NewPipeline(conn.HealthData(), sink)

	res := p.Process(context.Background(), entries(heartRate))
	assert.Equal(t, 1, res.Success)
	assert.Empty(t, fd.Messages())
}

func TestCancelledContextAbandonsRemaining(t *testing.T) {
	conn := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := &flakyRepo{HealthDataRepository: conn.HealthData(), failAt: -1, after: cancel}
	p := NewPipeline(repo, nil)

	res := p.Process(ctx, entries(heartRate, steps, steps))
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Items, 3)
	assert.Equal(t, StatusAbandoned, res.Items[1].Status)
	assert.Equal(t, StatusAbandoned, res.Items[2].Status)
	assert.ErrorIs(t, res.Items[2].Err, context.Canceled)
	assert.Equal(t, 1, conn.Len())
}

func TestQuery(t *testing.T) {
	conn := memory.New()
	p := NewPipeline(conn.HealthData(), nil)
	res := p.Process(context.Background(), entries(heartRate, steps, heartRate))
	require.Equal(t, 3, res.Success)

	uid := "u1"
	got, err := p.Query(context.Background(), QueryFilter{UserID: &uid})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	mt := "STEPS"
	got, err = p.Query(context.Background(), QueryFilter{MetricType: &mt})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = p.Query(context.Background(), QueryFilter{UserID: &uid, MetricType: &mt})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = p.Query(context.Background(), QueryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	bad := "MOOD"
	_, err = p.Query(context.Background(), QueryFilter{MetricType: &bad})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2024-01-15T10:30:00Z",
		"2024-01-15T10:30:00.123456Z",
		"2024-01-15T10:30:00-03:00",
		"2024-01-15T10:30:00",
		"2024-01-15T10:30",
		"2024-01-15",
	} {
		_, err := ParseTimestamp(s)
		assert.NoError(t, err, s)
	}
	for _, s := range []string{"", "15/01/2024", "1705314600"} {
		_, err := ParseTimestamp(s)
		assert.Error(t, err, s)
	}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 100, NormalizeLimit(0))
	assert.Equal(t, 100, NormalizeLimit(-5))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, 1000, NormalizeLimit(5000))
}
