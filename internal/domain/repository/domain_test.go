package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetricType(t *testing.T) {
	m, err := ParseMetricType("HEART_RATE")
	require.NoError(t, err)
	assert.Equal(t, MetricHeartRate, m)
	assert.Equal(t, "heart_rate", m.Slug())

	_, err = ParseMetricType("heart_rate")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseMetricType("")
	assert.True(t, IsInvalidInput(err))
}

func TestMetricTypeSetIsClosed(t *testing.T) {
	assert.Len(t, metricTypes, 19)
	assert.True(t, MetricStressLevel.Valid())
	assert.False(t, MetricType("BLOOD_TYPE").Valid())
}

func TestAPIKeyIsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&APIKey{}).IsExpired(now))
	assert.True(t, (&APIKey{ExpiresAt: &past}).IsExpired(now))
	assert.False(t, (&APIKey{ExpiresAt: &future}).IsExpired(now))
}
