package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	fixed := time.Date(2026, 1, 1, 10, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	r, err := l.Allow(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
	assert.EqualValues(t, 1, r.Remaining)

	r, _ = l.Allow(ctx, "k1")
	assert.True(t, r.Allowed)
	assert.EqualValues(t, 0, r.Remaining)

	r, _ = l.Allow(ctx, "k1")
	assert.False(t, r.Allowed)
	assert.Equal(t, 30*time.Second, r.RetryAfter)
	assert.EqualValues(t, 3, r.CurrentHits)

	// otra key tiene su propio contador
	r, _ = l.Allow(ctx, "k2")
	assert.True(t, r.Allowed)

	// ventana siguiente
	fixed = fixed.Add(time.Minute)
	r, _ = l.Allow(ctx, "k1")
	assert.True(t, r.Allowed)
	assert.EqualValues(t, 1, r.CurrentHits)
}

func TestNewResultClampsRemaining(t *testing.T) {
	r := newResult(10, 3, 0, time.Minute)
	assert.False(t, r.Allowed)
	assert.Zero(t, r.Remaining)
	assert.Equal(t, time.Minute, r.RetryAfter)
}
