package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	"github.com/dropDatabas3/healthhook/internal/store"
	"github.com/dropDatabas3/healthhook/internal/store/storetest"
)

func newConn(t *testing.T) store.AdapterConnection { return New() }

func TestAPIKeyRepository(t *testing.T) {
	storetest.RunAPIKeys(t, newConn)
}

func TestHealthDataRepository(t *testing.T) {
	storetest.RunHealthData(t, newConn)
}

func TestUpdateDoesNotAliasCallerMetadata(t *testing.T) {
	ctx := context.Background()
	repo := New().APIKeys()

	k, err := repo.Create(ctx, repository.CreateAPIKeyInput{KeyHash: "h", KeyPrefix: "hh_live_abcd", Name: "k"})
	require.NoError(t, err)

	meta := map[string]any{"team": "a"}
	_, err = repo.Update(ctx, k.ID, repository.UpdateAPIKeyInput{Metadata: meta})
	require.NoError(t, err)

	meta["team"] = "b"
	meta["extra"] = true

	got, err := repo.GetByID(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"team": "a"}, got.Metadata)
}

func TestInsertAndQueryDoNotAliasPoints(t *testing.T) {
	ctx := context.Background()
	repo := New().HealthData()

	v := 72.0
	user := "u1"
	p := &repository.HealthDataPoint{
		MetricType:   repository.MetricHeartRate,
		ValueNumeric: &v,
		ValueJSON:    map[string]any{"bpm": 72.0},
		UserID:       &user,
		Metadata:     map[string]any{"src": "watch"},
		RecordedAt:   time.Now().UTC(),
		ReceivedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(ctx, p))

	p.ValueJSON["bpm"] = 0.0
	p.Metadata["src"] = "phone"
	v = 1
	user = "u2"

	out, err := repo.Query(ctx, repository.HealthDataFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 72.0, out[0].ValueJSON["bpm"])
	assert.Equal(t, "watch", out[0].Metadata["src"])
	assert.Equal(t, 72.0, *out[0].ValueNumeric)
	assert.Equal(t, "u1", *out[0].UserID)

	out[0].Metadata["src"] = "mutated"
	again, err := repo.Query(ctx, repository.HealthDataFilter{})
	require.NoError(t, err)
	assert.Equal(t, "watch", again[0].Metadata["src"])
}
