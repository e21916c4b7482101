// Package storetest contiene la batería común de tests que todo adapter de
// store tiene que pasar. Cada adapter la corre desde su propio _test.go.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	"github.com/dropDatabas3/healthhook/internal/store"
)

// Factory devuelve una conexión vacía con el schema aplicado.
type Factory func(t *testing.T) store.AdapterConnection

var (
	hashMu  sync.Mutex
	hashSeq int64
)

func uniqueHash() string {
	hashMu.Lock()
	defer hashMu.Unlock()
	hashSeq++
	return fmt.Sprintf("$2a$04$fakehash%020d", hashSeq)
}

func strp(s string) *string { return &s }

// RunAPIKeys corre la batería de APIKeyRepository.
func RunAPIKeys(t *testing.T, newConn Factory) {
	t.Run("create and get", func(t *testing.T) {
		repo := newConn(t).APIKeys()
		ctx := context.Background()
		exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

		k, err := repo.Create(ctx, repository.CreateAPIKeyInput{
			KeyHash:     uniqueHash(),
			KeyPrefix:   "whk_abcd1234",
			Name:        "android",
			Description: strp("pixel"),
			ExpiresAt:   &exp,
			Permissions: []string{"health:write"},
			Metadata:    map[string]any{"team": "mobile"},
		})
		require.NoError(t, err)
		require.NotEmpty(t, k.ID)
		assert.True(t, k.IsActive)
		assert.Zero(t, k.UsageCount)
		assert.Nil(t, k.LastUsedAt)

		got, err := repo.GetByID(ctx, k.ID)
		require.NoError(t, err)
		assert.Equal(t, "android", got.Name)
		assert.Equal(t, "whk_abcd1234", got.KeyPrefix)
		require.NotNil(t, got.Description)
		assert.Equal(t, "pixel", *got.Description)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, exp.Equal(*got.ExpiresAt))
		assert.Equal(t, []string{"health:write"}, got.Permissions)
		assert.Equal(t, "mobile", got.Metadata["team"])
	})

	t.Run("duplicate hash conflicts", func(t *testing.T) {
		repo := newConn(t).APIKeys()
		ctx := context.Background()
		h := uniqueHash()

		_, err := repo.Create(ctx, repository.CreateAPIKeyInput{KeyHash: h, Name: "one"})
		require.NoError(t, err)
		_, err = repo.Create(ctx, repository.CreateAPIKeyInput{KeyHash: h, Name: "two"})
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("missing key", func(t *testing.T) {
		repo := newConn(t).APIKeys()
		ctx := context.Background()
		missing := "00000000-0000-4000-8000-000000000000"

		_, err := repo.GetByID(ctx, missing)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = repo.GetByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = repo.Update(ctx, missing, repository.UpdateAPIKeyInput{Name: strp("x")})
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, repo.Deactivate(ctx, missing), repository.ErrNotFound)
		_, err = repo.RecordUsage(ctx, missing, time.Now())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("list active by prefix", func(t *testing.T) {
		repo := newConn(t).APIKeys()
		ctx := context.Background()

		a, err := repo.Create(ctx, repository.CreateAPIKeyInput{KeyHash: uniqueHash(), KeyPrefix: "whk_aaaaaaaa", Name: "a"})
		require.NoError(t, err)
		b, err := repo.Create(ctx, repository.CreateAPIKeyInput{KeyHash: uniqueHash(), KeyPrefix: "whk_bbbbbbbb", Name: "b"})
		require.NoError(t, err)
		legacy, err := repo.Create(ctx, repository.CreateAPIKeyInput{KeyHash: uniqueHash(), Name: "legacy"})
		require.NoError(t, err)
		revoked, err := repo.Create(ctx, repository.CreateAPIKeyInput{KeyHash: uniqueHash(), KeyPrefix: "whk_aaaaaaaa", Name: "revoked"})
		require.NoError(t, err)
		require.NoError(t, repo.Deactivate(ctx, revoked.ID))

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 4)

		active, err := repo.ListActive(ctx, "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a.ID, b.ID, legacy.ID}, ids(active))

		narrowed, err := repo.ListActive(ctx, "whk_aaaaaaaa")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a.ID, legacy.ID}, ids(narrowed))
	})

	t.Run("partial update", func(t *testing.T) {
		repo := newConn(t).APIKeys()
		ctx := context.Background()
		exp := time.Now().Add(time.Hour).UTC()

		k, err := repo.Create(ctx, repository.CreateAPIKeyInput{
			KeyHash: uniqueHash(), Name: "before", Description: strp("desc"), ExpiresAt: &exp,
			Permissions: []string{"a"},
		})
		require.NoError(t, err)

		perms := []string{"b", "c"}
		got, err := repo.Update(ctx, k.ID, repository.UpdateAPIKeyInput{
			Name:             strp("after"),
			ClearDescription: true,
			Permissions:      &perms,
		})
		require.NoError(t, err)
		assert.Equal(t, "after", got.Name)
		assert.Nil(t, got.Description)
		require.NotNil(t, got.ExpiresAt, "expiresAt untouched")
		assert.Equal(t, []string{"b", "c"}, got.Permissions)
		assert.False(t, got.UpdatedAt.Before(k.UpdatedAt))

		got, err = repo.Update(ctx, k.ID, repository.UpdateAPIKeyInput{ClearExpiresAt: true})
		require.NoError(t, err)
		assert.Nil(t, got.ExpiresAt)
		assert.Equal(t, "after", got.Name)
	})

	t.Run("record usage", func(t *testing.T) {
		repo := newConn(t).APIKeys()
		ctx := context.Background()

		k, err := repo.Create(ctx, repository.CreateAPIKeyInput{KeyHash: uniqueHash(), Name: "usage"})
		require.NoError(t, err)

		at := time.Now().UTC().Truncate(time.Millisecond)
		got, err := repo.RecordUsage(ctx, k.ID, at)
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.UsageCount)
		require.NotNil(t, got.LastUsedAt)
		assert.True(t, at.Equal(*got.LastUsedAt))

		require.NoError(t, repo.Deactivate(ctx, k.ID))
		_, err = repo.RecordUsage(ctx, k.ID, at)
		assert.ErrorIs(t, err, repository.ErrNotFound, "inactive keys are not counted")

		after, err := repo.GetByID(ctx, k.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, after.UsageCount)
		assert.False(t, after.IsActive)
	})

	t.Run("concurrent usage is not lost", func(t *testing.T) {
		repo := newConn(t).APIKeys()
		ctx := context.Background()

		k, err := repo.Create(ctx, repository.CreateAPIKeyInput{KeyHash: uniqueHash(), Name: "race"})
		require.NoError(t, err)

		const n = 25
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.RecordUsage(ctx, k.ID, time.Now())
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := repo.GetByID(ctx, k.ID)
		require.NoError(t, err)
		assert.EqualValues(t, n, got.UsageCount)
	})
}

// RunHealthData corre la batería de HealthDataRepository.
func RunHealthData(t *testing.T, newConn Factory) {
	t.Run("insert assigns id", func(t *testing.T) {
		repo := newConn(t).HealthData()
		v := 72.5
		p := &repository.HealthDataPoint{
			MetricType:   repository.MetricHeartRate,
			ValueNumeric: &v,
			Unit:         strp("bpm"),
			RecordedAt:   time.Now().Add(-time.Minute).UTC(),
			ReceivedAt:   time.Now().UTC(),
			DeviceInfo:   &repository.DeviceInfo{Manufacturer: "Google", Platform: "android"},
			UserID:       strp("u1"),
			Metadata:     map[string]any{"source": "watch"},
		}
		require.NoError(t, repo.Insert(context.Background(), p))
		assert.NotEmpty(t, p.ID)
		assert.False(t, p.CreatedAt.IsZero())

		got, err := repo.Query(context.Background(), repository.HealthDataFilter{UserID: strp("u1"), Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, p.ID, got[0].ID)
		require.NotNil(t, got[0].ValueNumeric)
		assert.InDelta(t, 72.5, *got[0].ValueNumeric, 0.0001)
		require.NotNil(t, got[0].DeviceInfo)
		assert.Equal(t, "Google", got[0].DeviceInfo.Manufacturer)
		assert.Equal(t, "watch", got[0].Metadata["source"])
	})

	t.Run("query filters and orders", func(t *testing.T) {
		repo := newConn(t).HealthData()
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		insert := func(user string, mt repository.MetricType, offset time.Duration) {
			require.NoError(t, repo.Insert(ctx, &repository.HealthDataPoint{
				MetricType: mt,
				RecordedAt: base.Add(offset),
				ReceivedAt: base,
				UserID:     strp(user),
				ValueJSON:  map[string]any{"k": "v"},
			}))
		}
		insert("u1", repository.MetricSteps, 1*time.Minute)
		insert("u1", repository.MetricSteps, 3*time.Minute)
		insert("u1", repository.MetricHeartRate, 2*time.Minute)
		insert("u2", repository.MetricSteps, 4*time.Minute)

		steps := repository.MetricSteps
		got, err := repo.Query(ctx, repository.HealthDataFilter{UserID: strp("u1"), MetricType: &steps, Limit: 100})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, got[0].RecordedAt.After(got[1].RecordedAt), "newest first")

		got, err = repo.Query(ctx, repository.HealthDataFilter{MetricType: &steps, Limit: 2})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "u2", *got[0].UserID)
	})
}

func ids(keys []repository.APIKey) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.ID)
	}
	return out
}
