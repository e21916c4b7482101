package pg

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/healthhook/internal/store"
	"github.com/dropDatabas3/healthhook/internal/store/storetest"
)

// Requiere un Postgres real: HEALTHHOOK_TEST_PG_DSN=postgres://...
func setupTestConn(t *testing.T) store.AdapterConnection {
	t.Helper()
	dsn := os.Getenv("HEALTHHOOK_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("HEALTHHOOK_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	conn, err := store.Open(ctx, store.AdapterConfig{Name: "postgres", DSN: dsn, MaxOpenConns: 4}, true)
	require.NoError(t, err)

	pool := conn.(*pgConnection).pool
	_, err = pool.Exec(ctx, `TRUNCATE api_keys, health_data_points`)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestAPIKeyRepository(t *testing.T) {
	storetest.RunAPIKeys(t, setupTestConn)
}

func TestHealthDataRepository(t *testing.T) {
	storetest.RunHealthData(t, setupTestConn)
}
