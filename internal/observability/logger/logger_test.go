package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nope"))
}

func TestConfigIsProd(t *testing.T) {
	assert.True(t, Config{Env: "prod"}.IsProd())
	assert.True(t, Config{Env: "Production"}.IsProd())
	assert.False(t, Config{Env: "dev"}.IsProd())
	assert.False(t, Config{}.IsProd())
}

func TestFromFallsBackToGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	From(context.Background()).Info("global")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "global", logs.All()[0].Message)
}

func TestFromReturnsScopedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	scoped := zap.New(core).With(RequestID("req-1"))

	ctx := ToContext(context.Background(), scoped)
	From(ctx).Info("scoped", APIKeyID("k1"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "k1", fields["api_key_id"])
}
