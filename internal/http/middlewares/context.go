package middlewares

import (
	"context"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
)

type ctxKey string

const (
	// ctxAPIKeyKey guarda la API key ya autenticada
	ctxAPIKeyKey ctxKey = "api_key"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// WithAPIKey inyecta la key autenticada en el contexto.
func WithAPIKey(ctx context.Context, k *repository.APIKey) context.Context {
	return context.WithValue(ctx, ctxAPIKeyKey, k)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetAPIKey obtiene la key autenticada. nil en rutas públicas.
func GetAPIKey(ctx context.Context) *repository.APIKey {
	if v, ok := ctx.Value(ctxAPIKeyKey).(*repository.APIKey); ok {
		return v
	}
	return nil
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}
