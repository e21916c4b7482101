package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	t.Run("app error passes through wrapping", func(t *testing.T) {
		err := fmt.Errorf("ctx: %w", ErrInvalidAPIKey)
		assert.Equal(t, "INVALID_API_KEY", FromError(err).Code)
	})

	t.Run("unknown error becomes 500 keeping the cause", func(t *testing.T) {
		cause := stderrors.New("db down")
		appErr := FromError(cause)
		assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
		assert.ErrorIs(t, appErr, cause)
	})
}

func TestWithDetailDoesNotMutateBase(t *testing.T) {
	e := ErrMissingFields.WithDetail("dataPoints")
	assert.Equal(t, "dataPoints", e.Detail)
	assert.Empty(t, ErrMissingFields.Detail)
	assert.ErrorIs(t, e, ErrMissingFields)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, ErrInvalidAPIKey.WithCause(stderrors.New("expired")))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid API key", body["message"])
	assert.Equal(t, "INVALID_API_KEY", body["code"])
	// la causa no se filtra al cliente
	assert.NotContains(t, rec.Body.String(), "expired")
}
