package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/healthhook/internal/observability/logger"
)

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

// WriteError escribe err como JSON. Los 5xx se loguean con la causa;
// el cliente nunca la ve.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromError(err)

	if appErr.HTTPStatus >= http.StatusInternalServerError && r != nil {
		logger.From(r.Context()).Error("request failed",
			logger.String("code", appErr.Code),
			logger.Err(appErr.Err),
		)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		StatusCode: appErr.HTTPStatus,
		Code:       appErr.Code,
		Message:    appErr.Message,
		Detail:     appErr.Detail,
	})
}
