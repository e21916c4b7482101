// Package health contiene el controller de ingesta y consulta de mediciones.
package health

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	dto "github.com/dropDatabas3/healthhook/internal/http/dto/health"
	httperrors "github.com/dropDatabas3/healthhook/internal/http/errors"
	"github.com/dropDatabas3/healthhook/internal/http/helpers"
	mw "github.com/dropDatabas3/healthhook/internal/http/middlewares"
	svc "github.com/dropDatabas3/healthhook/internal/http/services/health"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"
)

// Controller maneja las rutas /health
type Controller struct {
	pipeline     svc.Pipeline
	maxBodyBytes int64
}

func NewController(p svc.Pipeline, maxBodyBytes int64) *Controller {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 10 << 20
	}
	return &Controller{pipeline: p, maxBodyBytes: maxBodyBytes}
}

// Ingest maneja POST /health/android-data
func (c *Controller) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("HealthController.Ingest"),
	)

	var req dto.IngestRequest
	if err := helpers.ReadJSON(w, r, &req, c.maxBodyBytes); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	entries, err := decodeEntries(req.DataPoints)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}

	if key := mw.GetAPIKey(ctx); key != nil {
		log = log.With(logger.APIKeyID(key.ID), logger.String("api_key_name", key.Name))
	}
	log.Info("health data received", logger.Count(len(entries)))

	res := c.pipeline.Process(ctx, entries)

	helpers.WriteJSON(w, http.StatusOK, dto.IngestResponse{
		Status:     "processed",
		Total:      len(entries),
		Successful: res.Success,
		Failed:     res.Failed,
		Timestamp:  time.Now().UTC(),
	})
}

// decodeEntries exige dataPoints presente, array y no vacío.
func decodeEntries(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, httperrors.ErrMissingFields.WithDetail("dataPoints is required")
	}
	if raw[0] != '[' {
		return nil, httperrors.ErrInvalidFormat.WithDetail("dataPoints must be an array")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, httperrors.ErrInvalidJSON.WithCause(err)
	}
	if len(entries) == 0 {
		return nil, httperrors.ErrInvalidFormat.WithDetail("dataPoints must not be empty")
	}
	return entries, nil
}

// Query maneja GET /health/data?userId=&metricType=&limit=
func (c *Controller) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f svc.QueryFilter
	if v := strings.TrimSpace(q.Get("userId")); v != "" {
		f.UserID = &v
	}
	if v := strings.TrimSpace(q.Get("metricType")); v != "" {
		f.MetricType = &v
	}
	if f.UserID == nil && f.MetricType == nil {
		helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{
			Message: "Please provide either userId or metricType query parameter",
		})
		return
	}
	// limit inválido cae al default, igual que 0
	if v := q.Get("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}

	points, err := c.pipeline.Query(r.Context(), f)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			httperrors.WriteError(w, r, httperrors.ErrInvalidParameter.WithDetail(err.Error()))
			return
		}
		httperrors.WriteError(w, r, err)
		return
	}

	data := make([]dto.DataPointResponse, 0, len(points))
	for i := range points {
		data = append(data, dto.NewDataPointResponse(&points[i]))
	}
	helpers.WriteJSON(w, http.StatusOK, dto.QueryResponse{
		UserID:     f.UserID,
		MetricType: f.MetricType,
		Count:      len(data),
		Data:       data,
	})
}
