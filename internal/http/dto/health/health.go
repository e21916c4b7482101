// Package health contiene los DTOs de ingesta y consulta de mediciones.
package health

import (
	"encoding/json"
	"time"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
)

// IngestRequest es el sobre de POST /health/android-data. Las entradas se
// decodifican una por una para que un error no tire el batch entero.
type IngestRequest struct {
	DataPoints json.RawMessage `json:"dataPoints"`
}

// DataPoint es una entrada del batch tal como la manda el cliente.
type DataPoint struct {
	MetricType   string                 `json:"metricType"`
	ValueNumeric *float64               `json:"valueNumeric,omitempty"`
	ValueJSON    json.RawMessage        `json:"valueJson,omitempty"`
	Unit         *string                `json:"unit,omitempty"`
	RecordedAt   string                 `json:"recordedAt"`
	DeviceInfo   *repository.DeviceInfo `json:"deviceInfo,omitempty"`
	SourceApp    *string                `json:"sourceApp,omitempty"`
	UserID       *string                `json:"userId,omitempty"`
	Metadata     json.RawMessage        `json:"metadata,omitempty"`
}

// IngestResponse resumen del batch.
type IngestResponse struct {
	Status     string    `json:"status"`
	Total      int       `json:"total"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Timestamp  time.Time `json:"timestamp"`
}

// DataPointResponse una medición en GET /health/data.
type DataPointResponse struct {
	ID           string                 `json:"id"`
	MetricType   repository.MetricType  `json:"metricType"`
	ValueNumeric *float64               `json:"valueNumeric,omitempty"`
	ValueJSON    map[string]any         `json:"valueJson,omitempty"`
	Unit         *string                `json:"unit,omitempty"`
	RecordedAt   time.Time              `json:"recordedAt"`
	ReceivedAt   time.Time              `json:"receivedAt"`
	DeviceInfo   *repository.DeviceInfo `json:"deviceInfo,omitempty"`
	SourceApp    *string                `json:"sourceApp,omitempty"`
	UserID       *string                `json:"userId,omitempty"`
	Metadata     map[string]any         `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// QueryResponse respuesta de GET /health/data con al menos un filtro.
type QueryResponse struct {
	UserID     *string             `json:"userId,omitempty"`
	MetricType *string             `json:"metricType,omitempty"`
	Count      int                 `json:"count"`
	Data       []DataPointResponse `json:"data"`
}

// MessageResponse se usa cuando falta el filtro.
type MessageResponse struct {
	Message string `json:"message"`
}

func NewDataPointResponse(p *repository.HealthDataPoint) DataPointResponse {
	return DataPointResponse{
		ID:           p.ID,
		MetricType:   p.MetricType,
		ValueNumeric: p.ValueNumeric,
		ValueJSON:    p.ValueJSON,
		Unit:         p.Unit,
		RecordedAt:   p.RecordedAt.UTC(),
		ReceivedAt:   p.ReceivedAt.UTC(),
		DeviceInfo:   p.DeviceInfo,
		SourceApp:    p.SourceApp,
		UserID:       p.UserID,
		Metadata:     p.Metadata,
		CreatedAt:    p.CreatedAt.UTC(),
	}
}
