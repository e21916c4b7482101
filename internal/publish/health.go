package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
)

// AnonymousUser es el segmento de topic para mediciones sin userId.
const AnonymousUser = "anonymous"

// HealthTopic arma health/user/{userId|anonymous}/{metric en minúsculas}.
func HealthTopic(userID *string, mt repository.MetricType) string {
	uid := AnonymousUser
	if userID != nil && *userID != "" {
		uid = *userID
	}
	return fmt.Sprintf("health/user/%s/%s", uid, mt.Slug())
}

// HealthPayload es el JSON que reciben los consumidores. No incluye userId:
// ya va en el topic.
type HealthPayload struct {
	ID           string                 `json:"id"`
	MetricType   repository.MetricType  `json:"metricType"`
	ValueNumeric *float64               `json:"valueNumeric,omitempty"`
	ValueJSON    map[string]any         `json:"valueJson,omitempty"`
	Unit         *string                `json:"unit,omitempty"`
	RecordedAt   time.Time              `json:"recordedAt"`
	ReceivedAt   time.Time              `json:"receivedAt"`
	DeviceInfo   *repository.DeviceInfo `json:"deviceInfo,omitempty"`
	SourceApp    *string                `json:"sourceApp,omitempty"`
	Metadata     map[string]any         `json:"metadata,omitempty"`
}

// NewHealthPayload arma el payload desde una medición persistida.
func NewHealthPayload(p *repository.HealthDataPoint) HealthPayload {
	return HealthPayload{
		ID:           p.ID,
		MetricType:   p.MetricType,
		ValueNumeric: p.ValueNumeric,
		ValueJSON:    p.ValueJSON,
		Unit:         p.Unit,
		RecordedAt:   p.RecordedAt.UTC(),
		ReceivedAt:   p.ReceivedAt.UTC(),
		DeviceInfo:   p.DeviceInfo,
		SourceApp:    p.SourceApp,
		Metadata:     p.Metadata,
	}
}

// PublishHealthDataPoint publica p en su topic con las opciones por defecto.
// Solo retorna error si el payload no se puede serializar.
func (s *Sink) PublishHealthDataPoint(ctx context.Context, p *repository.HealthDataPoint) (Outcome, error) {
	payload, err := json.Marshal(NewHealthPayload(p))
	if err != nil {
		return Failed, fmt.Errorf("publish: encode payload: %w", err)
	}
	return s.Publish(ctx, HealthTopic(p.UserID, p.MetricType), payload, PublishOptions{}), nil
}
