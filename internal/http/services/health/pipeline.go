// Package health contiene el pipeline de ingesta de mediciones y la
// consulta de las ya guardadas.
package health

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	dto "github.com/dropDatabas3/healthhook/internal/http/dto/health"
	"github.com/dropDatabas3/healthhook/internal/metrics"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"
	"github.com/dropDatabas3/healthhook/internal/publish"
)

var (
	// ErrValidation: la entrada no cumple el formato de una medición.
	ErrValidation = errors.New("health: invalid data point")
	// ErrPersistence: el store rechazó o no pudo guardar la medición.
	ErrPersistence = errors.New("health: persist failed")
)

// Estado de cada entrada del batch.
const (
	StatusSuccess          = "success"
	StatusValidationFailed = "validation_failed"
	StatusPersistFailed    = "persist_failed"
	StatusAbandoned        = "abandoned"
)

const (
	unitMaxLen      = 50
	sourceAppMaxLen = 100

	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// ItemResult resultado de una entrada, en el mismo orden del batch.
type ItemResult struct {
	Index      int
	MetricType string
	Status     string
	// ID de la medición guardada (solo si Status == success).
	ID  string
	Err error
}

// Result resumen del batch. Success + Failed == len(Items) siempre.
type Result struct {
	Success int
	Failed  int
	Items   []ItemResult
}

// Publisher reenvía una medición ya guardada.
type Publisher interface {
	PublishHealthDataPoint(ctx context.Context, p *repository.HealthDataPoint) (publish.Outcome, error)
}

// QueryFilter filtros de GET /health/data. Se pueden combinar.
type QueryFilter struct {
	UserID     *string
	MetricType *string
	Limit      int
}

// Pipeline procesa batches de mediciones.
type Pipeline interface {
	Process(ctx context.Context, entries []json.RawMessage) Result
	Query(ctx context.Context, f QueryFilter) ([]repository.HealthDataPoint, error)
}

type pipeline struct {
	repo      repository.HealthDataRepository
	publisher Publisher
	now       func() time.Time
}

// NewPipeline crea el pipeline. publisher puede ser nil (no se reenvía nada).
func NewPipeline(repo repository.HealthDataRepository, publisher Publisher) Pipeline {
	return &pipeline{repo: repo, publisher: publisher, now: time.Now}
}

// Process valida, guarda y reenvía cada entrada en orden. Una entrada que
// falla no afecta a las demás. Si ctx se cancela, las entradas pendientes
// quedan como abandoned; las ya guardadas no se revierten.
func (p *pipeline) Process(ctx context.Context, entries []json.RawMessage) Result {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("health.pipeline"),
		logger.Op("Process"),
	)
	metrics.IngestBatchSize.Observe(float64(len(entries)))

	res := Result{Items: make([]ItemResult, 0, len(entries))}
	for i, raw := range entries {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(entries); j++ {
				res.Items = append(res.Items, ItemResult{Index: j, Status: StatusAbandoned, Err: err})
			}
			abandoned := len(entries) - i
			res.Failed += abandoned
			metrics.IngestPoints.WithLabelValues(StatusAbandoned).Add(float64(abandoned))
			log.Warn("batch abandoned", logger.Count(abandoned), logger.Err(err))
			break
		}

		item := p.processOne(ctx, i, raw)
		res.Items = append(res.Items, item)
		metrics.IngestPoints.WithLabelValues(item.Status).Inc()
		if item.Status == StatusSuccess {
			res.Success++
			continue
		}
		res.Failed++
		log.Warn("data point failed",
			logger.Index(i), logger.MetricType(item.MetricType), logger.Reason(item.Status), logger.Err(item.Err))
	}

	log.Info("batch processed",
		logger.Count(len(entries)), logger.Int("successful", res.Success), logger.Int("failed", res.Failed))
	return res
}

func (p *pipeline) processOne(ctx context.Context, i int, raw json.RawMessage) ItemResult {
	item := ItemResult{Index: i}

	point, metricType, err := p.build(raw)
	item.MetricType = metricType
	if err != nil {
		item.Status = StatusValidationFailed
		item.Err = err
		return item
	}

	if err := p.repo.Insert(ctx, point); err != nil {
		item.Status = StatusPersistFailed
		item.Err = fmt.Errorf("%w: %v", ErrPersistence, err)
		return item
	}
	item.Status = StatusSuccess
	item.ID = point.ID

	if p.publisher != nil {
		if _, err := p.publisher.PublishHealthDataPoint(ctx, point); err != nil {
			logger.From(ctx).Warn("forward failed",
				logger.ID(point.ID), logger.MetricType(metricType), logger.Err(err))
		}
	}
	return item
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// build decodifica y valida una entrada. Retorna el metricType crudo para
// poder loguearlo aunque la entrada sea inválida.
func (p *pipeline) build(raw json.RawMessage) (*repository.HealthDataPoint, string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, "", invalid("data point must be an object")
	}

	var in dto.DataPoint
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, "", invalid("decode: %v", err)
	}

	mt, err := repository.ParseMetricType(in.MetricType)
	if err != nil {
		return nil, in.MetricType, invalid("unknown metricType %q", in.MetricType)
	}
	recordedAt, err := ParseTimestamp(in.RecordedAt)
	if err != nil {
		return nil, in.MetricType, invalid("recordedAt: %v", err)
	}
	valueJSON, err := objectOrNil(in.ValueJSON)
	if err != nil {
		return nil, in.MetricType, invalid("valueJson: %v", err)
	}
	metadata, err := objectOrNil(in.Metadata)
	if err != nil {
		return nil, in.MetricType, invalid("metadata: %v", err)
	}
	if in.Unit != nil && utf8.RuneCountInString(*in.Unit) > unitMaxLen {
		return nil, in.MetricType, invalid("unit longer than %d characters", unitMaxLen)
	}
	if in.SourceApp != nil && utf8.RuneCountInString(*in.SourceApp) > sourceAppMaxLen {
		return nil, in.MetricType, invalid("sourceApp longer than %d characters", sourceAppMaxLen)
	}

	return &repository.HealthDataPoint{
		MetricType:   mt,
		ValueNumeric: in.ValueNumeric,
		ValueJSON:    valueJSON,
		Unit:         in.Unit,
		RecordedAt:   recordedAt.UTC(),
		ReceivedAt:   p.now().UTC(),
		DeviceInfo:   in.DeviceInfo,
		SourceApp:    in.SourceApp,
		UserID:       in.UserID,
		Metadata:     metadata,
	}, in.MetricType, nil
}

// objectOrNil acepta ausente, null o un objeto JSON.
func objectOrNil(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '{' {
		return nil, errors.New("must be an object")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// layouts ISO-8601 aceptados para recordedAt, del más al menos común.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parsea un timestamp ISO-8601. Sin zona se asume UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("required")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an ISO-8601 timestamp", s)
}

// NormalizeLimit aplica default y tope.
func NormalizeLimit(n int) int {
	if n <= 0 {
		return DefaultQueryLimit
	}
	if n > MaxQueryLimit {
		return MaxQueryLimit
	}
	return n
}

func (p *pipeline) Query(ctx context.Context, f QueryFilter) ([]repository.HealthDataPoint, error) {
	filter := repository.HealthDataFilter{
		UserID: f.UserID,
		Limit:  NormalizeLimit(f.Limit),
	}
	if f.MetricType != nil {
		mt, err := repository.ParseMetricType(*f.MetricType)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown metricType %q", repository.ErrInvalidInput, *f.MetricType)
		}
		filter.MetricType = &mt
	}

	points, err := p.repo.Query(ctx, filter)
	if err != nil {
		logger.From(ctx).Error("failed to query data points",
			logger.Layer("service"), logger.Component("health.pipeline"), logger.Op("Query"), logger.Err(err))
		return nil, err
	}
	return points, nil
}
