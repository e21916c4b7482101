package repository

import (
	"context"
	"strings"
	"time"
)

// MetricType es el tipo de medición. Conjunto cerrado.
type MetricType string

const (
	MetricHeartRate       MetricType = "HEART_RATE"
	MetricSteps           MetricType = "STEPS"
	MetricSleep           MetricType = "SLEEP"
	MetricWeight          MetricType = "WEIGHT"
	MetricBloodOxygen     MetricType = "BLOOD_OXYGEN"
	MetricTemperature     MetricType = "TEMPERATURE"
	MetricNutrition       MetricType = "NUTRITION"
	MetricExercise        MetricType = "EXERCISE"
	MetricBloodPressure   MetricType = "BLOOD_PRESSURE"
	MetricBloodGlucose    MetricType = "BLOOD_GLUCOSE"
	MetricHydration       MetricType = "HYDRATION"
	MetricMindfulness     MetricType = "MINDFULNESS"
	MetricRespiratoryRate MetricType = "RESPIRATORY_RATE"
	MetricBodyFat         MetricType = "BODY_FAT"
	MetricHeight          MetricType = "HEIGHT"
	MetricDistance        MetricType = "DISTANCE"
	MetricCalories        MetricType = "CALORIES"
	MetricActiveMinutes   MetricType = "ACTIVE_MINUTES"
	MetricStressLevel     MetricType = "STRESS_LEVEL"
)

var metricTypes = map[MetricType]struct{}{
	MetricHeartRate: {}, MetricSteps: {}, MetricSleep: {}, MetricWeight: {},
	MetricBloodOxygen: {}, MetricTemperature: {}, MetricNutrition: {}, MetricExercise: {},
	MetricBloodPressure: {}, MetricBloodGlucose: {}, MetricHydration: {}, MetricMindfulness: {},
	MetricRespiratoryRate: {}, MetricBodyFat: {}, MetricHeight: {}, MetricDistance: {},
	MetricCalories: {}, MetricActiveMinutes: {}, MetricStressLevel: {},
}

// Valid indica si m pertenece al conjunto cerrado.
func (m MetricType) Valid() bool {
	_, ok := metricTypes[m]
	return ok
}

// Slug es la forma usada en topics: heart_rate, steps, ...
func (m MetricType) Slug() string {
	return strings.ToLower(string(m))
}

// ParseMetricType acepta el nombre exacto del enum. ErrInvalidInput si no existe.
func ParseMetricType(s string) (MetricType, error) {
	m := MetricType(strings.TrimSpace(s))
	if !m.Valid() {
		return "", ErrInvalidInput
	}
	return m, nil
}

// DeviceInfo describe el dispositivo que generó la medición.
type DeviceInfo struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	Platform     string `json:"platform,omitempty"`
	OSVersion    string `json:"osVersion,omitempty"`
	AppVersion   string `json:"appVersion,omitempty"`
}

// HealthDataPoint es una medición persistida. Inmutable una vez guardada.
type HealthDataPoint struct {
	ID           string
	MetricType   MetricType
	ValueNumeric *float64
	ValueJSON    map[string]any
	Unit         *string
	RecordedAt   time.Time
	ReceivedAt   time.Time
	DeviceInfo   *DeviceInfo
	SourceApp    *string
	UserID       *string
	Metadata     map[string]any
	CreatedAt    time.Time
}

// HealthDataFilter filtra la consulta de mediciones. Nil = sin filtro.
type HealthDataFilter struct {
	UserID     *string
	MetricType *MetricType
	Limit      int
}

// HealthDataRepository define operaciones sobre mediciones.
type HealthDataRepository interface {
	// Insert persiste p y le asigna ID y CreatedAt.
	Insert(ctx context.Context, p *HealthDataPoint) error

	// Query retorna mediciones ordenadas por recorded_at desc, hasta filter.Limit.
	Query(ctx context.Context, filter HealthDataFilter) ([]HealthDataPoint, error)
}
