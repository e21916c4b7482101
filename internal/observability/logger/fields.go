package logger

import (
	"time"

	"go.uber.org/zap"
)

// ---- HTTP ----

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func Bytes(v int) zap.Field              { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }

// ---- Sistema ----

// Component identifica el módulo (apikey, ingest, publish...).
func Component(v string) zap.Field { return zap.String("component", v) }

// Op identifica la operación en curso.
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer: handler, service, repository, driver.
func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

// ---- Negocio ----

// APIKeyID identifica la credencial por ID, nunca por el token.
func APIKeyID(v string) zap.Field { return zap.String("api_key_id", v) }

// KeyPrefix es el prefijo público de la key (whk_xxxxxxxx). Seguro para logs.
func KeyPrefix(v string) zap.Field { return zap.String("key_prefix", v) }

func UserID(v string) zap.Field     { return zap.String("user_id", v) }
func MetricType(v string) zap.Field { return zap.String("metric_type", v) }
func Topic(v string) zap.Field      { return zap.String("topic", v) }
func State(v string) zap.Field      { return zap.String("state", v) }
func Driver(v string) zap.Field     { return zap.String("driver", v) }
func Reason(v string) zap.Field     { return zap.String("reason", v) }
func Index(v int) zap.Field         { return zap.Int("index", v) }

// ---- Genéricos ----

func Count(v int) zap.Field             { return zap.Int("count", v) }
func ID(v string) zap.Field             { return zap.String("id", v) }
func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
