// Package logger expone un logger zap global con scoping por contexto.
//
// Inicialización (una vez en main):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
//	defer logger.Sync()
//
// En services y middlewares:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("Ingest"))
//	log.Warn("persist failed", logger.MetricType(mt), logger.Err(err))
//
// Nunca loguear tokens en claro ni payloads de telemetría: solo IDs y tipos.
package logger
