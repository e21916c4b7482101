// Package system contiene el service de readiness.
package system

import (
	"context"
	"time"

	dto "github.com/dropDatabas3/healthhook/internal/http/dto/system"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"
	"github.com/dropDatabas3/healthhook/internal/publish"
)

// ReadinessService reporta si el servicio puede atender tráfico.
type ReadinessService interface {
	Check(ctx context.Context) dto.ReadyResponse
}

// SinkStatus abstrae el publish sink para readiness.
type SinkStatus interface {
	State() publish.State
	Driver() string
}

// Deps contiene las dependencias inyectables.
type Deps struct {
	StoreCheck func(ctx context.Context) error // crítico
	CacheCheck func(ctx context.Context) error // opcional
	Sink       SinkStatus                      // nil => publish deshabilitado
	Timeout    time.Duration
}

type readinessService struct {
	deps Deps
}

func NewReadinessService(deps Deps) ReadinessService {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}
	return &readinessService{deps: deps}
}

// Check: store caído => unavailable; sink o cache caídos => degraded (la
// ingesta sigue guardando aunque no se reenvíe).
func (s *readinessService) Check(ctx context.Context) dto.ReadyResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("readiness"),
		logger.Op("Check"),
	)

	resp := dto.ReadyResponse{
		Status:     "ready",
		Components: make(map[string]dto.ComponentStatus),
		Timestamp:  time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()

	// 1) Store (crítico)
	switch {
	case s.deps.StoreCheck == nil:
		resp.Components["store"] = dto.ComponentStatus{Status: "error", Message: "not initialized"}
		resp.Status = "unavailable"
	default:
		if err := s.deps.StoreCheck(ctx); err != nil {
			resp.Components["store"] = dto.ComponentStatus{Status: "error", Message: err.Error()}
			resp.Status = "unavailable"
			log.Error("store unavailable", logger.Err(err))
		} else {
			resp.Components["store"] = dto.ComponentStatus{Status: "ok"}
		}
	}

	// 2) Cache
	if s.deps.CacheCheck != nil {
		if err := s.deps.CacheCheck(ctx); err != nil {
			resp.Components["cache"] = dto.ComponentStatus{Status: "error", Message: err.Error()}
			s.degrade(&resp)
			log.Warn("cache unavailable", logger.Err(err))
		} else {
			resp.Components["cache"] = dto.ComponentStatus{Status: "ok"}
		}
	}

	// 3) Publish sink
	switch {
	case s.deps.Sink == nil:
		resp.Components["publish"] = dto.ComponentStatus{Status: "disabled"}
	case s.deps.Sink.State() == publish.StateConnected:
		resp.Components["publish"] = dto.ComponentStatus{Status: "ok", Message: s.deps.Sink.Driver()}
	default:
		resp.Components["publish"] = dto.ComponentStatus{
			Status:  "error",
			Message: s.deps.Sink.Driver() + ": " + s.deps.Sink.State().String(),
		}
		s.degrade(&resp)
	}

	return resp
}

func (s *readinessService) degrade(resp *dto.ReadyResponse) {
	if resp.Status == "ready" {
		resp.Status = "degraded"
	}
}
