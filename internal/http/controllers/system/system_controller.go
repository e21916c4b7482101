// Package system contiene los controllers de liveness y readiness.
package system

import (
	"net/http"

	dto "github.com/dropDatabas3/healthhook/internal/http/dto/system"
	"github.com/dropDatabas3/healthhook/internal/http/helpers"
	svc "github.com/dropDatabas3/healthhook/internal/http/services/system"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"
)

type Controller struct {
	readiness svc.ReadinessService
}

func NewController(readiness svc.ReadinessService) *Controller {
	return &Controller{readiness: readiness}
}

// Healthz maneja GET /healthz. Solo indica que el proceso responde.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, dto.LiveResponse{Status: "ok"})
}

// Readyz maneja GET /readyz
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := c.readiness.Check(r.Context())

	status := http.StatusOK
	if resp.Status == "unavailable" {
		status = http.StatusServiceUnavailable
	}
	logger.From(r.Context()).Debug("readiness checked",
		logger.Layer("controller"), logger.String("status", resp.Status))
	helpers.WriteJSON(w, status, resp)
}
