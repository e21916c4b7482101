// Package system contiene los DTOs de liveness y readiness.
package system

import "time"

// ComponentStatus estado de un componente.
type ComponentStatus struct {
	Status  string `json:"status"` // ok | error | disabled
	Message string `json:"message,omitempty"`
}

// ReadyResponse respuesta de GET /readyz.
type ReadyResponse struct {
	Status     string                     `json:"status"` // ready | degraded | unavailable
	Components map[string]ComponentStatus `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// LiveResponse respuesta de GET /healthz.
type LiveResponse struct {
	Status string `json:"status"`
}
