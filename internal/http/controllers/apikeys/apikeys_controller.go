// Package apikeys contiene el controller del admin de API keys.
package apikeys

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	dto "github.com/dropDatabas3/healthhook/internal/http/dto/apikey"
	httperrors "github.com/dropDatabas3/healthhook/internal/http/errors"
	"github.com/dropDatabas3/healthhook/internal/http/helpers"
	svc "github.com/dropDatabas3/healthhook/internal/http/services/apikey"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"
)

const maxBodyBytes = 64 << 10

// Controller maneja las rutas /api-keys
type Controller struct {
	service svc.KeyService
}

func NewController(service svc.KeyService) *Controller {
	return &Controller{service: service}
}

// mapError traduce errores del service a AppError.
func mapError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return httperrors.ErrAPIKeyNotFound
	case errors.Is(err, repository.ErrInvalidInput):
		return httperrors.ErrInvalidFormat.WithDetail(err.Error())
	default:
		return err
	}
}

// Create maneja POST /api-keys
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRequest
	if err := helpers.ReadJSON(w, r, &req, maxBodyBytes); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		httperrors.WriteError(w, r, httperrors.ErrInvalidFormat.WithDetail(err.Error()))
		return
	}

	token, key, err := c.service.Issue(r.Context(), svc.IssueInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
		ExpiresAt:   req.ExpiresAt,
		Metadata:    req.Metadata,
	})
	if err != nil {
		httperrors.WriteError(w, r, mapError(err))
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, dto.CreateResponse{
		APIKey:        token,
		APIKeyDetails: dto.NewKeyResponse(key),
	})
}

// List maneja GET /api-keys
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	keys, err := c.service.List(r.Context())
	if err != nil {
		httperrors.WriteError(w, r, mapError(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.NewKeyList(keys))
}

// Get maneja GET /api-keys/{id}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	key, err := c.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httperrors.WriteError(w, r, mapError(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.NewKeyResponse(key))
}

// Update maneja PUT /api-keys/{id}
func (c *Controller) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req dto.UpdateRequest
	if err := helpers.ReadJSON(w, r, &req, maxBodyBytes); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		httperrors.WriteError(w, r, httperrors.ErrInvalidFormat.WithDetail(err.Error()))
		return
	}

	key, err := c.service.Update(r.Context(), id, req.ToInput())
	if err != nil {
		httperrors.WriteError(w, r, mapError(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.NewKeyResponse(key))
}

// Revoke maneja DELETE /api-keys/{id}. Siempre 204, exista o no.
func (c *Controller) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.service.Revoke(r.Context(), id); err != nil {
		logger.From(r.Context()).Error("revoke failed", logger.Layer("controller"), logger.APIKeyID(id), logger.Err(err))
		httperrors.WriteError(w, r, mapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
