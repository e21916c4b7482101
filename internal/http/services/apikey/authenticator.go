package apikey

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	"github.com/dropDatabas3/healthhook/internal/metrics"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"
)

var (
	// ErrKeyRequired: el request no trae ningún token.
	ErrKeyRequired = errors.New("api key required")
	// ErrKeyDeactivated: la key se revocó entre la validación y el registro de uso.
	ErrKeyDeactivated = errors.New("api key deactivated")
)

// Authenticator decide si un token autoriza un request protegido y
// registra el uso de la key.
type Authenticator interface {
	// Authenticate retorna la key ya con el uso registrado, o uno de
	// ErrKeyRequired, ErrKeyInvalid, ErrKeyExpired, ErrKeyDeactivated.
	Authenticate(ctx context.Context, token string) (*repository.APIKey, error)
}

type authenticator struct {
	validator *Validator
	repo      repository.APIKeyRepository
	now       func() time.Time
}

func NewAuthenticator(v *Validator, repo repository.APIKeyRepository) Authenticator {
	return &authenticator{validator: v, repo: repo, now: time.Now}
}

func (a *authenticator) Authenticate(ctx context.Context, token string) (*repository.APIKey, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("apikeys.auth"),
		logger.Op("Authenticate"),
	)

	if token == "" {
		metrics.AuthDecisions.WithLabelValues("missing").Inc()
		return nil, ErrKeyRequired
	}

	key, err := a.validator.Validate(ctx, token)
	switch {
	case errors.Is(err, ErrKeyInvalid):
		metrics.AuthDecisions.WithLabelValues("invalid").Inc()
		log.Info("api key rejected", logger.Reason("invalid"))
		return nil, err
	case errors.Is(err, ErrKeyExpired):
		metrics.AuthDecisions.WithLabelValues("expired").Inc()
		log.Info("api key rejected", logger.Reason("expired"), logger.APIKeyID(key.ID))
		return nil, err
	case err != nil:
		metrics.AuthDecisions.WithLabelValues("error").Inc()
		return nil, err
	}

	updated, err := a.repo.RecordUsage(ctx, key.ID, a.now().UTC())
	if err != nil {
		if repository.IsNotFound(err) {
			metrics.AuthDecisions.WithLabelValues("deactivated").Inc()
			log.Info("api key rejected", logger.Reason("deactivated"), logger.APIKeyID(key.ID))
			return nil, ErrKeyDeactivated
		}
		metrics.AuthDecisions.WithLabelValues("error").Inc()
		log.Error("failed to record api key usage", logger.APIKeyID(key.ID), logger.Err(err))
		return nil, err
	}

	metrics.AuthDecisions.WithLabelValues("ok").Inc()
	return updated, nil
}
