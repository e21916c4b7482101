// Package apikey contiene los services de API keys: emisión y administración,
// validación de tokens y autenticación de requests.
package apikey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"
	tokens "github.com/dropDatabas3/healthhook/internal/security/apikey"
)

// KeyService define las operaciones administrativas sobre API keys.
type KeyService interface {
	// Issue crea una key y devuelve el token en claro. Es la única vez que se ve.
	Issue(ctx context.Context, in IssueInput) (string, *repository.APIKey, error)
	Get(ctx context.Context, id string) (*repository.APIKey, error)
	List(ctx context.Context) ([]repository.APIKey, error)
	Update(ctx context.Context, id string, in repository.UpdateAPIKeyInput) (*repository.APIKey, error)
	// Revoke es idempotente: una key inexistente no es error.
	Revoke(ctx context.Context, id string) error
}

// IssueInput datos de una key nueva.
type IssueInput struct {
	Name        string
	Description *string
	Permissions []string
	ExpiresAt   *time.Time
	Metadata    map[string]any
}

const descriptionMaxLen = 255

type keyService struct {
	repo   repository.APIKeyRepository
	hasher *tokens.Hasher
}

// NewKeyService crea el service de administración de keys.
func NewKeyService(repo repository.APIKeyRepository, hasher *tokens.Hasher) KeyService {
	return &keyService{repo: repo, hasher: hasher}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", repository.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// validateName solo exige un nombre; el largo 3-50 es regla del body HTTP.
func validateName(name string) error {
	if name == "" {
		return invalid("name is required")
	}
	return nil
}

func validateDescription(d *string) error {
	if d != nil && utf8.RuneCountInString(*d) > descriptionMaxLen {
		return invalid("description must be at most %d characters", descriptionMaxLen)
	}
	return nil
}

func validatePermissions(perms []string) error {
	for i, p := range perms {
		if strings.TrimSpace(p) == "" {
			return invalid("permissions[%d] must be a non-empty string", i)
		}
	}
	return nil
}

func (s *keyService) Issue(ctx context.Context, in IssueInput) (string, *repository.APIKey, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("apikeys"),
		logger.Op("Issue"),
	)

	in.Name = strings.TrimSpace(in.Name)
	if err := validateName(in.Name); err != nil {
		return "", nil, err
	}
	if err := validateDescription(in.Description); err != nil {
		return "", nil, err
	}
	if err := validatePermissions(in.Permissions); err != nil {
		return "", nil, err
	}

	token, err := tokens.Generate()
	if err != nil {
		log.Error("token generation failed", logger.Err(err))
		return "", nil, err
	}
	hash, err := s.hasher.Hash(token)
	if err != nil {
		log.Error("token hash failed", logger.Err(err))
		return "", nil, err
	}

	key, err := s.repo.Create(ctx, repository.CreateAPIKeyInput{
		KeyHash:     hash,
		KeyPrefix:   tokens.DisplayPrefix(token),
		Name:        in.Name,
		Description: in.Description,
		ExpiresAt:   in.ExpiresAt,
		Permissions: in.Permissions,
		Metadata:    in.Metadata,
	})
	if err != nil {
		log.Error("failed to persist api key", logger.Err(err))
		return "", nil, err
	}

	log.Info("api key issued", logger.APIKeyID(key.ID), logger.KeyPrefix(key.KeyPrefix))
	return token, key, nil
}

func (s *keyService) Get(ctx context.Context, id string) (*repository.APIKey, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *keyService) List(ctx context.Context) ([]repository.APIKey, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		logger.From(ctx).Error("failed to list api keys",
			logger.Layer("service"), logger.Component("apikeys"), logger.Op("List"), logger.Err(err))
		return nil, err
	}
	return keys, nil
}

func (s *keyService) Update(ctx context.Context, id string, in repository.UpdateAPIKeyInput) (*repository.APIKey, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("apikeys"),
		logger.Op("Update"),
		logger.APIKeyID(id),
	)

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		in.Name = &name
	}
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}
	if in.Permissions != nil {
		if err := validatePermissions(*in.Permissions); err != nil {
			return nil, err
		}
	}

	key, err := s.repo.Update(ctx, id, in)
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Error("failed to update api key", logger.Err(err))
		}
		return nil, err
	}
	log.Info("api key updated")
	return key, nil
}

func (s *keyService) Revoke(ctx context.Context, id string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("apikeys"),
		logger.Op("Revoke"),
		logger.APIKeyID(id),
	)

	err := s.repo.Deactivate(ctx, id)
	switch {
	case err == nil:
		log.Info("api key revoked")
		return nil
	case errors.Is(err, repository.ErrNotFound):
		log.Debug("revoke on unknown api key")
		return nil
	default:
		log.Error("failed to revoke api key", logger.Err(err))
		return err
	}
}
