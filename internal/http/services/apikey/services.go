package apikey

import (
	"time"

	"github.com/dropDatabas3/healthhook/internal/cache"
	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	tokens "github.com/dropDatabas3/healthhook/internal/security/apikey"
)

// Deps contiene las dependencias para crear los services de API keys.
type Deps struct {
	Repo     repository.APIKeyRepository
	HashCost int
	// Cache opcional de tokens verificados.
	Cache    cache.Client
	CacheTTL time.Duration
}

// Services agrupa los services del dominio api keys.
type Services struct {
	Keys          KeyService
	Validator     *Validator
	Authenticator Authenticator
}

// NewServices crea el agregador.
func NewServices(d Deps) Services {
	hasher := tokens.NewHasher(d.HashCost)

	var opts []ValidatorOption
	if d.Cache != nil {
		opts = append(opts, WithCache(d.Cache, d.CacheTTL))
	}
	v := NewValidator(d.Repo, hasher, opts...)

	return Services{
		Keys:          NewKeyService(d.Repo, hasher),
		Validator:     v,
		Authenticator: NewAuthenticator(v, d.Repo),
	}
}
