package apikey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/healthhook/internal/cache"
	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	"github.com/dropDatabas3/healthhook/internal/observability/logger"
	tokens "github.com/dropDatabas3/healthhook/internal/security/apikey"
)

var (
	// ErrKeyInvalid: ningún registro activo coincide con el token.
	ErrKeyInvalid = errors.New("api key invalid")
	// ErrKeyExpired: coincide pero expiró.
	ErrKeyExpired = errors.New("api key expired")
)

const (
	cacheKeyPrefix = "apikey:"

	// defaultLoadTimeout acota la carga compartida de candidatos.
	defaultLoadTimeout = 10 * time.Second
)

// Validator resuelve un token en claro a su registro.
//
// Carga las keys activas (acotadas por el prefijo público) y compara con
// bcrypt hasta encontrar una. Si hay cache, recuerda token -> id para no
// repetir el scan; el registro igual se relee y rechequea en cada llamada.
type Validator struct {
	repo   repository.APIKeyRepository
	hasher *tokens.Hasher
	cache  cache.Client
	ttl    time.Duration
	group  singleflight.Group
	now    func() time.Time

	loadTimeout time.Duration
}

// ValidatorOption configura un Validator.
type ValidatorOption func(*Validator)

// WithCache habilita el cache de tokens verificados.
func WithCache(c cache.Client, ttl time.Duration) ValidatorOption {
	return func(v *Validator) {
		v.cache = c
		v.ttl = ttl
	}
}

// WithClock reemplaza time.Now (tests).
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

func NewValidator(repo repository.APIKeyRepository, hasher *tokens.Hasher, opts ...ValidatorOption) *Validator {
	v := &Validator{repo: repo, hasher: hasher, now: time.Now, loadTimeout: defaultLoadTimeout}
	for _, o := range opts {
		o(v)
	}
	return v
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Validate retorna el registro activo y vigente del token, ErrKeyExpired o ErrKeyInvalid.
func (v *Validator) Validate(ctx context.Context, token string) (*repository.APIKey, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("apikeys.validator"),
		logger.Op("Validate"),
	)

	if token == "" {
		return nil, ErrKeyInvalid
	}

	if key, ok := v.fromCache(ctx, token); ok {
		return v.check(key)
	}

	prefix := tokens.DisplayPrefix(token)
	candidates, shared, err := v.loadCandidates(ctx, prefix)
	if err != nil {
		log.Error("failed to load candidate keys", logger.Err(err))
		return nil, err
	}
	key := v.scan(ctx, candidates, token)
	if key == nil && shared {
		// la carga compartida pudo empezar antes de que se emitiera la key
		candidates, err = v.repo.ListActive(ctx, prefix)
		if err != nil {
			log.Error("failed to load candidate keys", logger.Err(err))
			return nil, err
		}
		key = v.scan(ctx, candidates, token)
	}
	if key == nil {
		log.Debug("no candidate matched", logger.KeyPrefix(prefix), logger.Count(len(candidates)))
		return nil, ErrKeyInvalid
	}
	return v.check(key)
}

// loadCandidates colapsa cargas concurrentes del mismo prefijo. La carga
// compartida no hereda la cancelación de quien la inició; cada caller deja
// de esperar cuando se cancela su propio ctx.
func (v *Validator) loadCandidates(ctx context.Context, prefix string) ([]repository.APIKey, bool, error) {
	ch := v.group.DoChan(prefix, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.loadTimeout)
		defer cancel()
		return v.repo.ListActive(lctx, prefix)
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		return res.Val.([]repository.APIKey), res.Shared, nil
	}
}

// scan compara con bcrypt y devuelve una copia del registro que coincide.
func (v *Validator) scan(ctx context.Context, candidates []repository.APIKey, token string) *repository.APIKey {
	for i := range candidates {
		k := &candidates[i]
		if !v.hasher.Matches(k.KeyHash, token) {
			continue
		}
		if v.cache != nil {
			if err := v.cache.Set(ctx, cacheKey(token), k.ID, v.ttl); err != nil {
				logger.From(ctx).Warn("token cache set failed", logger.Err(err))
			}
		}
		// copia: el slice puede estar compartido por singleflight
		key := *k
		return &key
	}
	return nil
}

// fromCache devuelve el registro de un token ya verificado, releído del store.
func (v *Validator) fromCache(ctx context.Context, token string) (*repository.APIKey, bool) {
	if v.cache == nil {
		return nil, false
	}
	ck := cacheKey(token)
	id, err := v.cache.Get(ctx, ck)
	if err != nil {
		if !cache.IsNotFound(err) {
			logger.From(ctx).Warn("token cache get failed", logger.Err(err))
		}
		return nil, false
	}

	key, err := v.repo.GetByID(ctx, id)
	if err != nil || !key.IsActive {
		_ = v.cache.Delete(ctx, ck)
		return nil, false
	}
	return key, true
}

func (v *Validator) check(key *repository.APIKey) (*repository.APIKey, error) {
	if !key.IsActive {
		return nil, ErrKeyInvalid
	}
	if key.IsExpired(v.now()) {
		return key, ErrKeyExpired
	}
	return key, nil
}
