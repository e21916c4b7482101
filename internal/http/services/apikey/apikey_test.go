package apikey

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/healthhook/internal/cache"
	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	tokens "github.com/dropDatabas3/healthhook/internal/security/apikey"
	"github.com/dropDatabas3/healthhook/internal/store/adapters/memory"
)

func newTestServices(t *testing.T, c cache.Client) (Services, repository.APIKeyRepository) {
	t.Helper()
	repo := memory.New().APIKeys()
	return NewServices(Deps{
		Repo:     repo,
		HashCost: bcrypt.MinCost,
		Cache:    c,
		CacheTTL: time.Minute,
	}), repo
}

func strPtr(s string) *string { return &s }

func TestIssueAndValidate(t *testing.T) {
	svcs, _ := newTestServices(t, nil)
	ctx := context.Background()

	token, key, err := svcs.Keys.Issue(ctx, IssueInput{
		Name:        "Android app",
		Permissions: []string{"health:write"},
	})
	require.NoError(t, err)

	assert.True(t, tokens.WellFormed(token))
	assert.NotEqual(t, token, key.KeyHash)
	assert.Equal(t, tokens.DisplayPrefix(token), key.KeyPrefix)
	assert.True(t, key.IsActive)
	assert.Zero(t, key.UsageCount)
	assert.Nil(t, key.LastUsedAt)

	got, err := svcs.Validator.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
}

func TestIssueShortNameAndUsage(t *testing.T) {
	svcs, repo := newTestServices(t, nil)
	ctx := context.Background()

	token, key, err := svcs.Keys.Issue(ctx, IssueInput{Name: "K1"})
	require.NoError(t, err)
	assert.Equal(t, "K1", key.Name)
	assert.Zero(t, key.UsageCount)

	got, err := svcs.Validator.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "K1", got.Name)

	_, err = svcs.Authenticator.Authenticate(ctx, token)
	require.NoError(t, err)
	stored, err := repo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.UsageCount)
}

func TestIssueValidation(t *testing.T) {
	svcs, _ := newTestServices(t, nil)
	long := strings.Repeat("x", 256)

	cases := map[string]IssueInput{
		"missing name":     {Name: "   "},
		"long description": {Name: "valid", Description: strPtr(long)},
		"empty permission": {Name: "valid", Permissions: []string{"read", " "}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svcs.Keys.Issue(context.Background(), in)
			assert.ErrorIs(t, err, repository.ErrInvalidInput)
		})
	}
}

func TestValidateUnknownToken(t *testing.T) {
	svcs, _ := newTestServices(t, nil)
	ctx := context.Background()
	_, _, err := svcs.Keys.Issue(ctx, IssueInput{Name: "one"})
	require.NoError(t, err)

	other, err := tokens.Generate()
	require.NoError(t, err)

	_, err = svcs.Validator.Validate(ctx, other)
	assert.ErrorIs(t, err, ErrKeyInvalid)
	_, err = svcs.Validator.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrKeyInvalid)
}

func TestValidateExpired(t *testing.T) {
	svcs, _ := newTestServices(t, nil)
	past := time.Now().Add(-time.Hour)

	token, _, err := svcs.Keys.Issue(context.Background(), IssueInput{Name: "old", ExpiresAt: &past})
	require.NoError(t, err)

	_, err = svcs.Validator.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrKeyExpired)

	_, err = svcs.Authenticator.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrKeyExpired)
}

func TestValidateKeyWithoutPrefix(t *testing.T) {
	svcs, repo := newTestServices(t, nil)
	ctx := context.Background()

	const legacy = "legacy-token-1234"
	hash, err := tokens.NewHasher(bcrypt.MinCost).Hash(legacy)
	require.NoError(t, err)
	created, err := repo.Create(ctx, repository.CreateAPIKeyInput{KeyHash: hash, Name: "legacy"})
	require.NoError(t, err)

	got, err := svcs.Validator.Validate(ctx, legacy)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestAuthenticateRecordsUsage(t *testing.T) {
	svcs, repo := newTestServices(t, nil)
	ctx := context.Background()

	token, key, err := svcs.Keys.Issue(ctx, IssueInput{Name: "usage"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := svcs.Authenticator.Authenticate(ctx, token)
		require.NoError(t, err)
	}

	stored, err := repo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.UsageCount)
	assert.NotNil(t, stored.LastUsedAt)
}

func TestAuthenticateMissingToken(t *testing.T) {
	svcs, _ := newTestServices(t, nil)
	_, err := svcs.Authenticator.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrKeyRequired)
}

func TestConcurrentAuthentications(t *testing.T) {
	svcs, repo := newTestServices(t, nil)
	ctx := context.Background()

	token, key, err := svcs.Keys.Issue(ctx, IssueInput{Name: "busy"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svcs.Authenticator.Authenticate(ctx, token)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := repo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	assert.EqualValues(t, n, stored.UsageCount)
}

func TestRevoke(t *testing.T) {
	svcs, _ := newTestServices(t, nil)
	ctx := context.Background()

	token, key, err := svcs.Keys.Issue(ctx, IssueInput{Name: "revoked"})
	require.NoError(t, err)

	require.NoError(t, svcs.Keys.Revoke(ctx, key.ID))
	require.NoError(t, svcs.Keys.Revoke(ctx, key.ID))
	require.NoError(t, svcs.Keys.Revoke(ctx, "does-not-exist"))

	_, err = svcs.Authenticator.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrKeyInvalid)

	got, err := svcs.Keys.Get(ctx, key.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestCachedTokenIsRechecked(t *testing.T) {
	svcs, _ := newTestServices(t, cache.NewMemory("test:"))
	ctx := context.Background()

	token, key, err := svcs.Keys.Issue(ctx, IssueInput{Name: "cached"})
	require.NoError(t, err)

	_, err = svcs.Authenticator.Authenticate(ctx, token)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	_, err = svcs.Keys.Update(ctx, key.ID, repository.UpdateAPIKeyInput{ExpiresAt: &past})
	require.NoError(t, err)
	_, err = svcs.Authenticator.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrKeyExpired)

	_, err = svcs.Keys.Update(ctx, key.ID, repository.UpdateAPIKeyInput{ClearExpiresAt: true})
	require.NoError(t, err)
	require.NoError(t, svcs.Keys.Revoke(ctx, key.ID))
	_, err = svcs.Authenticator.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrKeyInvalid)
}

// revokingRepo desactiva la key justo antes de registrar el uso.
type revokingRepo struct {
	repository.APIKeyRepository
}

func (r revokingRepo) RecordUsage(ctx context.Context, id string, at time.Time) (*repository.APIKey, error) {
	if err := r.Deactivate(ctx, id); err != nil {
		return nil, err
	}
	return r.APIKeyRepository.RecordUsage(ctx, id, at)
}

func TestAuthenticateDeactivatedDuringRequest(t *testing.T) {
	repo := revokingRepo{memory.New().APIKeys()}
	hasher := tokens.NewHasher(bcrypt.MinCost)
	keys := NewKeyService(repo, hasher)
	auth := NewAuthenticator(NewValidator(repo, hasher), repo)

	token, _, err := keys.Issue(context.Background(), IssueInput{Name: "racy"})
	require.NoError(t, err)

	_, err = auth.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrKeyDeactivated)
}

func TestUpdate(t *testing.T) {
	svcs, _ := newTestServices(t, nil)
	ctx := context.Background()

	_, key, err := svcs.Keys.Issue(ctx, IssueInput{Name: "before", Description: strPtr("desc")})
	require.NoError(t, err)

	perms := []string{"health:read"}
	got, err := svcs.Keys.Update(ctx, key.ID, repository.UpdateAPIKeyInput{
		Name:             strPtr("  after  "),
		ClearDescription: true,
		Permissions:      &perms,
	})
	require.NoError(t, err)
	assert.Equal(t, "after", got.Name)
	assert.Nil(t, got.Description)
	assert.Equal(t, perms, got.Permissions)

	_, err = svcs.Keys.Update(ctx, key.ID, repository.UpdateAPIKeyInput{Name: strPtr(" ")})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = svcs.Keys.Update(ctx, "missing", repository.UpdateAPIKeyInput{Name: strPtr("valid")})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// slowRepo demora ListActive hasta que se cierre release o se cancele el ctx.
type slowRepo struct {
	repository.APIKeyRepository
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *slowRepo) ListActive(ctx context.Context, prefix string) ([]repository.APIKey, error) {
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.APIKeyRepository.ListActive(ctx, prefix)
}

func TestSharedLoadSurvivesCancelledCaller(t *testing.T) {
	repo := &slowRepo{
		APIKeyRepository: memory.New().APIKeys(),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	hasher := tokens.NewHasher(bcrypt.MinCost)
	keys := NewKeyService(repo, hasher)
	v := NewValidator(repo, hasher)

	token, key, err := keys.Issue(context.Background(), IssueInput{Name: "shared"})
	require.NoError(t, err)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := v.Validate(ctxA, token)
		errA <- err
	}()
	<-repo.started

	type result struct {
		key *repository.APIKey
		err error
	}
	resB := make(chan result, 1)
	go func() {
		k, err := v.Validate(context.Background(), token)
		resB <- result{k, err}
	}()

	// B se suma a la carga en vuelo antes de que A se cancele
	time.Sleep(50 * time.Millisecond)
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(repo.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, key.ID, b.key.ID)
}

// staleRepo bloquea la primera carga y la devuelve vacía, como si hubiera
// empezado antes de que se emitiera la key.
type staleRepo struct {
	repository.APIKeyRepository
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	loads   int
}

func (r *staleRepo) ListActive(ctx context.Context, prefix string) ([]repository.APIKey, error) {
	r.mu.Lock()
	r.loads++
	first := r.loads == 1
	r.mu.Unlock()
	if first {
		close(r.started)
		<-r.release
		return nil, nil
	}
	return r.APIKeyRepository.ListActive(ctx, prefix)
}

func TestSharedStaleLoadIsRetried(t *testing.T) {
	repo := &staleRepo{
		APIKeyRepository: memory.New().APIKeys(),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	hasher := tokens.NewHasher(bcrypt.MinCost)
	v := NewValidator(repo, hasher)

	token, key, err := NewKeyService(repo, hasher).Issue(context.Background(), IssueInput{Name: "fresh"})
	require.NoError(t, err)

	const n = 3
	errs := make(chan error, n)
	validate := func() {
		got, err := v.Validate(context.Background(), token)
		if err == nil && got.ID != key.ID {
			err = assert.AnError
		}
		errs <- err
	}
	go validate()
	<-repo.started
	for i := 1; i < n; i++ {
		go validate()
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.release)

	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}
}
