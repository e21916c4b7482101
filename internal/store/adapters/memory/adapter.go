// Package memory implementa un adapter en memoria para desarrollo y tests.
// Los datos se pierden al cerrar el proceso.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
	"github.com/dropDatabas3/healthhook/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(_ context.Context, _ store.AdapterConfig) (store.AdapterConnection, error) {
	return New(), nil
}

// Connection guarda todo detrás de un único mutex: RecordUsage es
// read-modify-write y tiene que ser atómico igual que en SQL.
type Connection struct {
	mu     sync.RWMutex
	keys   map[string]*repository.APIKey
	points []repository.HealthDataPoint
	now    func() time.Time
}

// New crea una conexión vacía.
func New() *Connection {
	return &Connection{
		keys: make(map[string]*repository.APIKey),
		now:  time.Now,
	}
}

func (c *Connection) Name() string                 { return "memory" }
func (c *Connection) Ping(_ context.Context) error { return nil }
func (c *Connection) Close() error                 { return nil }

func (c *Connection) APIKeys() repository.APIKeyRepository        { return (*apiKeyRepo)(c) }
func (c *Connection) HealthData() repository.HealthDataRepository { return (*healthRepo)(c) }

// ─── api keys ───

type apiKeyRepo Connection

func cloneKey(k *repository.APIKey) *repository.APIKey {
	cp := *k
	if k.Permissions != nil {
		cp.Permissions = append([]string(nil), k.Permissions...)
	}
	cp.Metadata = cloneMap(k.Metadata)
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (r *apiKeyRepo) Create(_ context.Context, in repository.CreateAPIKeyInput) (*repository.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range r.keys {
		if k.KeyHash == in.KeyHash {
			return nil, repository.ErrConflict
		}
	}
	now := r.now().UTC()
	perms := in.Permissions
	if perms == nil {
		perms = []string{}
	}
	k := &repository.APIKey{
		ID:          uuid.NewString(),
		KeyHash:     in.KeyHash,
		KeyPrefix:   in.KeyPrefix,
		Name:        in.Name,
		Description: in.Description,
		IsActive:    true,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
		Permissions: perms,
		Metadata:    in.Metadata,
	}
	r.keys[k.ID] = cloneKey(k)
	return k, nil
}

func (r *apiKeyRepo) GetByID(_ context.Context, id string) (*repository.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneKey(k), nil
}

func (r *apiKeyRepo) List(_ context.Context) ([]repository.APIKey, error) {
	return r.filter(func(*repository.APIKey) bool { return true }), nil
}

func (r *apiKeyRepo) ListActive(_ context.Context, prefix string) ([]repository.APIKey, error) {
	return r.filter(func(k *repository.APIKey) bool {
		if !k.IsActive {
			return false
		}
		return prefix == "" || k.KeyPrefix == "" || k.KeyPrefix == prefix
	}), nil
}

func (r *apiKeyRepo) filter(keep func(*repository.APIKey) bool) []repository.APIKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []repository.APIKey
	for _, k := range r.keys {
		if keep(k) {
			out = append(out, *cloneKey(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *apiKeyRepo) Update(_ context.Context, id string, in repository.UpdateAPIKeyInput) (*repository.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if in.Name != nil {
		k.Name = *in.Name
	}
	switch {
	case in.ClearDescription:
		k.Description = nil
	case in.Description != nil:
		d := *in.Description
		k.Description = &d
	}
	switch {
	case in.ClearExpiresAt:
		k.ExpiresAt = nil
	case in.ExpiresAt != nil:
		e := *in.ExpiresAt
		k.ExpiresAt = &e
	}
	if in.Permissions != nil {
		k.Permissions = append([]string{}, (*in.Permissions)...)
	}
	if in.Metadata != nil {
		k.Metadata = cloneMap(in.Metadata)
	}
	k.UpdatedAt = r.now().UTC()
	return cloneKey(k), nil
}

func (r *apiKeyRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[id]
	if !ok {
		return repository.ErrNotFound
	}
	k.IsActive = false
	k.UpdatedAt = r.now().UTC()
	return nil
}

func (r *apiKeyRepo) RecordUsage(_ context.Context, id string, at time.Time) (*repository.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[id]
	if !ok || !k.IsActive {
		return nil, repository.ErrNotFound
	}
	k.UsageCount++
	used := at.UTC()
	k.LastUsedAt = &used
	return cloneKey(k), nil
}

// ─── health data ───

type healthRepo Connection

// clonePoint copia maps y punteros: lo guardado no comparte memoria con el caller.
func clonePoint(p *repository.HealthDataPoint) repository.HealthDataPoint {
	cp := *p
	cp.ValueNumeric = clonePtr(p.ValueNumeric)
	cp.ValueJSON = cloneMap(p.ValueJSON)
	cp.Unit = clonePtr(p.Unit)
	cp.DeviceInfo = clonePtr(p.DeviceInfo)
	cp.SourceApp = clonePtr(p.SourceApp)
	cp.UserID = clonePtr(p.UserID)
	cp.Metadata = cloneMap(p.Metadata)
	return cp
}

func (r *healthRepo) Insert(_ context.Context, p *repository.HealthDataPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.ID = uuid.NewString()
	p.CreatedAt = r.now().UTC()
	r.points = append(r.points, clonePoint(p))
	return nil
}

func (r *healthRepo) Query(_ context.Context, f repository.HealthDataFilter) ([]repository.HealthDataPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []repository.HealthDataPoint
	for i := range r.points {
		p := &r.points[i]
		if f.UserID != nil && (p.UserID == nil || *p.UserID != *f.UserID) {
			continue
		}
		if f.MetricType != nil && p.MetricType != *f.MetricType {
			continue
		}
		out = append(out, clonePoint(p))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Len retorna la cantidad de mediciones guardadas (tests).
func (c *Connection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points)
}
