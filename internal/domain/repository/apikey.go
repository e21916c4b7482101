package repository

import (
	"context"
	"time"
)

// APIKey es una credencial emitida para un cliente. El token en claro nunca se guarda.
type APIKey struct {
	ID string
	// KeyHash es el hash bcrypt del token.
	KeyHash string
	// KeyPrefix es el prefijo público del token (whk_ + 8 hex). Solo sirve
	// para acotar candidatos y para mostrar; nunca autoriza por sí mismo.
	KeyPrefix   string
	Name        string
	Description *string
	IsActive    bool
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastUsedAt  *time.Time
	UsageCount  int64
	Permissions []string
	Metadata    map[string]any
}

// IsExpired indica si la key expiró respecto de now. Sin ExpiresAt nunca expira.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// CreateAPIKeyInput contiene los datos para persistir una key nueva.
// El hash ya viene calculado por el service.
type CreateAPIKeyInput struct {
	KeyHash     string
	KeyPrefix   string
	Name        string
	Description *string
	ExpiresAt   *time.Time
	Permissions []string
	Metadata    map[string]any
}

// UpdateAPIKeyInput es un patch parcial: nil = no tocar.
// Description y ExpiresAt pueden limpiarse explícitamente con los flags Clear*.
type UpdateAPIKeyInput struct {
	Name             *string
	Description      *string
	ClearDescription bool
	ExpiresAt        *time.Time
	ClearExpiresAt   bool
	Permissions      *[]string
	Metadata         map[string]any
}

// APIKeyRepository define operaciones sobre api keys.
type APIKeyRepository interface {
	// Create persiste una key nueva activa con usage_count 0.
	// Retorna ErrConflict si el hash ya existe.
	Create(ctx context.Context, input CreateAPIKeyInput) (*APIKey, error)

	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*APIKey, error)

	// List retorna todas las keys, más nuevas primero.
	List(ctx context.Context) ([]APIKey, error)

	// ListActive retorna las keys activas candidatas para un prefijo.
	// prefix vacío => todas las activas. Con prefijo se incluyen también
	// las keys sin prefijo registrado.
	ListActive(ctx context.Context, prefix string) ([]APIKey, error)

	// Update aplica el patch y bumpea updated_at. ErrNotFound si no existe.
	Update(ctx context.Context, id string, input UpdateAPIKeyInput) (*APIKey, error)

	// Deactivate marca la key como inactiva. ErrNotFound si no existe.
	Deactivate(ctx context.Context, id string) error

	// RecordUsage incrementa usage_count y setea last_used_at en un solo paso atómico,
	// solo si la key sigue activa. ErrNotFound si no existe o ya no está activa.
	RecordUsage(ctx context.Context, id string, at time.Time) (*APIKey, error)
}
