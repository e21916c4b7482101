// Package apikey contiene los DTOs del admin de API keys.
package apikey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
)

// CreateRequest body de POST /api-keys.
type CreateRequest struct {
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Permissions []string       `json:"permissions,omitempty"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

const (
	NameMinLen = 3
	NameMaxLen = 50
)

func validateName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < NameMinLen || n > NameMaxLen {
		return fmt.Errorf("name must be between %d and %d characters", NameMinLen, NameMaxLen)
	}
	return nil
}

// Validate aplica las reglas del body que no son del dominio.
func (r CreateRequest) Validate() error { return validateName(r.Name) }

// Nullable distingue campo ausente de null explícito en un PUT.
type Nullable[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Null = true
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

// UpdateRequest body de PUT /api-keys/{id}. Solo cambian los campos presentes;
// description y expiresAt aceptan null para limpiarlos.
type UpdateRequest struct {
	Name        *string             `json:"name"`
	Description Nullable[string]    `json:"description"`
	Permissions *[]string           `json:"permissions"`
	ExpiresAt   Nullable[time.Time] `json:"expiresAt"`
	Metadata    map[string]any      `json:"metadata"`
}

// Validate chequea el nombre solo si viene en el patch.
func (r UpdateRequest) Validate() error {
	if r.Name == nil {
		return nil
	}
	return validateName(*r.Name)
}

// ToInput traduce el patch al input del repositorio.
func (r UpdateRequest) ToInput() repository.UpdateAPIKeyInput {
	in := repository.UpdateAPIKeyInput{
		Name:        r.Name,
		Permissions: r.Permissions,
		Metadata:    r.Metadata,
	}
	if r.Description.Set {
		if r.Description.Null {
			in.ClearDescription = true
		} else {
			d := r.Description.Value
			in.Description = &d
		}
	}
	if r.ExpiresAt.Set {
		if r.ExpiresAt.Null {
			in.ClearExpiresAt = true
		} else {
			e := r.ExpiresAt.Value
			in.ExpiresAt = &e
		}
	}
	return in
}

// KeyResponse representa una key. Nunca incluye el hash.
type KeyResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	KeyPrefix   string         `json:"keyPrefix,omitempty"`
	Description *string        `json:"description,omitempty"`
	IsActive    bool           `json:"isActive"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	LastUsedAt  *time.Time     `json:"lastUsedAt,omitempty"`
	UsageCount  int64          `json:"usageCount"`
	Permissions []string       `json:"permissions"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CreateResponse incluye el token en claro, que no se vuelve a mostrar.
type CreateResponse struct {
	APIKey        string      `json:"apiKey"`
	APIKeyDetails KeyResponse `json:"apiKeyDetails"`
}

func NewKeyResponse(k *repository.APIKey) KeyResponse {
	perms := k.Permissions
	if perms == nil {
		perms = []string{}
	}
	return KeyResponse{
		ID:          k.ID,
		Name:        k.Name,
		KeyPrefix:   k.KeyPrefix,
		Description: k.Description,
		IsActive:    k.IsActive,
		ExpiresAt:   k.ExpiresAt,
		CreatedAt:   k.CreatedAt,
		UpdatedAt:   k.UpdatedAt,
		LastUsedAt:  k.LastUsedAt,
		UsageCount:  k.UsageCount,
		Permissions: perms,
		Metadata:    k.Metadata,
	}
}

func NewKeyList(keys []repository.APIKey) []KeyResponse {
	out := make([]KeyResponse, 0, len(keys))
	for i := range keys {
		out = append(out, NewKeyResponse(&keys[i]))
	}
	return out
}
