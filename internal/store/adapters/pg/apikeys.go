package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
)

type apiKeyRepo struct{ pool *pgxpool.Pool }

const apiKeyColumns = `id, key_hash, key_prefix, name, description, is_active, expires_at,
	created_at, updated_at, last_used_at, usage_count, permissions, metadata::text`

func scanAPIKey(row pgx.Row) (*repository.APIKey, error) {
	var (
		k    repository.APIKey
		meta *string
	)
	err := row.Scan(
		&k.ID, &k.KeyHash, &k.KeyPrefix, &k.Name, &k.Description, &k.IsActive, &k.ExpiresAt,
		&k.CreatedAt, &k.UpdatedAt, &k.LastUsedAt, &k.UsageCount, &k.Permissions, &meta,
	)
	if err != nil {
		return nil, err
	}
	if k.Metadata, err = decodeJSONMap(meta); err != nil {
		return nil, fmt.Errorf("pg: decode api_key metadata: %w", err)
	}
	return &k, nil
}

func (r *apiKeyRepo) Create(ctx context.Context, in repository.CreateAPIKeyInput) (*repository.APIKey, error) {
	meta, err := jsonParam(in.Metadata)
	if err != nil {
		return nil, fmt.Errorf("pg: encode metadata: %w", err)
	}
	perms := in.Permissions
	if perms == nil {
		perms = []string{}
	}

	query := `
		INSERT INTO api_keys (id, key_hash, key_prefix, name, description, is_active, expires_at,
			created_at, updated_at, usage_count, permissions, metadata)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, NOW(), NOW(), 0, $7, $8::jsonb)
		RETURNING ` + apiKeyColumns

	k, err := scanAPIKey(r.pool.QueryRow(ctx, query,
		uuid.NewString(), in.KeyHash, in.KeyPrefix, in.Name, in.Description, in.ExpiresAt, perms, meta,
	))
	if err != nil {
		return nil, mapErr(err)
	}
	return k, nil
}

func (r *apiKeyRepo) GetByID(ctx context.Context, id string) (*repository.APIKey, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	k, err := scanAPIKey(r.pool.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return k, err
}

func (r *apiKeyRepo) List(ctx context.Context) ([]repository.APIKey, error) {
	return r.list(ctx, `SELECT `+apiKeyColumns+` FROM api_keys ORDER BY created_at DESC`)
}

func (r *apiKeyRepo) ListActive(ctx context.Context, prefix string) ([]repository.APIKey, error) {
	if prefix == "" {
		return r.list(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE is_active ORDER BY created_at DESC`)
	}
	return r.list(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys
		WHERE is_active AND (key_prefix = $1 OR key_prefix = '')
		ORDER BY created_at DESC`, prefix)
}

func (r *apiKeyRepo) list(ctx context.Context, query string, args ...any) ([]repository.APIKey, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (r *apiKeyRepo) Update(ctx context.Context, id string, in repository.UpdateAPIKeyInput) (*repository.APIKey, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if in.Name != nil {
		add("name = $%d", *in.Name)
	}
	switch {
	case in.ClearDescription:
		sets = append(sets, "description = NULL")
	case in.Description != nil:
		add("description = $%d", *in.Description)
	}
	switch {
	case in.ClearExpiresAt:
		sets = append(sets, "expires_at = NULL")
	case in.ExpiresAt != nil:
		add("expires_at = $%d", *in.ExpiresAt)
	}
	if in.Permissions != nil {
		perms := *in.Permissions
		if perms == nil {
			perms = []string{}
		}
		add("permissions = $%d", perms)
	}
	if in.Metadata != nil {
		meta, err := jsonParam(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("pg: encode metadata: %w", err)
		}
		add("metadata = $%d::jsonb", meta)
	}

	query := `UPDATE api_keys SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + apiKeyColumns
	k, err := scanAPIKey(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return k, nil
}

func (r *apiKeyRepo) Deactivate(ctx context.Context, id string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `UPDATE api_keys SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RecordUsage: el incremento lo hace la DB, así no se pierden usos con requests concurrentes.
// La condición is_active cierra la carrera con un Deactivate simultáneo.
func (r *apiKeyRepo) RecordUsage(ctx context.Context, id string, at time.Time) (*repository.APIKey, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	query := `
		UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = $2
		WHERE id = $1 AND is_active
		RETURNING ` + apiKeyColumns
	k, err := scanAPIKey(r.pool.QueryRow(ctx, query, id, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return k, err
}
