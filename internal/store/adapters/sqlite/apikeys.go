package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
)

type apiKeyRepo struct{ db *DB }

const apiKeyColumns = `id, key_hash, key_prefix, name, description, is_active, expires_at,
	created_at, updated_at, last_used_at, usage_count, permissions, metadata`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row rowScanner) (*repository.APIKey, error) {
	var (
		k                         repository.APIKey
		desc, expires, used, meta sql.NullString
		created, updated, perms   string
		active                    int
	)
	if err := row.Scan(
		&k.ID, &k.KeyHash, &k.KeyPrefix, &k.Name, &desc, &active, &expires,
		&created, &updated, &used, &k.UsageCount, &perms, &meta,
	); err != nil {
		return nil, err
	}

	var err error
	k.Description = strPtr(desc)
	k.IsActive = active != 0
	if k.ExpiresAt, err = parseTimePtr(expires); err != nil {
		return nil, fmt.Errorf("sqlite: expires_at: %w", err)
	}
	if k.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("sqlite: created_at: %w", err)
	}
	if k.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("sqlite: updated_at: %w", err)
	}
	if k.LastUsedAt, err = parseTimePtr(used); err != nil {
		return nil, fmt.Errorf("sqlite: last_used_at: %w", err)
	}
	if err := json.Unmarshal([]byte(perms), &k.Permissions); err != nil {
		return nil, fmt.Errorf("sqlite: permissions: %w", err)
	}
	if k.Metadata, err = decodeMap(meta); err != nil {
		return nil, fmt.Errorf("sqlite: metadata: %w", err)
	}
	return &k, nil
}

func permsText(p []string) (string, error) {
	if p == nil {
		p = []string{}
	}
	b, err := json.Marshal(p)
	return string(b), err
}

func (r *apiKeyRepo) Create(ctx context.Context, in repository.CreateAPIKeyInput) (*repository.APIKey, error) {
	perms, err := permsText(in.Permissions)
	if err != nil {
		return nil, err
	}
	meta, err := jsonText(in.Metadata)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode metadata: %w", err)
	}

	now := fmtTime(time.Now())
	const query = `
		INSERT INTO api_keys (id, key_hash, key_prefix, name, description, is_active, expires_at,
			created_at, updated_at, usage_count, permissions, metadata)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, 0, ?, ?)
		RETURNING ` + apiKeyColumns

	k, err := scanAPIKey(r.db.Writer.QueryRowContext(ctx, query,
		uuid.NewString(), in.KeyHash, in.KeyPrefix, in.Name, in.Description,
		fmtTimePtr(in.ExpiresAt), now, now, perms, meta,
	))
	if err != nil {
		return nil, mapErr(err)
	}
	return k, nil
}

func (r *apiKeyRepo) GetByID(ctx context.Context, id string) (*repository.APIKey, error) {
	k, err := scanAPIKey(r.db.Reader.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return k, err
}

func (r *apiKeyRepo) List(ctx context.Context) ([]repository.APIKey, error) {
	return r.list(ctx, `SELECT `+apiKeyColumns+` FROM api_keys ORDER BY created_at DESC`)
}

func (r *apiKeyRepo) ListActive(ctx context.Context, prefix string) ([]repository.APIKey, error) {
	if prefix == "" {
		return r.list(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE is_active = 1 ORDER BY created_at DESC`)
	}
	return r.list(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys
		WHERE is_active = 1 AND (key_prefix = ? OR key_prefix = '')
		ORDER BY created_at DESC`, prefix)
}

func (r *apiKeyRepo) list(ctx context.Context, query string, args ...any) ([]repository.APIKey, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
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
	sets := []string{"updated_at = ?"}
	args := []any{fmtTime(time.Now())}

	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *in.Name)
	}
	switch {
	case in.ClearDescription:
		sets = append(sets, "description = NULL")
	case in.Description != nil:
		sets = append(sets, "description = ?")
		args = append(args, *in.Description)
	}
	switch {
	case in.ClearExpiresAt:
		sets = append(sets, "expires_at = NULL")
	case in.ExpiresAt != nil:
		sets = append(sets, "expires_at = ?")
		args = append(args, fmtTime(*in.ExpiresAt))
	}
	if in.Permissions != nil {
		perms, err := permsText(*in.Permissions)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "permissions = ?")
		args = append(args, perms)
	}
	if in.Metadata != nil {
		meta, err := jsonText(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("sqlite: encode metadata: %w", err)
		}
		sets = append(sets, "metadata = ?")
		args = append(args, meta)
	}
	args = append(args, id)

	query := `UPDATE api_keys SET ` + strings.Join(sets, ", ") + ` WHERE id = ? RETURNING ` + apiKeyColumns
	k, err := scanAPIKey(r.db.Writer.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return k, nil
}

func (r *apiKeyRepo) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.Writer.ExecContext(ctx,
		`UPDATE api_keys SET is_active = 0, updated_at = ? WHERE id = ?`, fmtTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *apiKeyRepo) RecordUsage(ctx context.Context, id string, at time.Time) (*repository.APIKey, error) {
	query := `
		UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = ?
		WHERE id = ? AND is_active = 1
		RETURNING ` + apiKeyColumns
	k, err := scanAPIKey(r.db.Writer.QueryRowContext(ctx, query, fmtTime(at), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return k, err
}
