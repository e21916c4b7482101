package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
)

type healthRepo struct{ pool *pgxpool.Pool }

func (r *healthRepo) Insert(ctx context.Context, p *repository.HealthDataPoint) error {
	valueJSON, err := jsonParam(p.ValueJSON)
	if err != nil {
		return fmt.Errorf("pg: encode value_json: %w", err)
	}
	device, err := jsonParam(p.DeviceInfo)
	if err != nil {
		return fmt.Errorf("pg: encode device_info: %w", err)
	}
	meta, err := jsonParam(p.Metadata)
	if err != nil {
		return fmt.Errorf("pg: encode metadata: %w", err)
	}

	const query = `
		INSERT INTO health_data_points (id, metric_type, value_numeric, value_json, unit,
			recorded_at, received_at, device_info, source_app, user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8::jsonb, $9, $10, $11::jsonb, NOW())
		RETURNING created_at`

	id := uuid.NewString()
	err = r.pool.QueryRow(ctx, query,
		id, string(p.MetricType), p.ValueNumeric, valueJSON, p.Unit,
		p.RecordedAt, p.ReceivedAt, device, p.SourceApp, p.UserID, meta,
	).Scan(&p.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	p.ID = id
	return nil
}

func (r *healthRepo) Query(ctx context.Context, f repository.HealthDataFilter) ([]repository.HealthDataPoint, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.MetricType != nil {
		args = append(args, string(*f.MetricType))
		where = append(where, fmt.Sprintf("metric_type = $%d", len(args)))
	}

	query := `
		SELECT id, metric_type, value_numeric::float8, value_json::text, unit, recorded_at, received_at,
			device_info::text, source_app, user_id, metadata::text, created_at
		FROM health_data_points`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.HealthDataPoint
	for rows.Next() {
		var (
			p                       repository.HealthDataPoint
			metric                  string
			valueJSON, device, meta *string
		)
		if err := rows.Scan(
			&p.ID, &metric, &p.ValueNumeric, &valueJSON, &p.Unit, &p.RecordedAt, &p.ReceivedAt,
			&device, &p.SourceApp, &p.UserID, &meta, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		p.MetricType = repository.MetricType(metric)
		if p.ValueJSON, err = decodeJSONMap(valueJSON); err != nil {
			return nil, fmt.Errorf("pg: decode value_json: %w", err)
		}
		if p.Metadata, err = decodeJSONMap(meta); err != nil {
			return nil, fmt.Errorf("pg: decode metadata: %w", err)
		}
		if device != nil {
			var d repository.DeviceInfo
			if err := json.Unmarshal([]byte(*device), &d); err != nil {
				return nil, fmt.Errorf("pg: decode device_info: %w", err)
			}
			p.DeviceInfo = &d
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
