package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/healthhook/internal/domain/repository"
)

type healthRepo struct{ db *DB }

func (r *healthRepo) Insert(ctx context.Context, p *repository.HealthDataPoint) error {
	valueJSON, err := jsonText(p.ValueJSON)
	if err != nil {
		return fmt.Errorf("sqlite: encode value_json: %w", err)
	}
	device, err := jsonText(p.DeviceInfo)
	if err != nil {
		return fmt.Errorf("sqlite: encode device_info: %w", err)
	}
	meta, err := jsonText(p.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: encode metadata: %w", err)
	}

	const query = `
		INSERT INTO health_data_points (id, metric_type, value_numeric, value_json, unit,
			recorded_at, received_at, device_info, source_app, user_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = r.db.Writer.ExecContext(ctx, query,
		id, string(p.MetricType), p.ValueNumeric, valueJSON, p.Unit,
		fmtTime(p.RecordedAt), fmtTime(p.ReceivedAt), device, p.SourceApp, p.UserID, meta, fmtTime(now),
	)
	if err != nil {
		return mapErr(err)
	}
	p.ID = id
	p.CreatedAt = now
	return nil
}

func (r *healthRepo) Query(ctx context.Context, f repository.HealthDataFilter) ([]repository.HealthDataPoint, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.MetricType != nil {
		where = append(where, "metric_type = ?")
		args = append(args, string(*f.MetricType))
	}

	query := `
		SELECT id, metric_type, value_numeric, value_json, unit, recorded_at, received_at,
			device_info, source_app, user_id, metadata, created_at
		FROM health_data_points`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.HealthDataPoint
	for rows.Next() {
		var (
			p                                   repository.HealthDataPoint
			metric, recorded, received, created string
			value                               sql.NullFloat64
			valueJSON, unit, device, source     sql.NullString
			user, meta                          sql.NullString
		)
		if err := rows.Scan(
			&p.ID, &metric, &value, &valueJSON, &unit, &recorded, &received,
			&device, &source, &user, &meta, &created,
		); err != nil {
			return nil, err
		}

		p.MetricType = repository.MetricType(metric)
		if value.Valid {
			v := value.Float64
			p.ValueNumeric = &v
		}
		p.Unit = strPtr(unit)
		p.SourceApp = strPtr(source)
		p.UserID = strPtr(user)
		if p.RecordedAt, err = parseTime(recorded); err != nil {
			return nil, fmt.Errorf("sqlite: recorded_at: %w", err)
		}
		if p.ReceivedAt, err = parseTime(received); err != nil {
			return nil, fmt.Errorf("sqlite: received_at: %w", err)
		}
		if p.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("sqlite: created_at: %w", err)
		}
		if p.ValueJSON, err = decodeMap(valueJSON); err != nil {
			return nil, fmt.Errorf("sqlite: value_json: %w", err)
		}
		if p.Metadata, err = decodeMap(meta); err != nil {
			return nil, fmt.Errorf("sqlite: metadata: %w", err)
		}
		if device.Valid {
			var d repository.DeviceInfo
			if err := json.Unmarshal([]byte(device.String), &d); err != nil {
				return nil, fmt.Errorf("sqlite: device_info: %w", err)
			}
			p.DeviceInfo = &d
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
