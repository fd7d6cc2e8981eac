package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

type auditRepo struct {
	q querier
}

// Insert appends an audit record. The table rejects updates and deletes.
func (r *auditRepo) Insert(ctx context.Context, record *models.AuditRecord) error {
	oldData, err := jsonOrNull(record.OldData)
	if err != nil {
		return err
	}
	newData, err := jsonOrNull(record.NewData)
	if err != nil {
		return err
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO audit_records (
			id, action, item_kind, actor_id, old_data, new_data, context, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`,
		record.ID,
		record.Action,
		record.ItemKind,
		record.ActorID,
		oldData,
		newData,
		record.Context,
		utc(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record %s: %w", record.ID, mapPostgresError(err))
	}
	return nil
}

// List returns matching audit records, newest first.
func (r *auditRepo) List(ctx context.Context, filter store.AuditFilter) ([]*models.AuditRecord, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, action, item_kind, actor_id, old_data, new_data, context, created_at
		FROM audit_records
		WHERE ($1 = '' OR item_kind = $1)
		  AND ($2 = '' OR action = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, string(filter.ItemKind), string(filter.Action), limitArg(filter.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", mapPostgresError(err))
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.AuditRecord, error) {
		var (
			rec              models.AuditRecord
			oldData, newData []byte
		)
		err := row.Scan(
			&rec.ID,
			&rec.Action,
			&rec.ItemKind,
			&rec.ActorID,
			&oldData,
			&newData,
			&rec.Context,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if rec.OldData, err = decodeAny(oldData); err != nil {
			return nil, err
		}
		if rec.NewData, err = decodeAny(newData); err != nil {
			return nil, err
		}
		return &rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read audit records: %w", mapPostgresError(err))
	}
	return records, nil
}

func jsonOrNull(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := marshalDoc(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

func decodeAny(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode audit data: %w", err)
	}
	return v, nil
}
