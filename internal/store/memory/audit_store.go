package memory

import (
	"context"
	"fmt"

	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

type auditRepo struct {
	s session
}

// Insert appends an audit record.
func (r *auditRepo) Insert(ctx context.Context, record *models.AuditRecord) error {
	return r.s.write(func(st *state) error {
		for _, existing := range st.audit {
			if existing.ID == record.ID {
				return fmt.Errorf("audit record %s: %w", record.ID, store.ErrDuplicateKey)
			}
		}
		clone := *record
		st.audit = append(st.audit, &clone)
		return nil
	})
}

// List returns matching audit records, newest first.
func (r *auditRepo) List(ctx context.Context, filter store.AuditFilter) ([]*models.AuditRecord, error) {
	var result []*models.AuditRecord
	err := r.s.read(func(st *state) error {
		for i := len(st.audit) - 1; i >= 0; i-- {
			rec := st.audit[i]
			if filter.ItemKind != "" && rec.ItemKind != filter.ItemKind {
				continue
			}
			if filter.Action != "" && rec.Action != filter.Action {
				continue
			}
			clone := *rec
			result = append(result, &clone)
			if filter.Limit > 0 && len(result) == filter.Limit {
				break
			}
		}
		return nil
	})
	return result, err
}
