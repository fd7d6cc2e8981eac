package lifecycle

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/assettrack/internal/store"
)

// Locate returns the product together with the representation holding it.
// Soft-deleted products are reported as not found.
func (e *Engine) Locate(ctx context.Context, tenant string, id uuid.UUID) (*store.Located, error) {
	var located *store.Located

	err := e.op(ctx, "locate", tenant, "", func(ctx context.Context, h store.Handle) error {
		loc, err := store.Assets(h).Find(ctx, id)
		if err != nil {
			return assetNotFound(err, id)
		}
		located = loc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return located, nil
}
