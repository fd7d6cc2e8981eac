package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/audit"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/serial"
	"github.com/wolfeidau/assettrack/internal/store"
)

// Create stores a new product. When the payload names an assignee the
// product is created directly inside that member instead of the standalone
// collection.
func (e *Engine) Create(ctx context.Context, tenant string, in models.ProductInput, actor string) (*models.Product, error) {
	var created *models.Product

	err := e.op(ctx, "create", tenant, actor, func(ctx context.Context, h store.Handle) error {
		products, err := e.prepare(ctx, tenant, []models.ProductInput{in})
		if err != nil {
			return err
		}
		p := products[0]

		err = h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
			return e.insert(ctx, tenant, tx, p)
		})
		if err != nil {
			return serial.Translate(err, p.SerialNumber)
		}

		snap, err := audit.ProductSnapshot(p)
		if err != nil {
			return err
		}
		e.audit.Record(ctx, tenant, audit.Entry{
			Action:   models.AuditActionCreate,
			ItemKind: models.ItemKindAsset,
			ActorID:  actor,
			NewData:  snap,
			Context:  "single-create",
		})

		log.Ctx(ctx).Info().
			Str("product_id", p.ID.String()).
			Str("location", string(p.Location)).
			Msg("Created product")

		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// BulkCreate stores every product of the batch in one transaction, or none
// of them. Two items sharing a serial number reject the batch before the
// store is touched.
func (e *Engine) BulkCreate(ctx context.Context, tenant string, in []models.ProductInput, actor string) ([]*models.Product, error) {
	var created []*models.Product

	err := e.op(ctx, "bulk_create", tenant, actor, func(ctx context.Context, h store.Handle) error {
		if len(in) == 0 {
			return apperr.Validation(apperr.CodeValidation, "batch is empty")
		}

		serials := make([]string, len(in))
		for i := range in {
			serials[i] = in[i].SerialNumber
		}
		if err := serial.CheckBatch(serials); err != nil {
			return err
		}

		products, err := e.prepare(ctx, tenant, in)
		if err != nil {
			return err
		}

		var standalone, assigned []*models.Product
		for _, p := range products {
			if p.AssignedEmail != "" {
				assigned = append(assigned, p)
			} else {
				standalone = append(standalone, p)
			}
		}

		err = h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
			for _, p := range standalone {
				if err := e.guard.Check(ctx, tx, p.SerialNumber, p.ID); err != nil {
					return err
				}
				st, err := e.resolveStatus(ctx, tenant, p, nil)
				if err != nil {
					return err
				}
				p.Status = st
			}

			if len(standalone) > 0 {
				if err := tx.Products().InsertMany(ctx, standalone); err != nil {
					return fmt.Errorf("failed to insert products: %w", err)
				}
			}

			for _, p := range assigned {
				if err := e.insert(ctx, tenant, tx, p); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return serial.Translate(err, "")
		}

		snaps, err := audit.ProductSnapshots(products)
		if err != nil {
			return err
		}
		e.audit.Record(ctx, tenant, audit.Entry{
			Action:   models.AuditActionBulkCreate,
			ItemKind: models.ItemKindAsset,
			ActorID:  actor,
			NewData:  snaps,
			Context:  "bulk-create",
		})

		log.Ctx(ctx).Info().
			Int("standalone", len(standalone)).
			Int("assigned", len(assigned)).
			Msg("Created product batch")

		created = products
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// prepare validates the payloads and assigns identifiers and timestamps up
// front so every cross reference inside the batch is stable.
func (e *Engine) prepare(ctx context.Context, tenant string, in []models.ProductInput) ([]*models.Product, error) {
	var defaults map[models.Category]bool
	for i := range in {
		if in[i].Recoverable == nil {
			d, err := e.defaults.RecoverableDefaults(ctx, tenant)
			if err != nil {
				return nil, fmt.Errorf("failed to load recoverable defaults: %w", err)
			}
			defaults = d
			break
		}
	}

	now := e.now().UTC()
	out := make([]*models.Product, 0, len(in))
	for i := range in {
		p, err := newProduct(in[i], defaults)
		if err != nil {
			if len(in) > 1 {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			return nil, err
		}

		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate product id: %w", err)
		}
		p.ID = id
		p.CreatedAt = now
		p.UpdatedAt = now
		out = append(out, p)
	}
	return out, nil
}

// insert writes a new product into the representation its assignment calls
// for, resolving the assignee and the initial status.
func (e *Engine) insert(ctx context.Context, tenant string, tx store.Accessors, p *models.Product) error {
	if err := e.guard.Check(ctx, tx, p.SerialNumber, p.ID); err != nil {
		return err
	}

	var (
		assignee *models.Member
		target   = store.Standalone()
	)
	if p.AssignedEmail != "" {
		m, err := memberByEmail(ctx, tx, p.AssignedEmail)
		if err != nil {
			return err
		}
		assignee = m
		p.AssignedMember = m.FullName()
		target = store.Embedded(m.ID, -1)
	}

	st, err := e.resolveStatus(ctx, tenant, p, assignee)
	if err != nil {
		return err
	}
	p.Status = st

	if err := store.Assets(tx).Upsert(ctx, p, target); err != nil {
		return fmt.Errorf("failed to store product %s: %w", p.ID, err)
	}
	return nil
}
