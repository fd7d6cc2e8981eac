package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/audit"
	"github.com/wolfeidau/assettrack/internal/events"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

// GetMember returns a live member with its embedded products.
func (e *Engine) GetMember(ctx context.Context, tenant string, id uuid.UUID) (*models.Member, error) {
	var member *models.Member

	err := e.op(ctx, "get_member", tenant, "", func(ctx context.Context, h store.Handle) error {
		m, err := liveMember(ctx, h, id)
		if err != nil {
			return err
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// CreateMember stores a new member. The email must not be used by another
// live member of the tenant.
func (e *Engine) CreateMember(ctx context.Context, tenant string, in models.MemberInput, actor string) (*models.Member, error) {
	var created *models.Member

	err := e.op(ctx, "create_member", tenant, actor, func(ctx context.Context, h store.Handle) error {
		email := normalizeEmail(in.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return apperr.Validation(apperr.CodeValidation, "email %q is invalid", in.Email)
		}

		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate member id: %w", err)
		}
		now := e.now().UTC()
		m := &models.Member{
			ID:        id,
			Email:     email,
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
			Address:   in.Address,
			Products:  []models.Product{},
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
			if _, err := tx.Members().GetByEmail(ctx, email); err == nil {
				return duplicateIdentity(email)
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			return tx.Members().Insert(ctx, m)
		})
		if errors.Is(err, store.ErrDuplicateKey) {
			return duplicateIdentity(email)
		}
		if err != nil {
			return err
		}

		snap, err := audit.MemberSnapshot(m)
		if err != nil {
			return err
		}
		e.audit.Record(ctx, tenant, audit.Entry{
			Action:   models.AuditActionCreate,
			ItemKind: models.ItemKindMember,
			ActorID:  actor,
			NewData:  snap,
		})

		log.Ctx(ctx).Info().Str("member_id", m.ID.String()).Msg("Created member")
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateMemberAddress replaces the address of a member. Pinned products the
// member holds get their status recomputed since address completeness
// decides between the in transit variants.
func (e *Engine) UpdateMemberAddress(ctx context.Context, tenant string, id uuid.UUID, addr models.Address, actor string) (*models.Member, error) {
	var before, after *models.Member

	err := e.op(ctx, "update_member_address", tenant, actor, func(ctx context.Context, h store.Handle) error {
		err := h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
			m, err := liveMember(ctx, tx, id)
			if err != nil {
				return err
			}

			updated := m.Clone()
			updated.Address = addr
			updated.UpdatedAt = e.now().UTC()
			if err := tx.Members().Update(ctx, updated); err != nil {
				return fmt.Errorf("failed to update member %s: %w", id, err)
			}

			for i := range updated.Products {
				p := updated.Products[i].Clone()
				if !p.FpShipment {
					continue
				}
				st, err := e.resolveStatus(ctx, tenant, p, updated)
				if err != nil {
					return err
				}
				p.Status = pinnedStatus(&updated.Products[i], p, st, nil)
				if p.Status == updated.Products[i].Status {
					continue
				}
				p.UpdatedAt = updated.UpdatedAt
				if err := tx.Members().UpdateProduct(ctx, id, p); err != nil {
					return fmt.Errorf("failed to update product %s: %w", p.ID, err)
				}
				updated.Products[i] = *p
			}

			before, after = m, updated
			return nil
		})
		if err != nil {
			return err
		}

		oldSnap, err := audit.MemberSnapshot(before)
		if err != nil {
			return err
		}
		newSnap, err := audit.MemberSnapshot(after)
		if err != nil {
			return err
		}
		oldData, newData := audit.Diff(oldSnap, newSnap, "email")
		e.audit.Record(ctx, tenant, audit.Entry{
			Action:   models.AuditActionUpdate,
			ItemKind: models.ItemKindMember,
			ActorID:  actor,
			OldData:  oldData,
			NewData:  newData,
		})

		if before.Address != after.Address {
			events.Emit(ctx, e.events, events.New(events.PersonAddressChanged, tenant, id.String()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return after, nil
}

// DeleteMember soft deletes a member. Members still holding a recoverable
// product are rejected; any other product they hold is returned to the
// warehouse in the same transaction.
func (e *Engine) DeleteMember(ctx context.Context, tenant string, id uuid.UUID, actor string) error {
	return e.op(ctx, "delete_member", tenant, actor, func(ctx context.Context, h store.Handle) error {
		var before *models.Member
		var released int

		err := h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
			m, err := liveMember(ctx, tx, id)
			if err != nil {
				return err
			}
			if m.HasRecoverableProducts() {
				return apperr.BusinessRule(apperr.CodeMemberHasRecoverable,
					"member %s still holds recoverable assets", m.Email)
			}

			now := e.now().UTC()
			assets := store.Assets(tx)
			for i := range m.Products {
				p := m.Products[i].Clone()
				p.LastAssigned = breadcrumb(p)
				p.Location = models.LocationFPWarehouse
				p.AssignedEmail = ""
				p.AssignedMember = ""
				st, err := e.resolveStatus(ctx, tenant, p, nil)
				if err != nil {
					return err
				}
				p.Status = pinnedStatus(&m.Products[i], p, st, nil)
				p.UpdatedAt = now
				if err := assets.Move(ctx, p, store.Embedded(m.ID, i), store.Standalone()); err != nil {
					return fmt.Errorf("failed to release product %s: %w", p.ID, err)
				}
				released++
			}

			deleted := m.Clone()
			deleted.IsDeleted = true
			deleted.DeletedAt = &now
			deleted.UpdatedAt = now
			if err := tx.Members().Update(ctx, deleted); err != nil {
				return fmt.Errorf("failed to delete member %s: %w", id, err)
			}

			before = m
			return nil
		})
		if err != nil {
			return err
		}

		snap, err := audit.MemberSnapshot(before)
		if err != nil {
			return err
		}
		e.audit.Record(ctx, tenant, audit.Entry{
			Action:   models.AuditActionDelete,
			ItemKind: models.ItemKindMember,
			ActorID:  actor,
			OldData:  snap,
		})

		log.Ctx(ctx).Info().
			Str("member_id", id.String()).
			Int("released_products", released).
			Msg("Deleted member")
		return nil
	})
}

func liveMember(ctx context.Context, acc store.Accessors, id uuid.UUID) (*models.Member, error) {
	m, err := acc.Members().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && m.IsDeleted) {
		return nil, apperr.NotFound(apperr.CodeMemberNotFound, "member %s not found", id)
	}
	return m, err
}

func duplicateIdentity(email string) error {
	return apperr.Validation(apperr.CodeDuplicateIdentity, "a member with email %q already exists", email)
}
