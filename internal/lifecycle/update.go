package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/audit"
	"github.com/wolfeidau/assettrack/internal/events"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/serial"
	"github.com/wolfeidau/assettrack/internal/store"
	"github.com/wolfeidau/assettrack/internal/telemetry"
)

// mutation is the outcome of a committed product change.
type mutation struct {
	before *models.Product
	after  *models.Product
	from   store.Placement
	to     store.Placement
}

func (m *mutation) moved() bool {
	return !m.from.Same(m.to)
}

func (m *mutation) addressChanged() bool {
	return m.before.Location != m.after.Location || m.before.AssignedEmail != m.after.AssignedEmail
}

// Update applies a partial change to a product. Changing the assignee or
// location moves the product between representations in the same
// transaction.
func (e *Engine) Update(ctx context.Context, tenant string, id uuid.UUID, changes models.ProductChanges, actor string) (*models.Product, error) {
	return e.update(ctx, "update", models.AuditActionUpdate, tenant, id, changes, actor)
}

// Reassign is Update where the assignee "none" means unassign.
func (e *Engine) Reassign(ctx context.Context, tenant string, id uuid.UUID, changes models.ProductChanges, actor string) (*models.Product, error) {
	if changes.AssignedEmail != nil && strings.EqualFold(strings.TrimSpace(*changes.AssignedEmail), unassignSentinel) {
		unassigned := ""
		changes.AssignedEmail = &unassigned
	}
	return e.update(ctx, "reassign", models.AuditActionReassign, tenant, id, changes, actor)
}

func (e *Engine) update(ctx context.Context, name string, action models.AuditAction, tenant string, id uuid.UUID, changes models.ProductChanges, actor string) (*models.Product, error) {
	var result *mutation

	err := e.op(ctx, name, tenant, actor, func(ctx context.Context, h store.Handle) error {
		err := h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
			m, err := e.applyChanges(ctx, tenant, tx, id, changes)
			if err != nil {
				return err
			}
			result = m
			return nil
		})
		if err != nil {
			var s string
			if changes.SerialNumber.Replaces() {
				s = changes.SerialNumber.Value
			}
			return serial.Translate(err, s)
		}

		e.afterCommit(ctx, tenant, action, actor, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.after, nil
}

// afterCommit records the audit trail and publishes events. Neither can undo
// the committed change.
func (e *Engine) afterCommit(ctx context.Context, tenant string, action models.AuditAction, actor string, m *mutation) {
	oldData, newData, err := audit.ProductDiff(m.before, m.after)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to build audit diff")
	} else {
		e.audit.Record(ctx, tenant, audit.Entry{
			Action:   action,
			ItemKind: models.ItemKindAsset,
			ActorID:  actor,
			OldData:  oldData,
			NewData:  newData,
		})
	}

	if m.addressChanged() && m.after.ActiveShipment {
		events.Emit(ctx, e.events, events.New(events.AssetAddressChanged, tenant, m.after.ID.String()))
	}

	log.Ctx(ctx).Info().
		Str("product_id", m.after.ID.String()).
		Str("from", m.from.String()).
		Str("to", m.to.String()).
		Str("status", string(m.after.Status)).
		Msg("Updated product")
}

// applyChanges runs inside the transaction and writes the changed product to
// the representation its new assignment calls for.
func (e *Engine) applyChanges(ctx context.Context, tenant string, tx store.Accessors, id uuid.UUID, changes models.ProductChanges) (*mutation, error) {
	assets := store.Assets(tx)

	loc, err := assets.Find(ctx, id)
	if err != nil {
		return nil, assetNotFound(err, id)
	}

	before := loc.Product
	after := before.Clone()

	changes, dropped := pinningFilter(before, changes)
	if len(dropped) > 0 {
		log.Ctx(ctx).Info().
			Str("product_id", id.String()).
			Strs("dropped", dropped).
			Msg("Ignored changes to fields owned by the active shipment")
	}

	applyFields(after, changes)

	assignee, target, err := e.reassign(ctx, tx, loc, after, changes)
	if err != nil {
		return nil, err
	}

	if err := validateProduct(after); err != nil {
		return nil, err
	}

	if after.SerialNumber != before.SerialNumber {
		if err := e.guard.Check(ctx, tx, after.SerialNumber, id); err != nil {
			return nil, err
		}
	}

	st, err := e.resolveStatus(ctx, tenant, after, assignee)
	if err != nil {
		return nil, err
	}
	after.Status = pinnedStatus(before, after, st, changes.Status)
	after.UpdatedAt = e.now().UTC()

	m := &mutation{before: before, after: after, from: loc.Placement, to: target}
	if err := assets.Move(ctx, after, m.from, m.to); err != nil {
		return nil, fmt.Errorf("failed to store product %s: %w", id, err)
	}
	if m.moved() {
		telemetry.GetMetrics().RepresentationMoves.Add(ctx, 1)
	}

	return m, nil
}

// pinningFilter drops the changes an active shipment does not allow. While a
// product is pinned its pin can't be cleared, its status only moves between
// the in transit variants and it always counts as being in a shipment.
func pinningFilter(before *models.Product, changes models.ProductChanges) (models.ProductChanges, []string) {
	if !before.FpShipment {
		return changes, nil
	}

	var dropped []string
	if changes.FpShipment != nil && !*changes.FpShipment {
		changes.FpShipment = nil
		dropped = append(dropped, "fp_shipment")
	}
	if changes.Status != nil && !changes.Status.InTransit() {
		changes.Status = nil
		dropped = append(dropped, "status")
	}
	active := true
	changes.ActiveShipment = &active

	return changes, dropped
}

// applyFields copies the plain field changes onto p. Assignment and status
// are handled separately.
func applyFields(p *models.Product, changes models.ProductChanges) {
	if changes.Category != nil {
		p.Category = *changes.Category
	}
	if changes.Name != nil {
		p.Name = normalizeName(*changes.Name)
	}
	if changes.Attributes != nil {
		p.Attributes = normalizeAttributes(*changes.Attributes)
	}

	switch {
	case changes.SerialNumber.Clears():
		p.SerialNumber = ""
	case changes.SerialNumber.Replaces():
		p.SerialNumber = strings.TrimSpace(changes.SerialNumber.Value)
	}

	switch {
	case changes.Price.Clears():
		p.Price = nil
	case changes.Price.Replaces():
		price := changes.Price.Value
		price.CurrencyCode = strings.ToUpper(strings.TrimSpace(price.CurrencyCode))
		p.Price = &price
	}

	switch {
	case changes.AdditionalInfo.Clears():
		p.AdditionalInfo = ""
	case changes.AdditionalInfo.Replaces():
		p.AdditionalInfo = strings.TrimSpace(changes.AdditionalInfo.Value)
	}

	if changes.Recoverable != nil {
		p.Recoverable = *changes.Recoverable
	}
	if changes.Condition != nil {
		p.Condition = *changes.Condition
	}
	if changes.FpShipment != nil {
		p.FpShipment = *changes.FpShipment
	}
	if changes.ActiveShipment != nil {
		p.ActiveShipment = *changes.ActiveShipment
	}
	if p.FpShipment {
		p.ActiveShipment = true
	}
}

// reassign resolves the new location and assignee of p and returns the
// member that will hold it (nil when standalone) and the target placement.
func (e *Engine) reassign(ctx context.Context, tx store.Accessors, loc *store.Located, p *models.Product, changes models.ProductChanges) (*models.Member, store.Placement, error) {
	before := loc.Product

	if changes.AssignedEmail == nil && changes.Location == nil {
		return loc.Owner, loc.Placement, nil
	}

	email := before.AssignedEmail
	if changes.AssignedEmail != nil {
		email = normalizeEmail(*changes.AssignedEmail)
	}
	location := before.Location
	if changes.Location != nil {
		location = *changes.Location
	}

	// moving an assigned product into storage releases its assignee
	if changes.AssignedEmail == nil && location.Storage() {
		email = ""
	}

	switch {
	case email != "":
		if changes.Location != nil && location != models.LocationEmployee {
			return nil, store.Placement{}, apperr.Validation(apperr.CodeInvalidLocation,
				"an assigned product must be at location %s", models.LocationEmployee)
		}
		location = models.LocationEmployee
	case !location.Storage():
		return nil, store.Placement{}, apperr.Validation(apperr.CodeInvalidLocation,
			"unassigning a product requires location %s or %s", models.LocationOurOffice, models.LocationFPWarehouse)
	}

	p.Location = location
	p.AssignedEmail = email
	if p.Location != before.Location || p.AssignedEmail != before.AssignedEmail {
		p.LastAssigned = breadcrumb(before)
	}

	if email == "" {
		p.AssignedMember = ""
		return nil, store.Standalone(), nil
	}

	if loc.Owner != nil && strings.EqualFold(loc.Owner.Email, email) {
		return loc.Owner, loc.Placement, nil
	}

	m, err := memberByEmail(ctx, tx, email)
	if err != nil {
		return nil, store.Placement{}, err
	}
	p.AssignedMember = m.FullName()
	return m, store.Embedded(m.ID, -1), nil
}

// breadcrumb describes where p was before it moved: its assignee when it had
// one, its location otherwise.
func breadcrumb(p *models.Product) string {
	if p.AssignedEmail != "" {
		return p.AssignedEmail
	}
	return string(p.Location)
}

// pinnedStatus picks the status to store. Products outside a shipment always
// get the derived status. Pinned products accept an explicit in transit
// status and otherwise never leave the in transit variants while pinned.
func pinnedStatus(before, after *models.Product, derived models.Status, requested *models.Status) models.Status {
	if !after.FpShipment {
		return derived
	}
	switch {
	case requested != nil && requested.InTransit():
		return *requested
	case derived.InTransit():
		return derived
	case before.Status.InTransit():
		return before.Status
	}
	return models.StatusInTransit
}

// ReleaseShipment clears the shipment pin of a product. It is the only way
// the pin can be removed and is meant for the logistics workflow.
func (e *Engine) ReleaseShipment(ctx context.Context, tenant string, id uuid.UUID, actor string) (*models.Product, error) {
	var result *mutation

	err := e.op(ctx, "release_shipment", tenant, actor, func(ctx context.Context, h store.Handle) error {
		err := h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
			loc, err := store.Assets(tx).Find(ctx, id)
			if err != nil {
				return assetNotFound(err, id)
			}

			after := loc.Product.Clone()
			after.FpShipment = false
			after.ActiveShipment = false

			st, err := e.resolveStatus(ctx, tenant, after, loc.Owner)
			if err != nil {
				return err
			}
			after.Status = st
			after.UpdatedAt = e.now().UTC()

			if err := store.Assets(tx).Upsert(ctx, after, loc.Placement); err != nil {
				return fmt.Errorf("failed to store product %s: %w", id, err)
			}
			result = &mutation{before: loc.Product, after: after, from: loc.Placement, to: loc.Placement}
			return nil
		})
		if err != nil {
			return err
		}

		e.afterCommit(ctx, tenant, models.AuditActionUpdate, actor, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.after, nil
}
