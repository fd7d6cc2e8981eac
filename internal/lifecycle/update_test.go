package lifecycle

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/audit"
	"github.com/wolfeidau/assettrack/internal/events"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

func TestReassign_AssignAndUnassign(t *testing.T) {
	h := newHarness(t)
	bob := h.member("bob@x.com")

	p := h.create(laptopInput())
	require.Equal(t, models.StatusAvailable, p.Status)

	assigned, err := h.engine.Reassign(h.ctx, testTenant, p.ID, models.ProductChanges{
		AssignedEmail: ptr("bob@x.com"),
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusDelivered, assigned.Status)
	require.Equal(t, models.LocationEmployee, assigned.Location)
	require.Equal(t, "Bob Builder", assigned.AssignedMember)
	require.Equal(t, string(models.LocationOurOffice), assigned.LastAssigned)

	require.Empty(t, h.standalone())
	held := h.memberByID(bob.ID).Products
	require.Len(t, held, 1)
	require.Equal(t, p.ID, held[0].ID)
	h.requirePlacementInvariant()

	released, err := h.engine.Reassign(h.ctx, testTenant, p.ID, models.ProductChanges{
		AssignedEmail: ptr("none"),
		Location:      ptr(models.LocationFPWarehouse),
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusAvailable, released.Status)
	require.Equal(t, models.LocationFPWarehouse, released.Location)
	require.Empty(t, released.AssignedEmail)
	require.Empty(t, released.AssignedMember)
	require.Equal(t, "bob@x.com", released.LastAssigned)

	require.Empty(t, h.memberByID(bob.ID).Products)
	standalone := h.standalone()
	require.Len(t, standalone, 1)
	require.Equal(t, p.ID, standalone[0].ID)
	h.requirePlacementInvariant()

	require.Len(t, h.audits(models.AuditActionReassign, models.ItemKindAsset), 2)
}

func TestReassign_BetweenMembers(t *testing.T) {
	h := newHarness(t)
	bob := h.member("bob@x.com")
	alice := h.member("alice@x.com")

	in := laptopInput()
	in.AssignedEmail = bob.Email
	p := h.create(in)

	moved, err := h.engine.Reassign(h.ctx, testTenant, p.ID, models.ProductChanges{
		AssignedEmail: ptr(alice.Email),
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, alice.Email, moved.AssignedEmail)
	require.Equal(t, bob.Email, moved.LastAssigned)

	require.Empty(t, h.memberByID(bob.ID).Products)
	require.Len(t, h.memberByID(alice.ID).Products, 1)
	h.requirePlacementInvariant()
}

func TestReassign_UnassignRequiresStorageLocation(t *testing.T) {
	h := newHarness(t)
	bob := h.member("bob@x.com")

	in := laptopInput()
	in.AssignedEmail = bob.Email
	p := h.create(in)

	_, err := h.engine.Reassign(h.ctx, testTenant, p.ID, models.ProductChanges{
		AssignedEmail: ptr("none"),
	}, testActor)
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Equal(t, apperr.CodeInvalidLocation, apperr.CodeOf(err))

	_, err = h.engine.Reassign(h.ctx, testTenant, p.ID, models.ProductChanges{
		AssignedEmail: ptr(""),
		Location:      ptr(models.LocationEmployee),
	}, testActor)
	require.Equal(t, apperr.CodeInvalidLocation, apperr.CodeOf(err))

	require.Len(t, h.memberByID(bob.ID).Products, 1)
	h.requirePlacementInvariant()
}

func TestUpdate_StorageLocationReleasesAssignee(t *testing.T) {
	h := newHarness(t)
	bob := h.member("bob@x.com")

	in := laptopInput()
	in.AssignedEmail = bob.Email
	p := h.create(in)

	updated, err := h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		Location: ptr(models.LocationOurOffice),
	}, testActor)
	require.NoError(t, err)
	require.Empty(t, updated.AssignedEmail)
	require.Equal(t, bob.Email, updated.LastAssigned)
	require.Empty(t, h.memberByID(bob.ID).Products)
	h.requirePlacementInvariant()
}

func TestUpdate_AssigneeWithStorageLocationRejected(t *testing.T) {
	h := newHarness(t)
	h.member("bob@x.com")
	p := h.create(laptopInput())

	_, err := h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		AssignedEmail: ptr("bob@x.com"),
		Location:      ptr(models.LocationOurOffice),
	}, testActor)
	require.Equal(t, apperr.CodeInvalidLocation, apperr.CodeOf(err))
	require.Len(t, h.standalone(), 1)
}

func TestUpdate_UnknownAssigneeLeavesProductInPlace(t *testing.T) {
	h := newHarness(t)
	p := h.create(laptopInput())

	_, err := h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		AssignedEmail: ptr("ghost@x.com"),
	}, testActor)
	require.Equal(t, apperr.CodeMemberNotFound, apperr.CodeOf(err))

	loc, err := h.engine.Locate(h.ctx, testTenant, p.ID)
	require.NoError(t, err)
	require.Equal(t, store.PlacementStandalone, loc.Placement.Kind)
	require.Equal(t, models.LocationOurOffice, loc.Product.Location)
}

func TestUpdate_EmbeddedFieldsStayEmbedded(t *testing.T) {
	h := newHarness(t)
	bob := h.member("bob@x.com")

	in := laptopInput()
	in.AssignedEmail = bob.Email
	p := h.create(in)

	updated, err := h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		Name:      ptr("macbook air"),
		Condition: ptr(models.ConditionUnusable),
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, "Macbook Air", updated.Name)
	require.Equal(t, models.StatusUnavailable, updated.Status)

	held := h.memberByID(bob.ID).Products
	require.Len(t, held, 1)
	require.Equal(t, "Macbook Air", held[0].Name)
	require.Empty(t, h.standalone())
}

func TestUpdate_SerialUniqueness(t *testing.T) {
	h := newHarness(t)
	bob := h.member("bob@x.com")

	in := withSerial(laptopInput(), "SN-1")
	in.AssignedEmail = bob.Email
	h.create(in)
	p := h.create(withSerial(laptopInput(), "SN-2"))

	_, err := h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		SerialNumber: models.Set("SN-1"),
	}, testActor)
	require.Equal(t, apperr.CodeDuplicateSerial, apperr.CodeOf(err))

	loc, err := h.engine.Locate(h.ctx, testTenant, p.ID)
	require.NoError(t, err)
	require.Equal(t, "SN-2", loc.Product.SerialNumber)

	// keeping its own serial is not a conflict
	_, err = h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		SerialNumber: models.Set("SN-2"),
		Name:         ptr("renamed"),
	}, testActor)
	require.NoError(t, err)
}

func TestUpdate_NullableFields(t *testing.T) {
	h := newHarness(t)

	in := withSerial(laptopInput(), "SN-1")
	in.Price = &models.Price{Amount: decimal.RequireFromString("1999.99"), CurrencyCode: "usd"}
	in.AdditionalInfo = "sticker on lid"
	p := h.create(in)
	require.Equal(t, "USD", p.Price.CurrencyCode)

	// absent fields are left alone
	updated, err := h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		Name: ptr("work laptop"),
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, "SN-1", updated.SerialNumber)
	require.NotNil(t, updated.Price)

	updated, err = h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		SerialNumber:   models.Null[string](),
		Price:          models.Null[models.Price](),
		AdditionalInfo: models.Null[string](),
	}, testActor)
	require.NoError(t, err)
	require.Empty(t, updated.SerialNumber)
	require.Nil(t, updated.Price)
	require.Empty(t, updated.AdditionalInfo)

	// the cleared serial is free again
	h.create(withSerial(laptopInput(), "SN-1"))
}

func TestUpdate_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Update(h.ctx, testTenant, uuid.New(), models.ProductChanges{Name: ptr("x")}, testActor)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Equal(t, apperr.CodeAssetNotFound, apperr.CodeOf(err))
}

func TestUpdate_AuditDiff(t *testing.T) {
	h := newHarness(t)
	p := h.create(withSerial(laptopInput(), "SN-1"))

	_, err := h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		Condition: ptr(models.ConditionDefective),
	}, testActor)
	require.NoError(t, err)

	records := h.audits(models.AuditActionUpdate, models.ItemKindAsset)
	require.Len(t, records, 1)

	oldData, ok := records[0].OldData.(audit.Snapshot)
	require.True(t, ok)
	newData, ok := records[0].NewData.(audit.Snapshot)
	require.True(t, ok)

	require.Equal(t, string(models.ConditionOptimal), oldData["productCondition"])
	require.Equal(t, string(models.ConditionDefective), newData["productCondition"])
	require.Equal(t, "SN-1", newData["serialNumber"])
	require.Equal(t, "Apple", newData["brand"])
	require.NotContains(t, newData, "location")
	require.NotContains(t, newData, "updatedAt")
}

func TestUpdate_AuditFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t)
	p := h.create(laptopInput())

	h.handle.auditBroken.Store(true)
	updated, err := h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{Name: ptr("renamed")}, testActor)
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)

	h.handle.auditBroken.Store(false)
	require.Empty(t, h.audits(models.AuditActionUpdate, models.ItemKindAsset))
}

func pin(t *testing.T, h *harness, id uuid.UUID) *models.Product {
	t.Helper()
	p, err := h.engine.Update(h.ctx, testTenant, id, models.ProductChanges{FpShipment: ptr(true)}, testActor)
	require.NoError(t, err)
	require.True(t, p.FpShipment)
	require.True(t, p.ActiveShipment)
	return p
}

func TestUpdate_PinnedProductKeepsPin(t *testing.T) {
	h := newHarness(t)
	p := h.create(laptopInput())

	pinned := pin(t, h, p.ID)
	require.Equal(t, models.StatusInTransit, pinned.Status)

	updated, err := h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		FpShipment:     ptr(false),
		ActiveShipment: ptr(false),
		Status:         ptr(models.StatusAvailable),
		Name:           ptr("still editable"),
	}, testActor)
	require.NoError(t, err)
	require.True(t, updated.FpShipment)
	require.True(t, updated.ActiveShipment)
	require.Equal(t, models.StatusInTransit, updated.Status)
	require.Equal(t, "Still Editable", updated.Name)

	updated, err = h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		Status: ptr(models.StatusInTransitMissingData),
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusInTransitMissingData, updated.Status)
}

func TestUpdate_PinnedStatusFollowsShipment(t *testing.T) {
	h := newHarness(t)
	bob := h.member("bob@x.com")

	in := laptopInput()
	in.AssignedEmail = bob.Email
	p := h.create(in)

	h.shipments.set(p.ID, models.ShipmentOnHoldMissingData)
	pinned := pin(t, h, p.ID)
	require.Equal(t, models.StatusInTransitMissingData, pinned.Status)

	h.shipments.set(p.ID, models.ShipmentOnTheWay)
	updated, err := h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{Name: ptr("x")}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusInTransit, updated.Status)

	// a finished shipment still holding the pin keeps the product in transit
	h.shipments.set(p.ID, models.ShipmentReceived)
	updated, err = h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{Name: ptr("y")}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusInTransit, updated.Status)

	released, err := h.engine.ReleaseShipment(h.ctx, testTenant, p.ID, testActor)
	require.NoError(t, err)
	require.False(t, released.FpShipment)
	require.False(t, released.ActiveShipment)
	require.Equal(t, models.StatusDelivered, released.Status)

	unpinned, err := h.engine.Update(h.ctx, testTenant, p.ID, models.ProductChanges{
		Status: ptr(models.StatusInTransit),
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, models.StatusDelivered, unpinned.Status)
}

func TestUpdate_AddressChangeEmitsEventOnlyInShipment(t *testing.T) {
	h := newHarness(t)
	h.member("bob@x.com")
	p := h.create(laptopInput())

	_, err := h.engine.Reassign(h.ctx, testTenant, p.ID, models.ProductChanges{
		Location: ptr(models.LocationFPWarehouse),
	}, testActor)
	require.NoError(t, err)
	require.Empty(t, h.events.Events())

	pin(t, h, p.ID)
	_, err = h.engine.Reassign(h.ctx, testTenant, p.ID, models.ProductChanges{
		AssignedEmail: ptr("bob@x.com"),
	}, testActor)
	require.NoError(t, err)

	emitted := h.events.Named(events.AssetAddressChanged)
	require.Len(t, emitted, 1)
	require.Equal(t, p.ID.String(), emitted[0].EntityID)
	require.Equal(t, testTenant, emitted[0].TenantID)
}

func TestUpdate_EventFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t)
	h.member("bob@x.com")
	p := h.create(laptopInput())
	pin(t, h, p.ID)

	h.events.FailWith(errors.New("nats: no responders"))
	updated, err := h.engine.Reassign(h.ctx, testTenant, p.ID, models.ProductChanges{
		AssignedEmail: ptr("bob@x.com"),
	}, testActor)
	require.NoError(t, err)
	require.Equal(t, "bob@x.com", updated.AssignedEmail)
}
