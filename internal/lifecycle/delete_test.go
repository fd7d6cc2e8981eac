package lifecycle

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

func TestSoftDelete_RecoverableAssignedIsBlocked(t *testing.T) {
	h := newHarness(t)
	bob := h.member("bob@x.com")

	in := laptopInput()
	in.AssignedEmail = bob.Email
	p := h.create(in)
	require.True(t, p.Recoverable)

	h.handle.txCalls.Store(0)
	err := h.engine.SoftDelete(h.ctx, testTenant, p.ID, testActor)
	require.ErrorIs(t, err, apperr.ErrBusinessRule)
	require.Equal(t, apperr.CodeRecoverableAssigned, apperr.CodeOf(err))
	require.Len(t, h.memberByID(bob.ID).Products, 1)
	require.EqualValues(t, 1, h.handle.txCalls.Load())

	_, err = h.engine.Reassign(h.ctx, testTenant, p.ID, models.ProductChanges{
		AssignedEmail: ptr("none"),
		Location:      ptr(models.LocationFPWarehouse),
	}, testActor)
	require.NoError(t, err)

	require.NoError(t, h.engine.SoftDelete(h.ctx, testTenant, p.ID, testActor))

	records := h.audits(models.AuditActionDelete, models.ItemKindAsset)
	require.Len(t, records, 1)
	require.Nil(t, records[0].NewData)

	_, err = h.engine.Locate(h.ctx, testTenant, p.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	h.requirePlacementInvariant()
}

func TestSoftDelete_Standalone(t *testing.T) {
	h := newHarness(t)
	p := h.create(withSerial(laptopInput(), "SN-1"))

	require.NoError(t, h.engine.SoftDelete(h.ctx, testTenant, p.ID, testActor))

	stored, err := h.handle.Products().Get(h.ctx, p.ID)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted)
	require.NotNil(t, stored.DeletedAt)
	require.Equal(t, models.StatusDeprecated, stored.Status)

	require.Empty(t, h.standalone())

	err = h.engine.SoftDelete(h.ctx, testTenant, p.ID, testActor)
	require.Equal(t, apperr.CodeAssetNotFound, apperr.CodeOf(err))
	require.Len(t, h.audits(models.AuditActionDelete, models.ItemKindAsset), 1)
}

func TestSoftDelete_NonRecoverableAssignedLeavesMember(t *testing.T) {
	h := newHarness(t)
	bob := h.member("bob@x.com")

	in := models.ProductInput{
		Category:      models.CategoryMerchandising,
		Name:          "hoodie",
		AssignedEmail: bob.Email,
	}
	p := h.create(in)
	require.False(t, p.Recoverable)

	require.NoError(t, h.engine.SoftDelete(h.ctx, testTenant, p.ID, testActor))

	require.Empty(t, h.memberByID(bob.ID).Products)

	stored, err := h.handle.Products().Get(h.ctx, p.ID)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted)
	require.Equal(t, bob.Email, stored.LastAssigned)
	h.requirePlacementInvariant()
}

func TestSoftDelete_RetriesTransientConflicts(t *testing.T) {
	h := newHarness(t)
	p := h.create(laptopInput())

	h.handle.txErr = fmt.Errorf("write conflict: %w", store.ErrTransient)
	h.handle.txFailures.Store(1)
	h.handle.txCalls.Store(0)

	require.NoError(t, h.engine.SoftDelete(h.ctx, testTenant, p.ID, testActor))
	require.EqualValues(t, 2, h.handle.txCalls.Load())
	require.Len(t, h.audits(models.AuditActionDelete, models.ItemKindAsset), 1)
}

func TestSoftDelete_ExhaustedRetries(t *testing.T) {
	h := newHarness(t)
	p := h.create(laptopInput())

	h.handle.txErr = fmt.Errorf("write conflict: %w", store.ErrTransient)
	h.handle.txFailures.Store(10)
	h.handle.txCalls.Store(0)

	err := h.engine.SoftDelete(h.ctx, testTenant, p.ID, testActor)
	require.ErrorIs(t, err, apperr.ErrExhaustedRetries)
	require.ErrorIs(t, err, store.ErrTransient)
	require.Contains(t, err.Error(), "3 attempts")
	require.EqualValues(t, 3, h.handle.txCalls.Load())

	h.handle.txFailures.Store(0)
	loc, err := h.engine.Locate(h.ctx, testTenant, p.ID)
	require.NoError(t, err)
	require.False(t, loc.Product.IsDeleted)
	require.Empty(t, h.audits(models.AuditActionDelete, models.ItemKindAsset))
}

func TestSoftDelete_OtherFailuresAreNotRetried(t *testing.T) {
	h := newHarness(t)
	p := h.create(laptopInput())

	h.handle.txErr = fmt.Errorf("disk full")
	h.handle.txFailures.Store(10)
	h.handle.txCalls.Store(0)

	err := h.engine.SoftDelete(h.ctx, testTenant, p.ID, testActor)
	require.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	require.EqualValues(t, 1, h.handle.txCalls.Load())
}
