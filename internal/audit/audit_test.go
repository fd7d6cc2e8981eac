package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
	"github.com/wolfeidau/assettrack/internal/store/memory"
	"github.com/wolfeidau/assettrack/internal/tenant"
)

type failingResolver struct{ err error }

func (f failingResolver) Resolve(ctx context.Context, tenant string) (store.Handle, error) {
	return nil, f.err
}

func laptop() *models.Product {
	return &models.Product{
		ID:       uuid.Must(uuid.NewV7()),
		Category: models.CategoryComputer,
		Name:     "Macbook Pro",
		Attributes: []models.Attribute{
			{Key: "brand", Value: "Apple"},
			{Key: "model", Value: "M3"},
			{Key: "ram", Value: "16GB"},
		},
		SerialNumber: "C02XYZ",
		Location:     models.LocationOurOffice,
		Status:       models.StatusAvailable,
		Condition:    models.ConditionOptimal,
		Price:        &models.Price{Amount: decimal.RequireFromString("1999.99"), CurrencyCode: "USD"},
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestGenerator_Write(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	router := tenant.NewRouter(memory.NewOpener())
	g := NewGenerator(router, WithClock(func() time.Time { return now }))

	snap, err := ProductSnapshot(laptop())
	require.NoError(t, err)

	rec, err := g.Write(ctx, "acme", Entry{
		Action:   models.AuditActionCreate,
		ItemKind: models.ItemKindAsset,
		ActorID:  "user-1",
		NewData:  snap,
		Context:  "single-create",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, rec.ID)
	require.Equal(t, now, rec.CreatedAt)
	require.Nil(t, rec.OldData)

	records, err := g.List(ctx, "acme", store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, models.AuditActionCreate, records[0].Action)
	require.Equal(t, "user-1", records[0].ActorID)
	require.Equal(t, "single-create", records[0].Context)

	_, err = g.Write(ctx, "acme", Entry{ItemKind: models.ItemKindAsset})
	require.Error(t, err)
}

func TestGenerator_RecordIsBestEffort(t *testing.T) {
	g := NewGenerator(failingResolver{err: errors.New("store down")})

	require.NotPanics(t, func() {
		g.Record(context.Background(), "acme", Entry{
			Action:   models.AuditActionDelete,
			ItemKind: models.ItemKindAsset,
		})
	})
}

func TestProductDiff(t *testing.T) {
	t.Run("mandatory fields are always present", func(t *testing.T) {
		before := laptop()
		after := before.Clone()
		after.AdditionalInfo = "dented lid"

		oldData, newData, err := ProductDiff(before, after)
		require.NoError(t, err)

		for _, key := range []string{"category", "name", "serialNumber", "brand", "model", "attributes"} {
			require.Contains(t, oldData, key)
			require.Contains(t, newData, key)
		}
		require.Equal(t, "Apple", newData["brand"])
		require.Equal(t, "M3", newData["model"])
		require.Nil(t, oldData["additionalInfo"])
		require.Equal(t, "dented lid", newData["additionalInfo"])

		require.NotContains(t, newData, "location")
		require.NotContains(t, newData, "price")
		require.NotContains(t, newData, "updatedAt")
	})

	t.Run("nested values use deep equality", func(t *testing.T) {
		before := laptop()
		after := before.Clone()
		after.Price = &models.Price{Amount: decimal.RequireFromString("1999.99"), CurrencyCode: "USD"}
		after.UpdatedAt = time.Now()

		oldData, newData, err := ProductDiff(before, after)
		require.NoError(t, err)
		require.NotContains(t, oldData, "price")
		require.NotContains(t, newData, "price")

		after.Price.CurrencyCode = "EUR"
		oldData, newData, err = ProductDiff(before, after)
		require.NoError(t, err)
		require.Contains(t, oldData, "price")
		require.Equal(t, "EUR", newData["price"].(map[string]any)["currencyCode"])
	})

	t.Run("changed assignment", func(t *testing.T) {
		before := laptop()
		after := before.Clone()
		after.Location = models.LocationEmployee
		after.AssignedEmail = "bob@x.com"
		after.Status = models.StatusDelivered

		oldData, newData, err := ProductDiff(before, after)
		require.NoError(t, err)
		require.Equal(t, "Our office", oldData["location"])
		require.Equal(t, "Employee", newData["location"])
		require.Nil(t, oldData["assignedEmail"])
		require.Equal(t, "bob@x.com", newData["assignedEmail"])
		require.Equal(t, "Delivered", newData["status"])
	})

	t.Run("attributes are arrays of key and value", func(t *testing.T) {
		before := laptop()
		before.Attributes = nil
		before.SerialNumber = ""
		after := before.Clone()

		oldData, _, err := ProductDiff(before, after)
		require.NoError(t, err)
		require.Equal(t, []any{}, oldData["attributes"])
		require.Equal(t, "", oldData["serialNumber"])
		require.Equal(t, "", oldData["brand"])
	})
}

func TestMemberSnapshot(t *testing.T) {
	m := &models.Member{
		ID:       uuid.Must(uuid.NewV7()),
		Email:    "bob@x.com",
		Products: []models.Product{*laptop()},
	}
	snap, err := MemberSnapshot(m)
	require.NoError(t, err)
	require.Equal(t, "bob@x.com", snap["email"])
	require.NotContains(t, snap, "products")

	snap, err = MemberSnapshot(nil)
	require.NoError(t, err)
	require.Nil(t, snap)
}
