package mongodb

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assettrack/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

func TestProductDoc(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	p := &models.Product{
		ID:       uuid.Must(uuid.NewV7()),
		Category: models.CategoryComputer,
		Name:     "Macbook Pro",
		Attributes: []models.Attribute{
			{Key: models.AttributeBrand, Value: "Apple"},
		},
		Location:  models.LocationOurOffice,
		Status:    models.StatusAvailable,
		Condition: models.ConditionOptimal,
		Price:     &models.Price{Amount: decimal.RequireFromString("1999.95"), CurrencyCode: "USD"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("blank serial is omitted", func(t *testing.T) {
		doc, err := toProductDoc(p)
		require.NoError(t, err)

		raw, err := bson.Marshal(doc)
		require.NoError(t, err)
		_, err = bson.Raw(raw).LookupErr("serialNumber")
		require.Error(t, err, "a blank serial must not reach the unique index")
	})

	t.Run("price keeps its precision", func(t *testing.T) {
		p := p.Clone()
		p.SerialNumber = "SN-1"

		doc, err := toProductDoc(p)
		require.NoError(t, err)
		raw, err := bson.Marshal(doc)
		require.NoError(t, err)

		var decoded productDoc
		require.NoError(t, bson.Unmarshal(raw, &decoded))
		got, err := decoded.toModel()
		require.NoError(t, err)

		require.Equal(t, "SN-1", got.SerialNumber)
		require.True(t, p.Price.Equal(got.Price), "got %v", got.Price)
		require.Equal(t, "Apple", got.Brand())
		require.Equal(t, now, got.CreatedAt.UTC())
	})
}

func TestMemberFields(t *testing.T) {
	m := &models.Member{
		ID:       uuid.Must(uuid.NewV7()),
		Email:    "bob@x.com",
		Products: []models.Product{{ID: uuid.Must(uuid.NewV7())}},
	}
	doc, err := toMemberDoc(m)
	require.NoError(t, err)
	require.Len(t, doc.Products, 1)

	fields := memberFields(doc)
	require.NotContains(t, fields, "products")
	require.NotContains(t, fields, "_id")
	require.Equal(t, "bob@x.com", fields["email"])
}

func TestAuditDoc(t *testing.T) {
	rec := &models.AuditRecord{
		ID:       uuid.Must(uuid.NewV7()),
		Action:   models.AuditActionDelete,
		ItemKind: models.ItemKindAsset,
		ActorID:  "admin@acme.com",
		OldData: map[string]any{
			"name":  "Macbook",
			"price": map[string]any{"amount": "10.5", "currencyCode": "USD"},
		},
		NewData:   nil,
		CreatedAt: time.Now().UTC(),
	}

	raw, err := bson.Marshal(toAuditDoc(rec))
	require.NoError(t, err)

	var stored storedAuditDoc
	require.NoError(t, bson.Unmarshal(raw, &stored))
	got, err := stored.toModel()
	require.NoError(t, err)

	require.Equal(t, rec.ID, got.ID)
	require.Nil(t, got.NewData)
	require.Equal(t, rec.OldData, got.OldData)
}
