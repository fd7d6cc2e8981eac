package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assettrack/internal/store"
)

func TestAssetRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("find searches standalone then members", func(t *testing.T) {
		st := New("acme")
		standalone := newProduct("A")
		embedded := newProduct("B")
		m := newMember("bob@x.com")
		require.NoError(t, st.Products().Insert(ctx, standalone))
		require.NoError(t, st.Members().Insert(ctx, m))
		require.NoError(t, st.Members().AddProduct(ctx, m.ID, embedded))

		assets := store.Assets(st)

		loc, err := assets.Find(ctx, standalone.ID)
		require.NoError(t, err)
		require.Equal(t, store.PlacementStandalone, loc.Placement.Kind)
		require.Nil(t, loc.Owner)

		loc, err = assets.Find(ctx, embedded.ID)
		require.NoError(t, err)
		require.True(t, loc.Placement.IsEmbedded())
		require.Equal(t, m.ID, loc.Placement.MemberID)
		require.Equal(t, 0, loc.Placement.Index)
		require.Equal(t, m.ID, loc.Owner.ID)

		_, err = assets.Find(ctx, uuid.New())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("soft deleted products are not found", func(t *testing.T) {
		st := New("acme")
		p := newProduct("")
		p.IsDeleted = true
		require.NoError(t, st.Products().Insert(ctx, p))

		_, err := store.Assets(st).Find(ctx, p.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("move between representations", func(t *testing.T) {
		st := New("acme")
		p := newProduct("SN-1")
		bob := newMember("bob@x.com")
		alice := newMember("alice@x.com")
		require.NoError(t, st.Products().Insert(ctx, p))
		require.NoError(t, st.Members().Insert(ctx, bob))
		require.NoError(t, st.Members().Insert(ctx, alice))

		assets := store.Assets(st)

		require.NoError(t, assets.Move(ctx, p, store.Standalone(), store.Embedded(bob.ID, -1)))
		_, err := st.Products().Get(ctx, p.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, assets.Move(ctx, p, store.Embedded(bob.ID, 0), store.Embedded(alice.ID, -1)))
		owner, err := st.Members().FindProductOwner(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, alice.ID, owner.ID)

		require.NoError(t, assets.Move(ctx, p, store.Embedded(alice.ID, 0), store.Standalone()))
		_, err = st.Products().Get(ctx, p.ID)
		require.NoError(t, err)
		_, err = st.Members().FindProductOwner(ctx, p.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("upsert inserts or replaces", func(t *testing.T) {
		st := New("acme")
		p := newProduct("")
		assets := store.Assets(st)

		require.NoError(t, assets.Upsert(ctx, p, store.Standalone()))
		p.Name = "Renamed"
		require.NoError(t, assets.Upsert(ctx, p, store.Standalone()))

		got, err := st.Products().Get(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, "Renamed", got.Name)

		require.Error(t, assets.Upsert(ctx, p, store.Placement{}))
	})
}
