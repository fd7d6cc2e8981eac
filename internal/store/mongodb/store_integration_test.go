//go:build integration

package mongodb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

func setupMongoContainer(t *testing.T, ctx context.Context) (*Opener, func()) {
	// transactions need a replica set, a single member one is enough
	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	code, _, err := container.Exec(ctx, []string{
		"mongosh", "--quiet", "--eval",
		"rs.initiate({_id: 'rs0', members: [{_id: 0, host: 'localhost:27017'}]})",
	})
	require.NoError(t, err)
	require.Zero(t, code)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	uri := fmt.Sprintf("mongodb://%s:%s/?directConnection=true", host, port.Port())

	// NewOpener waits for the primary to be elected
	opener, err := NewOpener(ctx, Config{URI: uri, ServerSelectionTimeout: 30 * time.Second})
	require.NoError(t, err)

	cleanup := func() {
		_ = opener.Close(ctx)
		_ = container.Terminate(ctx)
	}

	return opener, cleanup
}

func openTenant(t *testing.T, ctx context.Context, opener *Opener, name string) store.Handle {
	t.Helper()
	h, err := opener.Open(ctx, name)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(ctx) })
	return h
}

func newProduct(serial string) *models.Product {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Product{
		ID:       uuid.Must(uuid.NewV7()),
		Category: models.CategoryComputer,
		Name:     "Macbook Pro",
		Attributes: []models.Attribute{
			{Key: models.AttributeBrand, Value: "Apple"},
			{Key: models.AttributeModel, Value: "M3"},
		},
		SerialNumber: serial,
		Location:     models.LocationOurOffice,
		Status:       models.StatusAvailable,
		Condition:    models.ConditionOptimal,
		Recoverable:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newMember(email string) *models.Member {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Member{
		ID:        uuid.Must(uuid.NewV7()),
		Email:     email,
		FirstName: "Bob",
		LastName:  "Builder",
		Products:  []models.Product{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestIntegration_TenantStore(t *testing.T) {
	ctx := context.Background()
	opener, cleanup := setupMongoContainer(t, ctx)
	defer cleanup()

	h := openTenant(t, ctx, opener, "acme")
	require.NoError(t, h.Ping(ctx))

	t.Run("products", func(t *testing.T) {
		p := newProduct("SN-1")
		require.NoError(t, h.Products().Insert(ctx, p))

		got, err := h.Products().Get(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, p.ID, got.ID)
		require.Equal(t, "Apple", got.Brand())

		err = h.Products().Insert(ctx, newProduct("SN-1"))
		require.ErrorIs(t, err, store.ErrDuplicateKey)

		p.IsDeleted = true
		require.NoError(t, h.Products().Replace(ctx, p))

		// deleted products release their serial
		require.NoError(t, h.Products().Insert(ctx, newProduct("SN-1")))

		found, err := h.Products().FindBySerial(ctx, "SN-1")
		require.NoError(t, err)
		require.Len(t, found, 1)

		// blank serials never collide
		require.NoError(t, h.Products().Insert(ctx, newProduct("")))
		require.NoError(t, h.Products().Insert(ctx, newProduct("")))

		_, err = h.Products().Get(ctx, uuid.New())
		require.ErrorIs(t, err, store.ErrNotFound)
		require.ErrorIs(t, h.Products().Delete(ctx, uuid.New()), store.ErrNotFound)
	})

	t.Run("insert many is atomic", func(t *testing.T) {
		before, err := h.Products().List(ctx, store.ListOptions{IncludeDeleted: true})
		require.NoError(t, err)

		err = h.Products().InsertMany(ctx, []*models.Product{newProduct("SN-BATCH"), newProduct("SN-BATCH")})
		require.ErrorIs(t, err, store.ErrDuplicateKey)

		after, err := h.Products().List(ctx, store.ListOptions{IncludeDeleted: true})
		require.NoError(t, err)
		require.Len(t, after, len(before))
	})

	t.Run("members", func(t *testing.T) {
		m := newMember("bob@x.com")
		require.NoError(t, h.Members().Insert(ctx, m))

		err := h.Members().Insert(ctx, newMember("BOB@x.com"))
		require.ErrorIs(t, err, store.ErrDuplicateKey)

		got, err := h.Members().GetByEmail(ctx, "Bob@X.com")
		require.NoError(t, err)
		require.Equal(t, m.ID, got.ID)

		p := newProduct("SN-EMB")
		p.Location = models.LocationEmployee
		p.AssignedEmail = m.Email
		require.NoError(t, h.Members().AddProduct(ctx, m.ID, p))

		owner, err := h.Members().FindProductOwner(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, m.ID, owner.ID)
		require.Len(t, owner.Products, 1)

		holders, err := h.Members().FindBySerial(ctx, "SN-EMB")
		require.NoError(t, err)
		require.Len(t, holders, 1)

		p.Name = "Renamed"
		require.NoError(t, h.Members().UpdateProduct(ctx, m.ID, p))

		m.Address.City = "Montevideo"
		require.NoError(t, h.Members().Update(ctx, m))

		got, err = h.Members().Get(ctx, m.ID)
		require.NoError(t, err)
		require.Equal(t, "Montevideo", got.Address.City)
		require.Len(t, got.Products, 1, "update keeps embedded products")
		require.Equal(t, "Renamed", got.Products[0].Name)

		require.NoError(t, h.Members().RemoveProduct(ctx, m.ID, p.ID))
		require.ErrorIs(t, h.Members().RemoveProduct(ctx, m.ID, p.ID), store.ErrNotFound)

		_, err = h.Members().FindProductOwner(ctx, p.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("move between representations", func(t *testing.T) {
		m := newMember("alice@x.com")
		require.NoError(t, h.Members().Insert(ctx, m))

		p := newProduct("SN-MOVE")
		require.NoError(t, h.Products().Insert(ctx, p))

		err := h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
			loc, err := store.Assets(tx).Find(ctx, p.ID)
			if err != nil {
				return err
			}
			moved := loc.Product.Clone()
			moved.Location = models.LocationEmployee
			moved.AssignedEmail = m.Email
			return store.Assets(tx).Move(ctx, moved, loc.Placement, store.Embedded(m.ID, -1))
		})
		require.NoError(t, err)

		loc, err := store.Assets(h).Find(ctx, p.ID)
		require.NoError(t, err)
		require.True(t, loc.Placement.IsEmbedded())
		require.Equal(t, m.ID, loc.Owner.ID)

		_, err = h.Products().Get(ctx, p.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		p := newProduct("SN-ROLLBACK")
		boom := errors.New("boom")

		err := h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
			if err := tx.Products().Insert(ctx, p); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = h.Products().Get(ctx, p.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("write conflicts are transient", func(t *testing.T) {
		p := newProduct("SN-RACE")
		require.NoError(t, h.Products().Insert(ctx, p))

		read := make(chan struct{})
		proceed := make(chan struct{})
		result := make(chan error, 1)

		go func() {
			result <- h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
				current, err := tx.Products().Get(ctx, p.ID)
				if err != nil {
					return err
				}
				close(read)
				<-proceed
				current.Name = "Loser"
				return tx.Products().Replace(ctx, current)
			})
		}()

		<-read
		err := h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
			current, err := tx.Products().Get(ctx, p.ID)
			if err != nil {
				return err
			}
			current.Name = "Winner"
			return tx.Products().Replace(ctx, current)
		})
		require.NoError(t, err)
		close(proceed)

		err = <-result
		require.True(t, store.IsTransient(err), "got %v", err)
	})

	t.Run("audit records", func(t *testing.T) {
		rec := &models.AuditRecord{
			ID:        uuid.Must(uuid.NewV7()),
			Action:    models.AuditActionUpdate,
			ItemKind:  models.ItemKindAsset,
			ActorID:   "admin@acme.com",
			OldData:   map[string]any{"name": "Old"},
			NewData:   map[string]any{"name": "New"},
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, h.AuditRecords().Insert(ctx, rec))

		records, err := h.AuditRecords().List(ctx, store.AuditFilter{ItemKind: models.ItemKindAsset, Limit: 10})
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, map[string]any{"name": "New"}, records[0].NewData)
	})
}

func TestIntegration_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	opener, cleanup := setupMongoContainer(t, ctx)
	defer cleanup()

	acme := openTenant(t, ctx, opener, "acme")
	globex := openTenant(t, ctx, opener, "globex")

	p := newProduct("SN-SHARED")
	require.NoError(t, acme.Products().Insert(ctx, p))

	_, err := globex.Products().Get(ctx, p.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// serials are unique per tenant only
	require.NoError(t, globex.Products().Insert(ctx, newProduct("SN-SHARED")))

	require.NoError(t, opener.Migrate(ctx, "acme"))
}
