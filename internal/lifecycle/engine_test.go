package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/events"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
	"github.com/wolfeidau/assettrack/internal/store/memory"
	"github.com/wolfeidau/assettrack/internal/tenant"
	"github.com/wolfeidau/assettrack/internal/tenantconfig"
)

const (
	testTenant = "acme"
	testActor  = "admin@acme.com"
)

// faultyHandle wraps a tenant store and injects failures.
type faultyHandle struct {
	store.Handle

	txFailures  atomic.Int32 // remaining WithTx calls that fail with txErr
	txErr       error
	txCalls     atomic.Int32
	auditBroken atomic.Bool
}

func (f *faultyHandle) WithTx(ctx context.Context, fn store.TxFunc) error {
	f.txCalls.Add(1)
	if f.txFailures.Load() > 0 {
		f.txFailures.Add(-1)
		// run the function so the failure happens at commit time
		_ = f.Handle.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
			if err := fn(ctx, tx); err != nil {
				return err
			}
			return errors.New("rolled back")
		})
		return f.txErr
	}
	return f.Handle.WithTx(ctx, fn)
}

func (f *faultyHandle) AuditRecords() store.AuditRepository {
	if f.auditBroken.Load() {
		return brokenAudit{}
	}
	return f.Handle.AuditRecords()
}

type brokenAudit struct{}

func (brokenAudit) Insert(ctx context.Context, record *models.AuditRecord) error {
	return errors.New("audit collection unavailable")
}

func (brokenAudit) List(ctx context.Context, filter store.AuditFilter) ([]*models.AuditRecord, error) {
	return nil, errors.New("audit collection unavailable")
}

// fakeShipments serves shipment statuses per product.
type fakeShipments struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]models.ShipmentStatus
}

func (f *fakeShipments) set(id uuid.UUID, s models.ShipmentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = s
}

func (f *fakeShipments) ActiveShipmentStatus(ctx context.Context, tenant string, productID uuid.UUID) (models.ShipmentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[productID], nil
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	engine    *Engine
	handle    *faultyHandle
	events    *events.Recorder
	shipments *fakeShipments
	config    *tenantconfig.Static
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:         t,
		ctx:       context.Background(),
		handle:    &faultyHandle{Handle: memory.New(testTenant)},
		events:    events.NewRecorder(),
		shipments: &fakeShipments{statuses: make(map[uuid.UUID]models.ShipmentStatus)},
	}

	cfg, err := tenantconfig.NewStatic(tenantconfig.File{})
	require.NoError(t, err)
	h.config = cfg

	opener := store.OpenerFunc(func(ctx context.Context, name string) (store.Handle, error) {
		if name != testTenant {
			return nil, store.ErrUnavailable
		}
		return h.handle, nil
	})

	h.engine, err = New(Config{
		Tenants:   tenant.NewRouter(opener),
		Defaults:  cfg,
		Shipments: h.shipments,
		Events:    h.events,
		Retry:     RetryConfig{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	})
	require.NoError(t, err)

	return h
}

func (h *harness) member(email string) *models.Member {
	h.t.Helper()
	m, err := h.engine.CreateMember(h.ctx, testTenant, models.MemberInput{
		Email:     email,
		FirstName: "Bob",
		LastName:  "Builder",
		Address: models.Address{
			Address: "1 Main St",
			City:    "Montevideo",
			Country: "UY",
			ZipCode: "11000",
		},
	}, testActor)
	require.NoError(h.t, err)
	return m
}

func (h *harness) create(in models.ProductInput) *models.Product {
	h.t.Helper()
	p, err := h.engine.Create(h.ctx, testTenant, in, testActor)
	require.NoError(h.t, err)
	return p
}

func (h *harness) standalone() []*models.Product {
	h.t.Helper()
	all, err := h.handle.Products().List(h.ctx, store.ListOptions{})
	require.NoError(h.t, err)
	return all
}

func (h *harness) memberByID(id uuid.UUID) *models.Member {
	h.t.Helper()
	m, err := h.handle.Members().Get(h.ctx, id)
	require.NoError(h.t, err)
	return m
}

func (h *harness) audits(action models.AuditAction, kind models.ItemKind) []*models.AuditRecord {
	h.t.Helper()
	records, err := h.handle.Handle.AuditRecords().List(h.ctx, store.AuditFilter{Action: action, ItemKind: kind})
	require.NoError(h.t, err)
	return records
}

// requirePlacementInvariant checks every stored product: employee location
// exactly when assigned, and each product held by exactly one representation.
func (h *harness) requirePlacementInvariant() {
	h.t.Helper()

	seen := map[uuid.UUID]int{}
	all, err := h.handle.Products().List(h.ctx, store.ListOptions{IncludeDeleted: true})
	require.NoError(h.t, err)
	for _, p := range all {
		seen[p.ID]++
		require.Equal(h.t, p.Location == models.LocationEmployee, p.AssignedEmail != "", "product %s", p.ID)
	}

	members, err := h.handle.Members().List(h.ctx, store.ListOptions{IncludeDeleted: true})
	require.NoError(h.t, err)
	for _, m := range members {
		for _, p := range m.Products {
			seen[p.ID]++
			require.Equal(h.t, models.LocationEmployee, p.Location)
			require.Equal(h.t, m.Email, p.AssignedEmail)
		}
	}

	for id, n := range seen {
		require.Equal(h.t, 1, n, "product %s stored %d times", id, n)
	}
}

func laptopInput() models.ProductInput {
	return models.ProductInput{
		Category: models.CategoryComputer,
		Name:     "  macbook   pro ",
		Attributes: []models.Attribute{
			{Key: "brand", Value: "Apple"},
			{Key: "model", Value: "M3 Pro"},
		},
		Location: models.LocationOurOffice,
	}
}

func withSerial(in models.ProductInput, serial string) models.ProductInput {
	in.SerialNumber = serial
	return in
}

func ptr[T any](v T) *T { return &v }

func TestNew(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Tenants: tenant.NewRouter(memory.NewOpener())})
	require.Error(t, err)
}

func TestEngine_StoreUnavailable(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Create(h.ctx, "globex", laptopInput(), testActor)
	require.ErrorIs(t, err, apperr.ErrUnavailable)

	code, _ := apperr.Public(err)
	require.Equal(t, apperr.CodeStoreUnavailable, code)
}

func TestEngine_InvalidTenant(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Locate(h.ctx, "not a tenant", uuid.New())
	require.Equal(t, apperr.CodeInvalidTenant, apperr.CodeOf(err))
}
