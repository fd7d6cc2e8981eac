package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

// Store implements store.Handle for a single tenant using in-memory storage.
// This implementation is for testing and local runs only - data is lost on restart.
//
// Transactions work on a deep copy of the data which replaces the live copy
// only when the transaction function succeeds.
type Store struct {
	tenant string

	mu     sync.RWMutex
	txMu   sync.Mutex // one writer transaction at a time
	data   *state
	closed bool
}

// state is everything stored for one tenant.
type state struct {
	products map[uuid.UUID]*models.Product // product_id -> standalone Product
	members  map[uuid.UUID]*models.Member  // member_id -> Member with embedded products
	audit    []*models.AuditRecord

	serials map[string]uuid.UUID // live serial -> standalone product_id, sparse
	emails  map[string]uuid.UUID // lowercase email -> live member_id
}

func newState() *state {
	return &state{
		products: make(map[uuid.UUID]*models.Product),
		members:  make(map[uuid.UUID]*models.Member),
		serials:  make(map[string]uuid.UUID),
		emails:   make(map[string]uuid.UUID),
	}
}

func (s *state) clone() *state {
	c := &state{
		products: make(map[uuid.UUID]*models.Product, len(s.products)),
		members:  make(map[uuid.UUID]*models.Member, len(s.members)),
		audit:    make([]*models.AuditRecord, len(s.audit)),
		serials:  make(map[string]uuid.UUID, len(s.serials)),
		emails:   make(map[string]uuid.UUID, len(s.emails)),
	}
	for id, p := range s.products {
		c.products[id] = p.Clone()
	}
	for id, m := range s.members {
		c.members[id] = m.Clone()
	}
	// audit records are immutable once written
	copy(c.audit, s.audit)
	for k, v := range s.serials {
		c.serials[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	return c
}

// New creates an empty in-memory store for tenant.
func New(tenant string) *Store {
	return &Store{tenant: tenant, data: newState()}
}

// Tenant implements store.Handle.
func (s *Store) Tenant() string { return s.tenant }

// Products implements store.Accessors.
func (s *Store) Products() store.ProductRepository { return &productRepo{s: s.session()} }

// Members implements store.Accessors.
func (s *Store) Members() store.MemberRepository { return &memberRepo{s: s.session()} }

// AuditRecords implements store.Accessors.
func (s *Store) AuditRecords() store.AuditRepository { return &auditRepo{s: s.session()} }

// WithTx runs fn against a private copy of the data and publishes the copy
// when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn store.TxFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("tenant %s: %w", s.tenant, store.ErrUnavailable)
	}
	working := s.data.clone()
	s.mu.RUnlock()

	tx := &txAccessors{sess: &txSession{data: working}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = working
	return nil
}

// Ping implements store.Handle.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("tenant %s: %w", s.tenant, store.ErrUnavailable)
	}
	return nil
}

// Close implements store.Handle.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) session() session { return &liveSession{s: s} }

// session gives repositories guarded access to a state.
type session interface {
	read(fn func(*state) error) error
	write(fn func(*state) error) error
}

type liveSession struct{ s *Store }

func (l *liveSession) read(fn func(*state) error) error {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	if l.s.closed {
		return store.ErrUnavailable
	}
	return fn(l.s.data)
}

func (l *liveSession) write(fn func(*state) error) error {
	// writes outside a transaction still wait for running transactions so
	// they are not lost when the transaction publishes its copy
	l.s.txMu.Lock()
	defer l.s.txMu.Unlock()
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.s.closed {
		return store.ErrUnavailable
	}
	return fn(l.s.data)
}

// txSession is used by a single transaction goroutine and needs no locking.
type txSession struct{ data *state }

func (t *txSession) read(fn func(*state) error) error  { return fn(t.data) }
func (t *txSession) write(fn func(*state) error) error { return fn(t.data) }

type txAccessors struct{ sess session }

func (t *txAccessors) Products() store.ProductRepository { return &productRepo{s: t.sess} }
func (t *txAccessors) Members() store.MemberRepository   { return &memberRepo{s: t.sess} }
func (t *txAccessors) AuditRecords() store.AuditRepository {
	return &auditRepo{s: t.sess}
}

func serialKey(serial string) string {
	return strings.TrimSpace(serial)
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func sortByCreated[T any](items []T, created func(T) (int64, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := created(items[i])
		tj, idj := created(items[j])
		if ti != tj {
			return ti < tj
		}
		return idi < idj
	})
}
