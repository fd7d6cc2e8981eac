package memory

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/store"
)

// Opener hands out one in-memory Store per tenant. Stores survive Close so a
// re-opened tenant sees its previous data, like a real database would.
type Opener struct {
	mu     sync.Mutex
	stores map[string]*Store
	opens  map[string]int
}

// NewOpener creates an empty opener.
func NewOpener() *Opener {
	return &Opener{
		stores: make(map[string]*Store),
		opens:  make(map[string]int),
	}
}

// Open implements store.Opener.
func (o *Opener) Open(ctx context.Context, tenant string) (store.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.opens[tenant]++

	st, exists := o.stores[tenant]
	if !exists {
		log.Debug().Str("tenant", tenant).Msg("Creating in-memory tenant store")
		st = New(tenant)
		o.stores[tenant] = st
		return st, nil
	}

	if !st.isClosed() {
		return st, nil
	}

	// reopen after Close
	reopened := &Store{tenant: tenant, data: st.snapshot()}
	o.stores[tenant] = reopened
	return reopened, nil
}

// Opens returns how many times tenant has been opened.
func (o *Opener) Opens(tenant string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[tenant]
}

func (s *Store) snapshot() *state {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.clone()
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
