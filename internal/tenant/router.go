// Package tenant routes every operation to the dedicated store of its tenant.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/store"
	"github.com/wolfeidau/assettrack/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

const defaultOpenTimeout = 15 * time.Second

// Router resolves tenant names to open store handles and caches them for reuse.
//
// Concurrent first resolves of the same tenant share a single open. Cached
// handles are read without taking the write lock, so a warm router adds no
// contention to requests.
type Router struct {
	opener      store.Opener
	openTimeout time.Duration

	mu      sync.RWMutex
	handles map[string]store.Handle
	closed  bool

	group singleflight.Group
}

// Option configures a Router.
type Option func(*Router)

// WithOpenTimeout bounds how long a single store open may take. The open is
// detached from the cancellation of the request that triggered it because
// other requests may be waiting on the same open.
func WithOpenTimeout(d time.Duration) Option {
	return func(r *Router) {
		r.openTimeout = d
	}
}

// NewRouter creates a router that opens tenant stores with opener.
func NewRouter(opener store.Opener, opts ...Option) *Router {
	r := &Router{
		opener:      opener,
		openTimeout: defaultOpenTimeout,
		handles:     make(map[string]store.Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the store handle of tenant, opening it on first use.
//
// Returns an apperr Validation error for malformed tenant names and an
// Unavailable error when the store can't be opened.
func (r *Router) Resolve(ctx context.Context, tenant string) (store.Handle, error) {
	name, err := Normalize(tenant)
	if err != nil {
		return nil, err
	}

	if h, ok, err := r.cached(name); ok || err != nil {
		return h, err
	}

	// only the caller whose function runs is the opener, singleflight marks
	// its result as shared too
	var ranOpen bool
	ch := r.group.DoChan(name, func() (any, error) {
		ranOpen = true
		return r.open(ctx, name)
	})

	select {
	case res := <-ch:
		if res.Shared && !ranOpen {
			telemetry.GetMetrics().HandleOpensCoalesced.Add(ctx, 1, tenantAttr(name))
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(store.Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolved returns the names of the tenants with a cached handle, sorted.
func (r *Router) Resolved() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evict closes and forgets the cached handle of tenant. The next Resolve
// opens a fresh handle. Evicting an unknown tenant is a no-op.
func (r *Router) Evict(ctx context.Context, tenant string) error {
	name, err := Normalize(tenant)
	if err != nil {
		return err
	}

	r.mu.Lock()
	h, ok := r.handles[name]
	delete(r.handles, name)
	r.mu.Unlock()

	if !ok {
		return nil
	}

	telemetry.GetMetrics().HandleEvictionsTotal.Add(ctx, 1, tenantAttr(name))
	telemetry.GetMetrics().HandlesActive.Add(ctx, -1)
	log.Info().Str("tenant", name).Msg("Evicted tenant store")

	if err := h.Close(ctx); err != nil {
		return fmt.Errorf("failed to close tenant store %s: %w", name, err)
	}
	return nil
}

// Close closes every cached handle. Resolve fails with Unavailable afterwards.
func (r *Router) Close(ctx context.Context) error {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]store.Handle)
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for name, h := range handles {
		telemetry.GetMetrics().HandlesActive.Add(ctx, -1)
		if err := h.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close tenant store %s: %w", name, err))
		}
	}

	log.Info().Int("count", len(handles)).Msg("Closed tenant stores")
	return errors.Join(errs...)
}

func (r *Router) cached(name string) (store.Handle, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, false, apperr.Unavailable(nil, "tenant router is closed")
	}
	h, ok := r.handles[name]
	return h, ok, nil
}

func (r *Router) open(ctx context.Context, name string) (store.Handle, error) {
	// a previous flight may have finished between the cache miss and now
	if h, ok, err := r.cached(name); ok || err != nil {
		return h, err
	}

	openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.openTimeout)
	defer cancel()

	metrics := telemetry.GetMetrics()
	start := time.Now()

	h, err := r.opener.Open(openCtx, name)
	metrics.HandleOpenDuration.Record(ctx, float64(time.Since(start).Milliseconds()), tenantAttr(name))
	if err != nil {
		metrics.HandleOpenErrorsTotal.Add(ctx, 1, tenantAttr(name))
		log.Error().Err(err).Str("tenant", name).Msg("Failed to open tenant store")
		return nil, apperr.Unavailable(err, "store for tenant %q is unavailable", name)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = h.Close(openCtx)
		return nil, apperr.Unavailable(nil, "tenant router is closed")
	}
	r.handles[name] = h
	r.mu.Unlock()

	metrics.HandleOpensTotal.Add(ctx, 1, tenantAttr(name))
	metrics.HandlesActive.Add(ctx, 1)
	log.Info().Str("tenant", name).Dur("duration", time.Since(start)).Msg("Opened tenant store")

	return h, nil
}

func tenantAttr(name string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("tenant", name))
}
