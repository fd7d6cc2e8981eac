// Package audit builds and persists the immutable history of every mutation.
//
// Writes are best-effort: they happen after the primary mutation committed
// and a failure is logged and counted but never undoes that mutation.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
	"github.com/wolfeidau/assettrack/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Resolver returns the store handle of a tenant.
type Resolver interface {
	Resolve(ctx context.Context, tenant string) (store.Handle, error)
}

// Entry is one mutation to record.
type Entry struct {
	Action   models.AuditAction
	ItemKind models.ItemKind
	ActorID  string
	OldData  any // nil for creations
	NewData  any // nil for deletions
	Context  string
}

// Generator persists audit records into the tenant store.
type Generator struct {
	tenants Resolver
	now     func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a generator writing through tenants.
func NewGenerator(tenants Resolver, opts ...Option) *Generator {
	g := &Generator{tenants: tenants, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Record persists entry for tenant. Failures are logged and swallowed.
func (g *Generator) Record(ctx context.Context, tenant string, entry Entry) {
	if _, err := g.Write(ctx, tenant, entry); err != nil {
		telemetry.GetMetrics().AuditWriteErrorsTotal.Add(ctx, 1, kindAttrs(entry))
		zerolog.Ctx(ctx).Error().Err(err).
			Str("tenant", tenant).
			Str("action", string(entry.Action)).
			Str("item_kind", string(entry.ItemKind)).
			Msg("Failed to write audit record")
	}
}

// Write persists entry for tenant and returns the stored record.
func (g *Generator) Write(ctx context.Context, tenant string, entry Entry) (*models.AuditRecord, error) {
	rec, err := g.build(entry)
	if err != nil {
		return nil, err
	}

	h, err := g.tenants.Resolve(ctx, tenant)
	if err != nil {
		return nil, err
	}

	if err := h.AuditRecords().Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to insert audit record: %w", err)
	}

	telemetry.GetMetrics().AuditRecordsTotal.Add(ctx, 1, kindAttrs(entry))
	zerolog.Ctx(ctx).Debug().
		Str("tenant", tenant).
		Str("audit_id", rec.ID.String()).
		Str("action", string(rec.Action)).
		Msg("Wrote audit record")

	return rec, nil
}

// List returns the audit records of tenant, newest first.
func (g *Generator) List(ctx context.Context, tenant string, filter store.AuditFilter) ([]*models.AuditRecord, error) {
	h, err := g.tenants.Resolve(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return h.AuditRecords().List(ctx, filter)
}

func (g *Generator) build(entry Entry) (*models.AuditRecord, error) {
	if entry.Action == "" || entry.ItemKind == "" {
		return nil, fmt.Errorf("audit entry requires an action and an item kind")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate audit id: %w", err)
	}

	return &models.AuditRecord{
		ID:        id,
		Action:    entry.Action,
		ItemKind:  entry.ItemKind,
		ActorID:   entry.ActorID,
		OldData:   entry.OldData,
		NewData:   entry.NewData,
		Context:   entry.Context,
		CreatedAt: g.now().UTC(),
	}, nil
}

func kindAttrs(entry Entry) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("action", string(entry.Action)),
		attribute.String("item_kind", string(entry.ItemKind)),
	)
}
