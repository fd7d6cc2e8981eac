// Package lifecycle is the asset lifecycle engine. It locates products in
// either representation, applies updates under the shipment pinning rules,
// moves products between the standalone collection and their assignee, and
// commits every mutation in one tenant store transaction before auditing it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/audit"
	"github.com/wolfeidau/assettrack/internal/events"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/serial"
	"github.com/wolfeidau/assettrack/internal/status"
	"github.com/wolfeidau/assettrack/internal/store"
	"github.com/wolfeidau/assettrack/internal/telemetry"
	"github.com/wolfeidau/assettrack/internal/tenantconfig"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Resolver returns the store handle of a tenant.
type Resolver interface {
	Resolve(ctx context.Context, tenant string) (store.Handle, error)
}

// ShipmentStatusProvider reports the status of the shipment currently holding
// a product, or models.ShipmentNone.
type ShipmentStatusProvider interface {
	ActiveShipmentStatus(ctx context.Context, tenant string, productID uuid.UUID) (models.ShipmentStatus, error)
}

// NoShipments is a ShipmentStatusProvider for deployments without logistics.
type NoShipments struct{}

// ActiveShipmentStatus implements ShipmentStatusProvider.
func (NoShipments) ActiveShipmentStatus(ctx context.Context, tenant string, productID uuid.UUID) (models.ShipmentStatus, error) {
	return models.ShipmentNone, nil
}

// RetryConfig controls how soft deletes retry transient conflicts.
type RetryConfig struct {
	// MaxAttempts is the total number of transaction attempts.
	// Default: 3
	MaxAttempts uint

	// InitialInterval is the wait before the second attempt.
	// Default: 50ms
	InitialInterval time.Duration

	// MaxInterval caps the wait between attempts.
	// Default: 1s
	MaxInterval time.Duration
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *RetryConfig) ApplyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = 50 * time.Millisecond
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = time.Second
	}
}

// Config wires the collaborators of the engine.
type Config struct {
	Tenants   Resolver
	Defaults  tenantconfig.Provider
	Shipments ShipmentStatusProvider
	Events    events.Publisher
	Status    *status.Resolver
	Retry     RetryConfig
	Clock     func() time.Time
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Tenants == nil {
		return fmt.Errorf("tenant resolver is required")
	}
	if c.Defaults == nil {
		return fmt.Errorf("tenant config provider is required")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.Shipments == nil {
		c.Shipments = NoShipments{}
	}
	if c.Events == nil {
		c.Events = events.Noop{}
	}
	if c.Status == nil {
		c.Status = status.NewResolver(nil)
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	c.Retry.ApplyDefaults()
}

// Engine orchestrates every product and member mutation.
type Engine struct {
	tenants   Resolver
	defaults  tenantconfig.Provider
	shipments ShipmentStatusProvider
	events    events.Publisher
	status    *status.Resolver
	guard     *serial.Guard
	audit     *audit.Generator
	retry     RetryConfig
	now       func() time.Time
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lifecycle config: %w", err)
	}

	return &Engine{
		tenants:   cfg.Tenants,
		defaults:  cfg.Defaults,
		shipments: cfg.Shipments,
		events:    cfg.Events,
		status:    cfg.Status,
		guard:     serial.NewGuard(cfg.Tenants),
		audit:     audit.NewGenerator(cfg.Tenants, audit.WithClock(cfg.Clock)),
		retry:     cfg.Retry,
		now:       cfg.Clock,
	}, nil
}

// Audit exposes the audit generator so services outside the engine record
// their mutations with the same shape.
func (e *Engine) Audit() *audit.Generator {
	return e.audit
}

// Guard exposes the serial uniqueness guard.
func (e *Engine) Guard() *serial.Guard {
	return e.guard
}

// op wraps one public operation with tracing, metrics, a scoped logger and
// error classification.
func (e *Engine) op(ctx context.Context, name, tenant, actor string, fn func(ctx context.Context, h store.Handle) error) error {
	ctx, span := telemetry.Tracer().Start(ctx, "lifecycle."+name, trace.WithAttributes(
		attribute.String("tenant", tenant),
		attribute.String("actor", actor),
	))
	defer span.End()

	logger := log.Ctx(ctx).With().Str("op", name).Str("tenant", tenant).Str("actor", actor).Logger()
	ctx = logger.WithContext(ctx)

	metrics := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("op", name))
	start := time.Now()

	err := func() error {
		h, err := e.tenants.Resolve(ctx, tenant)
		if err != nil {
			return err
		}
		return fn(ctx, h)
	}()

	metrics.OperationsTotal.Add(ctx, 1, attrs)
	metrics.OperationDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err != nil {
		err = classify(err)
		metrics.OperationErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", name),
			attribute.String("code", apperr.CodeOf(err)),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.CodeOf(err))
		logEvent(logger, err).Err(err).Dur("duration", time.Since(start)).Msg("Lifecycle operation failed")
		return err
	}

	logger.Debug().Dur("duration", time.Since(start)).Msg("Lifecycle operation completed")
	return nil
}

func logEvent(logger zerolog.Logger, err error) *zerolog.Event {
	switch apperr.KindOf(err) {
	case apperr.KindInternal, apperr.KindUnavailable, apperr.KindExhaustedRetries:
		return logger.Error()
	default:
		return logger.Info()
	}
}

// classify maps store sentinels that escaped the operation to the caller
// facing taxonomy. Already classified errors pass through unchanged.
func classify(err error) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, store.ErrUnavailable):
		return apperr.Unavailable(err, "tenant store is unavailable")
	case errors.Is(err, store.ErrTransient):
		return apperr.Conflict(err, "concurrent modification, please retry")
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(apperr.CodeNotFound, "record not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.Unavailable(err, "operation did not complete in time")
	}
	return apperr.Internal(err, "unexpected failure")
}

// resolveStatus computes the status of p, consulting the shipment provider
// and the assignee's address only for pinned products.
func (e *Engine) resolveStatus(ctx context.Context, tenant string, p *models.Product, assignee *models.Member) (models.Status, error) {
	in := status.Input{
		Location:         p.Location,
		AssignedEmail:    p.AssignedEmail,
		Condition:        p.Condition,
		PinnedByShipment: p.FpShipment,
	}

	if p.FpShipment {
		shipment, err := e.shipments.ActiveShipmentStatus(ctx, tenant, p.ID)
		if err != nil {
			return "", fmt.Errorf("failed to read shipment status: %w", err)
		}
		in.ShipmentStatus = shipment
		if assignee != nil {
			addr := assignee.Address
			in.AssigneeAddress = &addr
		}
	}

	return e.status.Resolve(in), nil
}

// assetNotFound replaces a store miss with the caller facing error.
func assetNotFound(err error, id uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(apperr.CodeAssetNotFound, "asset %s not found", id)
	}
	return err
}

// memberByEmail is the person directory lookup used to resolve assignees.
func memberByEmail(ctx context.Context, tx store.Accessors, email string) (*models.Member, error) {
	m, err := tx.Members().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(apperr.CodeMemberNotFound, "member %q not found", email)
	}
	return m, err
}
