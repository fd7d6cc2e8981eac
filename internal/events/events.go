// Package events publishes domain events after a mutation committed.
//
// Events carry identifiers only; consumers load whatever else they need.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assettrack/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Name identifies the kind of event.
type Name string

const (
	AssetAddressChanged  Name = "asset-address-changed"
	PersonAddressChanged Name = "person-address-changed"
	OfficeAddressChanged Name = "office-address-changed"
)

// Event is a notification that an entity of a tenant changed.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Name       Name      `json:"name"`
	TenantID   string    `json:"tenantId"`
	EntityID   string    `json:"entityId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// New creates an event stamped with a fresh ID and the current time.
func New(name Name, tenant, entityID string) Event {
	return Event{
		ID:         uuid.Must(uuid.NewV7()),
		Name:       name,
		TenantID:   tenant,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to interested collaborators.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Emit publishes event without failing the caller. Errors are logged and counted.
func Emit(ctx context.Context, p Publisher, event Event) {
	if p == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("event", string(event.Name)))
	if err := p.Publish(ctx, event); err != nil {
		telemetry.GetMetrics().EventPublishErrorTotal.Add(ctx, 1, attrs)
		zerolog.Ctx(ctx).Error().Err(err).
			Str("event", string(event.Name)).
			Str("tenant", event.TenantID).
			Str("entity_id", event.EntityID).
			Msg("Failed to publish event")
		return
	}
	telemetry.GetMetrics().EventsPublishedTotal.Add(ctx, 1, attrs)
}

// Noop discards every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(ctx context.Context, event Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent publishes fail with err. A nil err restores success.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Publish implements Publisher.
func (r *Recorder) Publish(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(name Name) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
