package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConfig configures the JetStream publisher.
type JetStreamConfig struct {
	// Stream is the JetStream stream holding the events.
	// Default: ASSETTRACK_EVENTS
	Stream string

	// SubjectPrefix is prepended to "<tenant>.<event>".
	// Default: assettrack
	SubjectPrefix string

	// MaxAge bounds how long events are retained.
	// Default: 7 days
	MaxAge time.Duration
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *JetStreamConfig) ApplyDefaults() {
	if c.Stream == "" {
		c.Stream = "ASSETTRACK_EVENTS"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "assettrack"
	}
	if c.MaxAge == 0 {
		c.MaxAge = 7 * 24 * time.Hour
	}
}

// JetStreamPublisher publishes events to a NATS JetStream stream on
// subjects of the form <prefix>.<tenant>.<event>.
type JetStreamPublisher struct {
	js     jetstream.JetStream
	prefix string
}

// NewJetStreamPublisher creates or updates the stream and returns a publisher.
func NewJetStreamPublisher(ctx context.Context, nc *nats.Conn, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	cfg.ApplyDefaults()

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.SubjectPrefix + ".*.*"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    cfg.MaxAge,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stream %s: %w", cfg.Stream, err)
	}

	log.Info().Str("stream", cfg.Stream).Str("prefix", cfg.SubjectPrefix).Msg("JetStream event stream ready")

	return &JetStreamPublisher{js: js, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the subject an event is published on.
func (p *JetStreamPublisher) Subject(event Event) string {
	return Subject(p.prefix, event)
}

// Publish implements Publisher. The event ID doubles as the JetStream message
// ID so redelivered publishes are de-duplicated by the server.
func (p *JetStreamPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = p.js.Publish(ctx, p.Subject(event), payload, jetstream.WithMsgID(event.ID.String()))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subject builds <prefix>.<tenant>.<event>.
func Subject(prefix string, event Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, event.TenantID, event.Name)
}
