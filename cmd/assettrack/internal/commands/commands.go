package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assettrack/internal/events"
	"github.com/wolfeidau/assettrack/internal/lifecycle"
	"github.com/wolfeidau/assettrack/internal/logger"
	"github.com/wolfeidau/assettrack/internal/status"
	"github.com/wolfeidau/assettrack/internal/store"
	memorystore "github.com/wolfeidau/assettrack/internal/store/memory"
	mongostore "github.com/wolfeidau/assettrack/internal/store/mongodb"
	postgresstore "github.com/wolfeidau/assettrack/internal/store/postgres"
	"github.com/wolfeidau/assettrack/internal/telemetry"
	"github.com/wolfeidau/assettrack/internal/tenant"
	"github.com/wolfeidau/assettrack/internal/tenantconfig"
)

type Globals struct {
	Dev     bool
	Version string
	Options *Options

	// Out receives command output, stdout when nil.
	Out io.Writer
	// In is read when a command input is "-", stdin when nil.
	In io.Reader

	// memory is kept so in-memory tenant stores outlive a single command
	// within one process.
	memory *memorystore.Opener
}

// Options are the flags shared by every command.
type Options struct {
	Tenant string `help:"tenant the command operates on" env:"ASSETTRACK_TENANT"`
	Actor  string `help:"user id recorded in the audit trail" default:"cli" env:"ASSETTRACK_ACTOR"`

	// Store configuration
	StoreType     string             `help:"store type (memory, postgres or mongodb)" default:"memory" env:"ASSETTRACK_STORE_TYPE" enum:"memory,postgres,mongodb"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	MongoStore    MongoStoreFlags    `embed:"" prefix:"mongodb-"`

	TenantConfig TenantConfigFlags `embed:"" prefix:"tenant-config-"`
	Events       EventFlags        `embed:"" prefix:"events-"`

	AddressRequiredFields []string      `help:"address fields a pinned assignee must have" default:"address,city,country,zipCode" env:"ASSETTRACK_ADDRESS_REQUIRED_FIELDS"`
	OpenTimeout           time.Duration `help:"time allowed to open a tenant store" default:"30s" env:"ASSETTRACK_OPEN_TIMEOUT"`

	Tracing bool `help:"export traces and metrics over OTLP" default:"false" env:"ASSETTRACK_TRACING"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string of the admin database" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in the admin pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in the admin pool" default:"1"`
	TenantMaxConns  int32 `help:"maximum number of connections per tenant pool" default:"10"`
	TenantMinConns  int32 `help:"minimum number of connections per tenant pool" default:"1"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Provisioning Configuration
	CreateDatabases bool `help:"create missing tenant databases" default:"false" env:"ASSETTRACK_POSTGRES_CREATE_DATABASES"`
	AutoMigrate     bool `help:"run database migrations when a tenant is opened" default:"false" env:"ASSETTRACK_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) config() postgresstore.Config {
	return postgresstore.Config{
		Pool: postgresstore.PoolConfig{
			ConnString:      s.ConnString,
			MaxConns:        s.MaxConns,
			MinConns:        s.MinConns,
			MaxConnLifetime: s.MaxConnLifetime,
			MaxConnIdleTime: s.MaxConnIdleTime,
		},
		TenantMaxConns:  s.TenantMaxConns,
		TenantMinConns:  s.TenantMinConns,
		CreateDatabases: s.CreateDatabases,
		AutoMigrate:     s.AutoMigrate,
	}
}

type MongoStoreFlags struct {
	URI         string `help:"MongoDB connection string, transactions need a replica set" env:"MONGODB_URI"`
	MaxPoolSize uint64 `help:"maximum number of connections shared by all tenants" default:"50"`
}

type TenantConfigFlags struct {
	File          string        `help:"YAML file with recoverable defaults per tenant" type:"existingfile" env:"ASSETTRACK_TENANT_CONFIG_FILE"`
	RedisAddr     string        `help:"Redis address used to cache tenant config" env:"ASSETTRACK_REDIS_ADDR"`
	RedisPassword string        `help:"Redis password" env:"ASSETTRACK_REDIS_PASSWORD"`
	RedisDB       int           `help:"Redis database" default:"0"`
	CacheTTL      time.Duration `help:"how long cached tenant config is served" default:"5m"`
}

type EventFlags struct {
	NatsURL       string `help:"NATS server URL, events are discarded when empty" env:"ASSETTRACK_NATS_URL"`
	Stream        string `help:"JetStream stream holding the events" default:"ASSETTRACK_EVENTS"`
	SubjectPrefix string `help:"subject prefix of published events" default:"assettrack"`
}

// Validate checks that the selected backend is configured.
func (o *Options) Validate() error {
	switch o.StoreType {
	case "postgres":
		if o.PostgresStore.ConnString == "" {
			return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
		}
	case "mongodb":
		if o.MongoStore.URI == "" {
			return errors.New("MongoDB uri is required (--mongodb-uri or MONGODB_URI)")
		}
	}
	for _, field := range o.AddressRequiredFields {
		if !status.KnownField(field) {
			return fmt.Errorf("unknown address field %q", field)
		}
	}
	return nil
}

// migrator is implemented by backends that provision tenant stores.
type migrator interface {
	Migrate(ctx context.Context, tenant string) error
}

// Runtime holds everything a command needs to run lifecycle operations.
type Runtime struct {
	Engine   *lifecycle.Engine
	Router   *tenant.Router
	Options  *Options
	commands *logger.Commands
	migrator migrator
	closers  []func(ctx context.Context) error
}

// Open wires the configured backend, event publisher and tenant config
// provider into a lifecycle engine.
func (g *Globals) Open(ctx context.Context) (*Runtime, error) {
	log := logger.Setup(g.Dev)
	opts := g.Options
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{Options: opts, commands: logger.NewCommands(log)}
	ok := false
	defer func() {
		if !ok {
			rt.Close(ctx)
		}
	}()

	if opts.Tracing {
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "assettrack",
			Version:     g.Version,
			SampleRatio: 1,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		} else {
			rt.closers = append(rt.closers, shutdown)
		}
	}

	opener, err := rt.openBackend(ctx, g, log)
	if err != nil {
		return nil, err
	}

	rt.Router = tenant.NewRouter(opener, tenant.WithOpenTimeout(opts.OpenTimeout))
	rt.closers = append(rt.closers, rt.Router.Close)

	defaults, err := rt.tenantConfig(ctx, log)
	if err != nil {
		return nil, err
	}

	publisher, err := rt.eventPublisher(ctx, log)
	if err != nil {
		return nil, err
	}

	rt.Engine, err = lifecycle.New(lifecycle.Config{
		Tenants:  rt.Router,
		Defaults: defaults,
		Events:   publisher,
		Status:   status.NewResolver(status.RequiredFields(opts.AddressRequiredFields)),
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return rt, nil
}

func (rt *Runtime) openBackend(ctx context.Context, g *Globals, log zerolog.Logger) (store.Opener, error) {
	opts := rt.Options

	switch opts.StoreType {
	case "postgres":
		opener, err := postgresstore.NewOpener(ctx, opts.PostgresStore.config())
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres opener: %w", err)
		}
		rt.migrator = opener
		rt.closers = append(rt.closers, func(context.Context) error {
			opener.Close()
			return nil
		})
		log.Info().Msg("Using PostgreSQL tenant stores")
		return opener, nil

	case "mongodb":
		opener, err := mongostore.NewOpener(ctx, mongostore.Config{
			URI:         opts.MongoStore.URI,
			MaxPoolSize: opts.MongoStore.MaxPoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create mongodb opener: %w", err)
		}
		rt.migrator = opener
		rt.closers = append(rt.closers, opener.Close)
		log.Info().Msg("Using MongoDB tenant stores")
		return opener, nil

	default:
		if g.memory == nil {
			g.memory = memorystore.NewOpener()
		}
		log.Info().Msg("Using in-memory tenant stores")
		return g.memory, nil
	}
}

func (rt *Runtime) tenantConfig(ctx context.Context, log zerolog.Logger) (tenantconfig.Provider, error) {
	flags := rt.Options.TenantConfig

	var (
		provider tenantconfig.Provider
		err      error
	)
	if flags.File != "" {
		provider, err = tenantconfig.LoadFile(flags.File)
		if err != nil {
			return nil, err
		}
	} else {
		provider, err = tenantconfig.NewStatic(tenantconfig.File{})
		if err != nil {
			return nil, err
		}
	}

	if flags.RedisAddr == "" {
		return provider, nil
	}

	redisCfg := tenantconfig.RedisConfig{
		Addr:     flags.RedisAddr,
		Password: flags.RedisPassword,
		DB:       flags.RedisDB,
		TTL:      flags.CacheTTL,
	}
	client, err := tenantconfig.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })

	log.Info().Str("addr", flags.RedisAddr).Msg("Caching tenant config in Redis")
	return tenantconfig.NewRedisCache(client, provider, redisCfg), nil
}

func (rt *Runtime) eventPublisher(ctx context.Context, log zerolog.Logger) (events.Publisher, error) {
	flags := rt.Options.Events
	if flags.NatsURL == "" {
		return events.Noop{}, nil
	}

	nc, err := nats.Connect(flags.NatsURL, nats.Name("assettrack"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { return nc.Drain() })

	publisher, err := events.NewJetStreamPublisher(ctx, nc, events.JetStreamConfig{
		Stream:        flags.Stream,
		SubjectPrefix: flags.SubjectPrefix,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", flags.NatsURL).Msg("Publishing events to JetStream")
	return publisher, nil
}

// Run executes fn for the configured tenant.
func (rt *Runtime) Run(ctx context.Context, command string, fn func(ctx context.Context, tenant string) error) error {
	return rt.RunFor(ctx, rt.Options.Tenant, command, fn)
}

// RunFor executes fn for name with a command scoped logger. Failures are
// logged in full and returned as their public code and message.
func (rt *Runtime) RunFor(ctx context.Context, name, command string, fn func(ctx context.Context, tenant string) error) error {
	name, err := tenant.Normalize(name)
	if err != nil {
		return publicError(err)
	}
	ctx = tenant.WithTenant(ctx, name)
	err = rt.commands.Run(ctx, command, func(ctx context.Context) error {
		return fn(ctx, name)
	})
	if err != nil {
		return publicError(err)
	}
	return nil
}

// Close releases everything Open acquired, newest first.
func (rt *Runtime) Close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to release resource")
		}
	}
	rt.closers = nil
}
