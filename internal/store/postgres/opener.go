package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/store"
	"github.com/wolfeidau/assettrack/internal/tenant"
)

var _ store.Opener = (*Opener)(nil)

// Opener opens tenant databases on one PostgreSQL server. It keeps an admin
// pool for creating databases; every opened tenant gets a pool of its own.
type Opener struct {
	cfg   Config
	admin *pgxpool.Pool
}

// NewOpener connects the admin pool.
func NewOpener(ctx context.Context, cfg Config) (*Opener, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	admin, err := NewPool(ctx, &cfg.Pool)
	if err != nil {
		return nil, fmt.Errorf("failed to connect admin pool: %w", err)
	}

	return &Opener{cfg: cfg, admin: admin}, nil
}

// Open implements store.Opener.
func (o *Opener) Open(ctx context.Context, name string) (store.Handle, error) {
	pool, err := o.connect(ctx, name)
	if err != nil {
		return nil, err
	}

	if o.cfg.AutoMigrate {
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate tenant %s: %w", name, err)
		}
	}

	return NewStore(name, pool), nil
}

// Migrate applies pending migrations to the database of one tenant.
func (o *Opener) Migrate(ctx context.Context, name string) error {
	pool, err := o.connect(ctx, name)
	if err != nil {
		return err
	}
	defer pool.Close()

	return Migrate(ctx, pool)
}

// Close releases the admin pool. Tenant pools are closed through their handles.
func (o *Opener) Close() {
	o.admin.Close()
}

func (o *Opener) connect(ctx context.Context, name string) (*pgxpool.Pool, error) {
	database := tenant.DatabaseName(name)

	if o.cfg.CreateDatabases {
		if err := o.ensureDatabase(ctx, database); err != nil {
			return nil, err
		}
	}

	poolCfg := o.cfg.tenantPool(database)
	pool, err := NewPool(ctx, &poolCfg)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w: %w", name, store.ErrUnavailable, err)
	}
	return pool, nil
}

// ensureDatabase creates the tenant database when it does not exist yet.
func (o *Opener) ensureDatabase(ctx context.Context, database string) error {
	var exists bool
	err := o.admin.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, database).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up database %s: %w: %w", database, store.ErrUnavailable, mapPostgresError(err))
	}
	if exists {
		return nil
	}

	// CREATE DATABASE takes no parameters
	_, err = o.admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{database}.Sanitize())
	if err != nil && !isDuplicateDatabase(err) {
		return fmt.Errorf("failed to create database %s: %w", database, mapPostgresError(err))
	}

	log.Info().Str("database", database).Msg("Created tenant database")
	return nil
}
