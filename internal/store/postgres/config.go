package postgres

import (
	"fmt"
)

// Config holds the configuration of the PostgreSQL tenant store backend.
// Every tenant gets its own database on the server the admin pool points at.
type Config struct {
	// Pool configures the admin connection. Tenant pools are derived from it
	// with the database replaced by the tenant database.
	Pool PoolConfig

	// TenantMaxConns is the maximum number of connections per tenant pool.
	// Default: 10
	TenantMaxConns int32

	// TenantMinConns is the minimum number of idle connections per tenant pool.
	// Default: 1
	TenantMinConns int32

	// CreateDatabases creates missing tenant databases on first open.
	CreateDatabases bool

	// AutoMigrate runs pending migrations every time a tenant database is opened.
	AutoMigrate bool
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if c.TenantMinConns > c.TenantMaxConns {
		return fmt.Errorf("tenant min conns %d exceeds max conns %d", c.TenantMinConns, c.TenantMaxConns)
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	c.Pool.ApplyDefaults()
	if c.TenantMaxConns == 0 {
		c.TenantMaxConns = 10
	}
	if c.TenantMinConns == 0 {
		c.TenantMinConns = 1
	}
}

// tenantPool returns the pool configuration of one tenant database.
func (c *Config) tenantPool(database string) PoolConfig {
	cfg := c.Pool
	cfg.Database = database
	cfg.MaxConns = c.TenantMaxConns
	cfg.MinConns = c.TenantMinConns
	return cfg
}
