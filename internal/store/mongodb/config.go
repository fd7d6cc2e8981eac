package mongodb

import (
	"fmt"
	"time"
)

// Config holds the configuration of the MongoDB tenant store backend. One
// client serves every tenant; each tenant owns a database.
type Config struct {
	// URI is the MongoDB connection string. Transactions require a replica set.
	URI string

	// MaxPoolSize is the maximum number of connections shared by all tenants.
	// Default: 50
	MaxPoolSize uint64

	// ConnectTimeout bounds establishing a connection.
	// Default: 20s
	ConnectTimeout time.Duration

	// ServerSelectionTimeout bounds waiting for a usable server.
	// Default: 15s
	ServerSelectionTimeout time.Duration
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("mongodb uri is required")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 50
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 20 * time.Second
	}
	if c.ServerSelectionTimeout == 0 {
		c.ServerSelectionTimeout = 15 * time.Second
	}
}
