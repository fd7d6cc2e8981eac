// Package tenantconfig supplies per-tenant settings consumed by the lifecycle
// engine, currently the recoverable default of each product category.
package tenantconfig

import (
	"context"
	"fmt"
	"maps"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/models"
	"gopkg.in/yaml.v3"
)

// Provider returns the recoverable default of every category for a tenant.
type Provider interface {
	RecoverableDefaults(ctx context.Context, tenant string) (map[models.Category]bool, error)
}

// BuiltinRecoverable is used for categories no configuration mentions.
// Merchandising is given away and never collected back.
var BuiltinRecoverable = map[models.Category]bool{
	models.CategoryComputer:      true,
	models.CategoryMonitor:       true,
	models.CategoryAudio:         true,
	models.CategoryPeripherals:   true,
	models.CategoryPhone:         true,
	models.CategoryTablet:        true,
	models.CategoryFurniture:     true,
	models.CategoryMerchandising: false,
	models.CategoryOther:         true,
}

// Recoverable returns the default of category in defaults, falling back to
// BuiltinRecoverable.
func Recoverable(defaults map[models.Category]bool, category models.Category) bool {
	if v, ok := defaults[category]; ok {
		return v
	}
	return BuiltinRecoverable[category]
}

// TenantSettings is the configuration of one tenant.
type TenantSettings struct {
	Recoverable map[models.Category]bool `yaml:"recoverable"`
}

// File is the layout of the tenant configuration file.
//
//	defaults:
//	  recoverable:
//	    Computer: true
//	tenants:
//	  acme:
//	    recoverable:
//	      Monitor: false
type File struct {
	Defaults TenantSettings            `yaml:"defaults"`
	Tenants  map[string]TenantSettings `yaml:"tenants"`
}

// Validate rejects unknown categories.
func (f *File) Validate() error {
	check := func(scope string, s TenantSettings) error {
		for category := range s.Recoverable {
			if !category.Valid() {
				return fmt.Errorf("%s: unknown category %q", scope, category)
			}
		}
		return nil
	}
	if err := check("defaults", f.Defaults); err != nil {
		return err
	}
	for name, s := range f.Tenants {
		if err := check("tenant "+name, s); err != nil {
			return err
		}
	}
	return nil
}

// Static serves tenant settings held in memory.
type Static struct {
	mu   sync.RWMutex
	file File
}

// NewStatic creates a provider from an already parsed file.
func NewStatic(file File) (*Static, error) {
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &Static{file: file}, nil
}

// Parse decodes a YAML tenant configuration.
func Parse(data []byte) (*Static, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tenant config: %w", err)
	}
	return NewStatic(file)
}

// LoadFile reads a YAML tenant configuration from path.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant config: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("tenants", len(p.file.Tenants)).Msg("Loaded tenant config")
	return p, nil
}

// RecoverableDefaults implements Provider. Built-in values are overlaid with
// the file defaults and then with the tenant's own settings.
func (s *Static) RecoverableDefaults(ctx context.Context, tenant string) (map[models.Category]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := maps.Clone(BuiltinRecoverable)
	maps.Copy(out, s.file.Defaults.Recoverable)
	if t, ok := s.file.Tenants[tenant]; ok {
		maps.Copy(out, t.Recoverable)
	}
	return out, nil
}

// SetTenant replaces the settings of one tenant.
func (s *Static) SetTenant(tenant string, settings TenantSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file.Tenants == nil {
		s.file.Tenants = make(map[string]TenantSettings)
	}
	s.file.Tenants[tenant] = settings
}
