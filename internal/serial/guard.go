// Package serial enforces that a non-blank serial number identifies at most
// one live product per tenant, whichever representation holds it.
package serial

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/store"
	"github.com/wolfeidau/assettrack/internal/telemetry"
)

// Resolver returns the store handle of a tenant.
type Resolver interface {
	Resolve(ctx context.Context, tenant string) (store.Handle, error)
}

// Guard checks serial numbers before they are written.
//
// The check is optimistic: the unique index of the standalone collection is
// the source of truth and duplicates it reports at commit time are mapped to
// the same error through Translate.
type Guard struct {
	tenants Resolver
}

// NewGuard creates a guard that resolves tenant stores through tenants.
func NewGuard(tenants Resolver) *Guard {
	return &Guard{tenants: tenants}
}

// CheckUnique verifies serial is not used by any other live product of tenant.
// Blank serials are always accepted. exclude is the product being updated, or uuid.Nil.
func (g *Guard) CheckUnique(ctx context.Context, tenant, serial string, exclude uuid.UUID) error {
	if Blank(serial) {
		return nil
	}
	h, err := g.tenants.Resolve(ctx, tenant)
	if err != nil {
		return err
	}
	return g.Check(ctx, h, serial, exclude)
}

// Check is CheckUnique against accessors that are already resolved, typically
// the accessors of a running transaction.
func (g *Guard) Check(ctx context.Context, acc store.Accessors, serial string, exclude uuid.UUID) error {
	if Blank(serial) {
		return nil
	}
	serial = strings.TrimSpace(serial)

	products, err := acc.Products().FindBySerial(ctx, serial)
	if err != nil {
		return err
	}
	for _, p := range products {
		if p.ID != exclude && !p.IsDeleted {
			return g.conflict(ctx, serial)
		}
	}

	members, err := acc.Members().FindBySerial(ctx, serial)
	if err != nil {
		return err
	}
	for _, m := range members {
		for i := range m.Products {
			p := &m.Products[i]
			if p.ID != exclude && !p.IsDeleted && strings.TrimSpace(p.SerialNumber) == serial {
				return g.conflict(ctx, serial)
			}
		}
	}

	return nil
}

// CheckBatch rejects a batch in which two items share a non-blank serial.
func CheckBatch(serials []string) error {
	seen := make(map[string]int, len(serials))
	for i, s := range serials {
		if Blank(s) {
			continue
		}
		s = strings.TrimSpace(s)
		if first, dup := seen[s]; dup {
			return apperr.Validation(apperr.CodeDuplicateSerialInBatch,
				"serial number %q is used by items %d and %d of the batch", s, first, i)
		}
		seen[s] = i
	}
	return nil
}

// Translate maps a duplicate key reported by the store on a serial write to
// the duplicate serial validation error. Other errors are returned unchanged.
func Translate(err error, serial string) error {
	if err == nil || !errors.Is(err, store.ErrDuplicateKey) {
		return err
	}
	return duplicate(strings.TrimSpace(serial))
}

// Blank reports whether serial is exempt from uniqueness.
func Blank(serial string) bool {
	return strings.TrimSpace(serial) == ""
}

func (g *Guard) conflict(ctx context.Context, serial string) error {
	telemetry.GetMetrics().SerialConflictsTotal.Add(ctx, 1)
	zerolog.Ctx(ctx).Debug().Str("serial", serial).Msg("Serial number already in use")
	return duplicate(serial)
}

func duplicate(serial string) error {
	if serial == "" {
		return apperr.Validation(apperr.CodeDuplicateSerial, "serial number is already in use")
	}
	return apperr.Validation(apperr.CodeDuplicateSerial, "serial number %q is already in use", serial)
}
