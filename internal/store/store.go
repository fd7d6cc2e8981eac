// Package store defines the tenant-scoped repositories the asset tracker is
// built on. Every backend (memory, postgres, mongo) provides one Handle per
// tenant store and reports failures through the sentinel errors below.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/assettrack/internal/models"
)

// Sentinel errors for common error conditions.
//
// Backends classify driver errors into these once, at the adapter boundary,
// so callers never inspect driver specific errors or messages.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrTransient    = errors.New("transient transaction conflict")
	ErrUnavailable  = errors.New("store unavailable")
)

// IsTransient reports whether err is a conflict that may succeed when the
// whole transaction is retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// ListOptions bounds list queries.
type ListOptions struct {
	Limit          int
	IncludeDeleted bool
}

// AuditFilter selects audit records, newest first.
type AuditFilter struct {
	ItemKind models.ItemKind // empty matches every kind
	Action   models.AuditAction
	Limit    int
}

// ProductRepository stores products in the standalone representation.
type ProductRepository interface {
	// Get returns the standalone product, including soft-deleted ones.
	// Returns ErrNotFound if the product is not stored standalone.
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)

	// Insert stores a new product.
	// Returns ErrDuplicateKey if the id or a live serial number is already taken.
	Insert(ctx context.Context, product *models.Product) error

	// InsertMany stores all products or none of them.
	InsertMany(ctx context.Context, products []*models.Product) error

	// Replace overwrites an existing product.
	// Returns ErrNotFound if the product doesn't exist.
	Replace(ctx context.Context, product *models.Product) error

	// Delete physically removes the product. Only used when a product moves
	// to another representation.
	Delete(ctx context.Context, id uuid.UUID) error

	// FindBySerial returns live standalone products carrying serial.
	FindBySerial(ctx context.Context, serial string) ([]*models.Product, error)

	List(ctx context.Context, opts ListOptions) ([]*models.Product, error)
}

// MemberRepository stores members together with their embedded products.
type MemberRepository interface {
	// Get returns a member by ID.
	// Returns ErrNotFound if the member doesn't exist.
	Get(ctx context.Context, id uuid.UUID) (*models.Member, error)

	// GetByEmail returns the live member with the given email.
	// Returns ErrNotFound if no such member exists.
	GetByEmail(ctx context.Context, email string) (*models.Member, error)

	// Insert stores a new member.
	// Returns ErrDuplicateKey if a live member already uses the email.
	Insert(ctx context.Context, member *models.Member) error

	// Update overwrites the member fields. Embedded products are left untouched.
	Update(ctx context.Context, member *models.Member) error

	// AddProduct appends a product to the member's embedded list.
	AddProduct(ctx context.Context, memberID uuid.UUID, product *models.Product) error

	// UpdateProduct overwrites an embedded product.
	// Returns ErrNotFound if the member does not hold the product.
	UpdateProduct(ctx context.Context, memberID uuid.UUID, product *models.Product) error

	// RemoveProduct drops a product from the member's embedded list.
	// Returns ErrNotFound if the member does not hold the product.
	RemoveProduct(ctx context.Context, memberID uuid.UUID, productID uuid.UUID) error

	// FindProductOwner returns the member holding the embedded product.
	// Returns ErrNotFound if no member holds it.
	FindProductOwner(ctx context.Context, productID uuid.UUID) (*models.Member, error)

	// FindBySerial returns members holding a live embedded product with serial.
	FindBySerial(ctx context.Context, serial string) ([]*models.Member, error)

	List(ctx context.Context, opts ListOptions) ([]*models.Member, error)
}

// AuditRepository is the append-only audit trail.
type AuditRepository interface {
	Insert(ctx context.Context, record *models.AuditRecord) error
	List(ctx context.Context, filter AuditFilter) ([]*models.AuditRecord, error)
}

// Accessors exposes the typed repositories of one tenant store.
type Accessors interface {
	Products() ProductRepository
	Members() MemberRepository
	AuditRecords() AuditRepository
}

// TxFunc runs inside a transaction. Returning an error aborts it.
type TxFunc func(ctx context.Context, tx Accessors) error

// Handle is an open connection to a single tenant store.
type Handle interface {
	Accessors

	// Tenant returns the tenant this handle is bound to.
	Tenant() string

	// WithTx runs fn inside one store transaction. Every write made through
	// tx commits together or not at all. A commit conflict is reported as
	// ErrTransient.
	WithTx(ctx context.Context, fn TxFunc) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Opener opens the store of a tenant. Implementations must return an error
// wrapping ErrUnavailable when the backing store can't be reached.
type Opener interface {
	Open(ctx context.Context, tenant string) (Handle, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, tenant string) (Handle, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, tenant string) (Handle, error) {
	return f(ctx, tenant)
}
