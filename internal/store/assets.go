package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/assettrack/internal/models"
)

// PlacementKind tells which representation holds a product.
type PlacementKind int

const (
	PlacementNone PlacementKind = iota
	PlacementStandalone
	PlacementEmbedded
)

func (k PlacementKind) String() string {
	switch k {
	case PlacementStandalone:
		return "standalone"
	case PlacementEmbedded:
		return "embedded"
	default:
		return "none"
	}
}

// Placement is where a product lives: either standalone, or embedded in the
// products list of a member at Index.
type Placement struct {
	Kind     PlacementKind
	MemberID uuid.UUID
	Index    int
}

// Standalone returns the standalone placement.
func Standalone() Placement {
	return Placement{Kind: PlacementStandalone, Index: -1}
}

// Embedded returns the placement inside the given member. index may be -1
// when the product is about to be appended.
func Embedded(memberID uuid.UUID, index int) Placement {
	return Placement{Kind: PlacementEmbedded, MemberID: memberID, Index: index}
}

// IsEmbedded reports whether the placement is inside a member.
func (p Placement) IsEmbedded() bool { return p.Kind == PlacementEmbedded }

// Same reports whether both placements refer to the same container.
func (p Placement) Same(other Placement) bool {
	if p.Kind != other.Kind {
		return false
	}
	return p.Kind != PlacementEmbedded || p.MemberID == other.MemberID
}

func (p Placement) String() string {
	if p.Kind == PlacementEmbedded {
		return fmt.Sprintf("embedded(%s,%d)", p.MemberID, p.Index)
	}
	return p.Kind.String()
}

// Located is a product together with the representation holding it.
type Located struct {
	Product   *models.Product
	Placement Placement
	Owner     *models.Member // set for embedded placements
}

// AssetRepository hides the two product representations behind find, upsert
// and remove.
type AssetRepository struct {
	acc Accessors
}

// Assets returns an AssetRepository over acc, which may be a Handle or the
// accessors of a running transaction.
func Assets(acc Accessors) *AssetRepository {
	return &AssetRepository{acc: acc}
}

// Find looks the product up in the standalone collection first and then in
// the members' embedded lists. Soft-deleted products are reported as
// ErrNotFound.
func (r *AssetRepository) Find(ctx context.Context, id uuid.UUID) (*Located, error) {
	product, err := r.acc.Products().Get(ctx, id)
	switch {
	case err == nil:
		if product.IsDeleted {
			return nil, fmt.Errorf("product %s is deleted: %w", id, ErrNotFound)
		}
		return &Located{Product: product, Placement: Standalone()}, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	owner, err := r.acc.Members().FindProductOwner(ctx, id)
	if err != nil {
		return nil, err
	}

	idx := owner.ProductIndex(id)
	if idx < 0 || owner.Products[idx].IsDeleted {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	return &Located{
		Product:   owner.Products[idx].Clone(),
		Placement: Embedded(owner.ID, idx),
		Owner:     owner,
	}, nil
}

// Upsert writes the product into the given placement, inserting it when the
// placement does not hold it yet.
func (r *AssetRepository) Upsert(ctx context.Context, product *models.Product, at Placement) error {
	switch at.Kind {
	case PlacementStandalone:
		err := r.acc.Products().Replace(ctx, product)
		if errors.Is(err, ErrNotFound) {
			return r.acc.Products().Insert(ctx, product)
		}
		return err
	case PlacementEmbedded:
		err := r.acc.Members().UpdateProduct(ctx, at.MemberID, product)
		if errors.Is(err, ErrNotFound) {
			return r.acc.Members().AddProduct(ctx, at.MemberID, product)
		}
		return err
	}
	return fmt.Errorf("upsert product %s: invalid placement %s", product.ID, at)
}

// Remove deletes the product from the given placement.
func (r *AssetRepository) Remove(ctx context.Context, id uuid.UUID, from Placement) error {
	switch from.Kind {
	case PlacementStandalone:
		return r.acc.Products().Delete(ctx, id)
	case PlacementEmbedded:
		return r.acc.Members().RemoveProduct(ctx, from.MemberID, id)
	}
	return fmt.Errorf("remove product %s: invalid placement %s", id, from)
}

// Move migrates the product between representations by inserting it into the
// target and then removing it from the source. When both placements refer to
// the same container the product is simply overwritten.
func (r *AssetRepository) Move(ctx context.Context, product *models.Product, from, to Placement) error {
	if from.Same(to) {
		return r.Upsert(ctx, product, to)
	}

	if err := r.Upsert(ctx, product, to); err != nil {
		return fmt.Errorf("insert into %s: %w", to, err)
	}
	if err := r.Remove(ctx, product.ID, from); err != nil {
		return fmt.Errorf("remove from %s: %w", from, err)
	}
	return nil
}
