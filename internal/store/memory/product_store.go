package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

type productRepo struct {
	s session
}

// Get retrieves a standalone product by ID.
func (r *productRepo) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var out *models.Product
	err := r.s.read(func(st *state) error {
		p, exists := st.products[id]
		if !exists {
			return store.ErrNotFound
		}
		// Clone to avoid external modifications
		out = p.Clone()
		return nil
	})
	return out, err
}

// Insert stores a new standalone product.
func (r *productRepo) Insert(ctx context.Context, product *models.Product) error {
	return r.s.write(func(st *state) error {
		return insertProduct(st, product)
	})
}

// InsertMany stores every product or none of them.
func (r *productRepo) InsertMany(ctx context.Context, products []*models.Product) error {
	return r.s.write(func(st *state) error {
		// validate against a scratch index first so a failure leaves st untouched
		seen := make(map[string]uuid.UUID, len(products))
		ids := make(map[uuid.UUID]struct{}, len(products))
		for _, p := range products {
			if _, exists := st.products[p.ID]; exists {
				return fmt.Errorf("product %s: %w", p.ID, store.ErrDuplicateKey)
			}
			if _, exists := ids[p.ID]; exists {
				return fmt.Errorf("product %s: %w", p.ID, store.ErrDuplicateKey)
			}
			ids[p.ID] = struct{}{}

			key := serialKey(p.SerialNumber)
			if key == "" || p.IsDeleted {
				continue
			}
			if _, taken := st.serials[key]; taken {
				return fmt.Errorf("serial %q: %w", key, store.ErrDuplicateKey)
			}
			if _, taken := seen[key]; taken {
				return fmt.Errorf("serial %q: %w", key, store.ErrDuplicateKey)
			}
			seen[key] = p.ID
		}

		for _, p := range products {
			if err := insertProduct(st, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// Replace overwrites an existing standalone product.
func (r *productRepo) Replace(ctx context.Context, product *models.Product) error {
	return r.s.write(func(st *state) error {
		current, exists := st.products[product.ID]
		if !exists {
			return store.ErrNotFound
		}

		newKey := indexedSerial(product)
		if newKey != "" {
			if owner, taken := st.serials[newKey]; taken && owner != product.ID {
				return fmt.Errorf("serial %q: %w", newKey, store.ErrDuplicateKey)
			}
		}

		if oldKey := indexedSerial(current); oldKey != "" {
			delete(st.serials, oldKey)
		}
		if newKey != "" {
			st.serials[newKey] = product.ID
		}

		st.products[product.ID] = product.Clone()
		return nil
	})
}

// Delete physically removes a standalone product.
func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.write(func(st *state) error {
		current, exists := st.products[id]
		if !exists {
			return store.ErrNotFound
		}
		if key := indexedSerial(current); key != "" {
			delete(st.serials, key)
		}
		delete(st.products, id)
		return nil
	})
}

// FindBySerial returns the live standalone products carrying serial.
func (r *productRepo) FindBySerial(ctx context.Context, serial string) ([]*models.Product, error) {
	key := serialKey(serial)
	if key == "" {
		return nil, nil
	}

	var result []*models.Product
	err := r.s.read(func(st *state) error {
		if id, exists := st.serials[key]; exists {
			result = append(result, st.products[id].Clone())
		}
		return nil
	})
	return result, err
}

// List returns standalone products in creation order.
func (r *productRepo) List(ctx context.Context, opts store.ListOptions) ([]*models.Product, error) {
	var result []*models.Product
	err := r.s.read(func(st *state) error {
		for _, p := range st.products {
			if p.IsDeleted && !opts.IncludeDeleted {
				continue
			}
			result = append(result, p.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortByCreated(result, func(p *models.Product) (int64, string) {
		return p.CreatedAt.UnixNano(), p.ID.String()
	})
	return limit(result, opts.Limit), nil
}

func insertProduct(st *state, product *models.Product) error {
	if _, exists := st.products[product.ID]; exists {
		return fmt.Errorf("product %s: %w", product.ID, store.ErrDuplicateKey)
	}

	key := indexedSerial(product)
	if key != "" {
		if _, taken := st.serials[key]; taken {
			return fmt.Errorf("serial %q: %w", key, store.ErrDuplicateKey)
		}
		st.serials[key] = product.ID
	}

	// Clone to avoid external modifications
	st.products[product.ID] = product.Clone()
	return nil
}

// indexedSerial returns the key the sparse serial index holds for product.
// Blank serials and deleted products are not indexed.
func indexedSerial(product *models.Product) string {
	if product.IsDeleted {
		return ""
	}
	return serialKey(product.SerialNumber)
}
