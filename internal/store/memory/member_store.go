package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

type memberRepo struct {
	s session
}

// Get retrieves a member by ID.
func (r *memberRepo) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var out *models.Member
	err := r.s.read(func(st *state) error {
		m, exists := st.members[id]
		if !exists {
			return store.ErrNotFound
		}
		out = m.Clone()
		return nil
	})
	return out, err
}

// GetByEmail retrieves a live member by email, ignoring case.
func (r *memberRepo) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	var out *models.Member
	err := r.s.read(func(st *state) error {
		id, exists := st.emails[emailKey(email)]
		if !exists {
			return store.ErrNotFound
		}
		out = st.members[id].Clone()
		return nil
	})
	return out, err
}

// Insert stores a new member.
func (r *memberRepo) Insert(ctx context.Context, member *models.Member) error {
	return r.s.write(func(st *state) error {
		if _, exists := st.members[member.ID]; exists {
			return fmt.Errorf("member %s: %w", member.ID, store.ErrDuplicateKey)
		}
		key := emailKey(member.Email)
		if !member.IsDeleted {
			if _, taken := st.emails[key]; taken {
				return fmt.Errorf("email %q: %w", member.Email, store.ErrDuplicateKey)
			}
			st.emails[key] = member.ID
		}
		st.members[member.ID] = member.Clone()
		return nil
	})
}

// Update overwrites the member fields and keeps the stored embedded products.
func (r *memberRepo) Update(ctx context.Context, member *models.Member) error {
	return r.s.write(func(st *state) error {
		current, exists := st.members[member.ID]
		if !exists {
			return store.ErrNotFound
		}

		newKey := emailKey(member.Email)
		if !member.IsDeleted {
			if owner, taken := st.emails[newKey]; taken && owner != member.ID {
				return fmt.Errorf("email %q: %w", member.Email, store.ErrDuplicateKey)
			}
		}
		if !current.IsDeleted {
			delete(st.emails, emailKey(current.Email))
		}
		if !member.IsDeleted {
			st.emails[newKey] = member.ID
		}

		updated := member.Clone()
		updated.Products = current.Products
		st.members[member.ID] = updated
		return nil
	})
}

// AddProduct appends a product to the member's embedded list.
func (r *memberRepo) AddProduct(ctx context.Context, memberID uuid.UUID, product *models.Product) error {
	return r.s.write(func(st *state) error {
		m, exists := st.members[memberID]
		if !exists {
			return fmt.Errorf("member %s: %w", memberID, store.ErrNotFound)
		}
		if m.ProductIndex(product.ID) >= 0 {
			return fmt.Errorf("product %s: %w", product.ID, store.ErrDuplicateKey)
		}
		m.Products = append(m.Products, *product.Clone())
		return nil
	})
}

// UpdateProduct overwrites an embedded product in place.
func (r *memberRepo) UpdateProduct(ctx context.Context, memberID uuid.UUID, product *models.Product) error {
	return r.s.write(func(st *state) error {
		m, exists := st.members[memberID]
		if !exists {
			return fmt.Errorf("member %s: %w", memberID, store.ErrNotFound)
		}
		idx := m.ProductIndex(product.ID)
		if idx < 0 {
			return fmt.Errorf("product %s: %w", product.ID, store.ErrNotFound)
		}
		m.Products[idx] = *product.Clone()
		return nil
	})
}

// RemoveProduct drops a product from the member's embedded list.
func (r *memberRepo) RemoveProduct(ctx context.Context, memberID uuid.UUID, productID uuid.UUID) error {
	return r.s.write(func(st *state) error {
		m, exists := st.members[memberID]
		if !exists {
			return fmt.Errorf("member %s: %w", memberID, store.ErrNotFound)
		}
		idx := m.ProductIndex(productID)
		if idx < 0 {
			return fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
		}
		m.Products = append(m.Products[:idx:idx], m.Products[idx+1:]...)
		return nil
	})
}

// FindProductOwner returns the member holding the embedded product.
func (r *memberRepo) FindProductOwner(ctx context.Context, productID uuid.UUID) (*models.Member, error) {
	var out *models.Member
	err := r.s.read(func(st *state) error {
		for _, m := range st.members {
			if m.ProductIndex(productID) >= 0 {
				out = m.Clone()
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

// FindBySerial returns members holding a live embedded product with serial.
func (r *memberRepo) FindBySerial(ctx context.Context, serial string) ([]*models.Member, error) {
	key := serialKey(serial)
	if key == "" {
		return nil, nil
	}

	var result []*models.Member
	err := r.s.read(func(st *state) error {
		for _, m := range st.members {
			for i := range m.Products {
				p := &m.Products[i]
				if !p.IsDeleted && serialKey(p.SerialNumber) == key {
					result = append(result, m.Clone())
					break
				}
			}
		}
		return nil
	})
	return result, err
}

// List returns members in creation order.
func (r *memberRepo) List(ctx context.Context, opts store.ListOptions) ([]*models.Member, error) {
	var result []*models.Member
	err := r.s.read(func(st *state) error {
		for _, m := range st.members {
			if m.IsDeleted && !opts.IncludeDeleted {
				continue
			}
			result = append(result, m.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortByCreated(result, func(m *models.Member) (int64, string) {
		return m.CreatedAt.UnixNano(), m.ID.String()
	})
	return limit(result, opts.Limit), nil
}
