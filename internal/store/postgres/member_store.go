package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

type memberRepo struct {
	q querier
}

const selectMemberSQL = `SELECT doc, products FROM members `

// memberDoc is the member without its embedded products, which live in their
// own column.
func memberDoc(m *models.Member) ([]byte, error) {
	doc := *m
	doc.Products = nil
	return marshalDoc(&doc)
}

// Get retrieves a member by ID.
func (r *memberRepo) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return r.one(ctx, selectMemberSQL+`WHERE id = $1`, id)
}

// GetByEmail retrieves a live member by email, ignoring case.
func (r *memberRepo) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	return r.one(ctx, selectMemberSQL+`WHERE lower(email) = lower($1) AND NOT is_deleted`, email)
}

// Insert stores a new member together with its embedded products.
func (r *memberRepo) Insert(ctx context.Context, member *models.Member) error {
	doc, err := memberDoc(member)
	if err != nil {
		return err
	}
	products, err := marshalProducts(member.Products)
	if err != nil {
		return err
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO members (
			id, email, is_deleted, created_at, updated_at, doc, products
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`, member.ID, member.Email, member.IsDeleted, utc(member.CreatedAt), utc(member.UpdatedAt), doc, products)
	if err != nil {
		return fmt.Errorf("failed to insert member %s: %w", member.ID, mapPostgresError(err))
	}
	return nil
}

// Update overwrites the member fields and keeps the stored embedded products.
func (r *memberRepo) Update(ctx context.Context, member *models.Member) error {
	doc, err := memberDoc(member)
	if err != nil {
		return err
	}

	result, err := r.q.Exec(ctx, `
		UPDATE members SET
			email = $2,
			is_deleted = $3,
			updated_at = $4,
			doc = $5
		WHERE id = $1
	`, member.ID, member.Email, member.IsDeleted, utc(member.UpdatedAt), doc)
	if err != nil {
		return fmt.Errorf("failed to update member %s: %w", member.ID, mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddProduct appends a product to the member's embedded list.
func (r *memberRepo) AddProduct(ctx context.Context, memberID uuid.UUID, product *models.Product) error {
	doc, err := marshalDoc(product)
	if err != nil {
		return err
	}

	result, err := r.q.Exec(ctx, `
		UPDATE members SET products = products || jsonb_build_array($2::jsonb)
		WHERE id = $1
	`, memberID, doc)
	if err != nil {
		return fmt.Errorf("failed to add product %s to member %s: %w", product.ID, memberID, mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("member %s: %w", memberID, store.ErrNotFound)
	}
	return nil
}

// UpdateProduct overwrites an embedded product.
func (r *memberRepo) UpdateProduct(ctx context.Context, memberID uuid.UUID, product *models.Product) error {
	return r.editProducts(ctx, memberID, func(products []models.Product) ([]models.Product, error) {
		for i := range products {
			if products[i].ID == product.ID {
				products[i] = *product.Clone()
				return products, nil
			}
		}
		return nil, store.ErrNotFound
	})
}

// RemoveProduct drops a product from the member's embedded list.
func (r *memberRepo) RemoveProduct(ctx context.Context, memberID uuid.UUID, productID uuid.UUID) error {
	return r.editProducts(ctx, memberID, func(products []models.Product) ([]models.Product, error) {
		for i := range products {
			if products[i].ID == productID {
				return append(products[:i], products[i+1:]...), nil
			}
		}
		return nil, store.ErrNotFound
	})
}

// FindProductOwner returns the member holding the embedded product.
func (r *memberRepo) FindProductOwner(ctx context.Context, productID uuid.UUID) (*models.Member, error) {
	return r.one(ctx, selectMemberSQL+`
		WHERE products @> jsonb_build_array(jsonb_build_object('id', $1::text))
		LIMIT 1
	`, productID.String())
}

// FindBySerial returns members holding a live embedded product with serial.
func (r *memberRepo) FindBySerial(ctx context.Context, serial string) ([]*models.Member, error) {
	return r.many(ctx, selectMemberSQL+`
		WHERE products @> jsonb_build_array(jsonb_build_object('serialNumber', $1::text, 'isDeleted', false))
	`, serial)
}

// List returns members ordered by creation time.
func (r *memberRepo) List(ctx context.Context, opts store.ListOptions) ([]*models.Member, error) {
	return r.many(ctx, selectMemberSQL+`
		WHERE $1 OR NOT is_deleted
		ORDER BY created_at, id
		LIMIT $2
	`, opts.IncludeDeleted, limitArg(opts.Limit))
}

// editProducts rewrites the embedded list of one member under a row lock.
func (r *memberRepo) editProducts(ctx context.Context, memberID uuid.UUID, edit func([]models.Product) ([]models.Product, error)) error {
	var raw []byte
	err := r.q.QueryRow(ctx, `SELECT products FROM members WHERE id = $1 FOR UPDATE`, memberID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("member %s: %w", memberID, store.ErrNotFound)
		}
		return fmt.Errorf("failed to lock member %s: %w", memberID, mapPostgresError(err))
	}

	var products []models.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return fmt.Errorf("failed to decode products of member %s: %w", memberID, err)
	}

	products, err = edit(products)
	if err != nil {
		return err
	}

	encoded, err := marshalProducts(products)
	if err != nil {
		return err
	}
	if _, err := r.q.Exec(ctx, `UPDATE members SET products = $2 WHERE id = $1`, memberID, encoded); err != nil {
		return fmt.Errorf("failed to store products of member %s: %w", memberID, mapPostgresError(err))
	}
	return nil
}

func (r *memberRepo) one(ctx context.Context, query string, args ...any) (*models.Member, error) {
	var doc, products []byte
	err := r.q.QueryRow(ctx, query, args...).Scan(&doc, &products)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", mapPostgresError(err))
	}
	return decodeMember(doc, products)
}

func (r *memberRepo) many(ctx context.Context, query string, args ...any) ([]*models.Member, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", mapPostgresError(err))
	}

	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Member, error) {
		var doc, products []byte
		if err := row.Scan(&doc, &products); err != nil {
			return nil, err
		}
		return decodeMember(doc, products)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read members: %w", mapPostgresError(err))
	}
	return members, nil
}

func marshalProducts(products []models.Product) ([]byte, error) {
	if products == nil {
		products = []models.Product{}
	}
	return marshalDoc(products)
}

func decodeMember(doc, products []byte) (*models.Member, error) {
	var m models.Member
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("failed to decode member: %w", err)
	}
	m.Products = []models.Product{}
	if err := json.Unmarshal(products, &m.Products); err != nil {
		return nil, fmt.Errorf("failed to decode products of member %s: %w", m.ID, err)
	}
	return &m, nil
}
