package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// emailCollation compares emails ignoring case. The unique email index is
// built with the same collation so lookups can use it.
var emailCollation = &options.Collation{Locale: "en", Strength: 2}

type memberRepo struct {
	coll *mongo.Collection
}

// Get retrieves a member by ID.
func (r *memberRepo) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return r.one(ctx, bson.M{"_id": id.String()})
}

// GetByEmail retrieves a live member by email, ignoring case.
func (r *memberRepo) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	return r.one(ctx, bson.M{"email": email, "isDeleted": false},
		options.FindOne().SetCollation(emailCollation))
}

// Insert stores a new member together with its embedded products.
func (r *memberRepo) Insert(ctx context.Context, member *models.Member) error {
	doc, err := toMemberDoc(member)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert member %s: %w", member.ID, mapMongoError(err))
	}
	return nil
}

// Update overwrites the member fields and keeps the stored embedded products.
func (r *memberRepo) Update(ctx context.Context, member *models.Member) error {
	doc, err := toMemberDoc(member)
	if err != nil {
		return err
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": memberFields(doc)})
	if err != nil {
		return fmt.Errorf("failed to update member %s: %w", member.ID, mapMongoError(err))
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddProduct appends a product to the member's embedded list.
func (r *memberRepo) AddProduct(ctx context.Context, memberID uuid.UUID, product *models.Product) error {
	doc, err := toProductDoc(product)
	if err != nil {
		return err
	}

	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": memberID.String()},
		bson.M{"$push": bson.M{"products": doc}},
	)
	if err != nil {
		return fmt.Errorf("failed to add product %s to member %s: %w", product.ID, memberID, mapMongoError(err))
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("member %s: %w", memberID, store.ErrNotFound)
	}
	return nil
}

// UpdateProduct overwrites an embedded product.
func (r *memberRepo) UpdateProduct(ctx context.Context, memberID uuid.UUID, product *models.Product) error {
	doc, err := toProductDoc(product)
	if err != nil {
		return err
	}

	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": memberID.String(), "products._id": doc.ID},
		bson.M{"$set": bson.M{"products.$": doc}},
	)
	if err != nil {
		return fmt.Errorf("failed to update product %s of member %s: %w", product.ID, memberID, mapMongoError(err))
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RemoveProduct drops a product from the member's embedded list.
func (r *memberRepo) RemoveProduct(ctx context.Context, memberID uuid.UUID, productID uuid.UUID) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": memberID.String(), "products._id": productID.String()},
		bson.M{"$pull": bson.M{"products": bson.M{"_id": productID.String()}}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove product %s from member %s: %w", productID, memberID, mapMongoError(err))
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindProductOwner returns the member holding the embedded product.
func (r *memberRepo) FindProductOwner(ctx context.Context, productID uuid.UUID) (*models.Member, error) {
	return r.one(ctx, bson.M{"products._id": productID.String()})
}

// FindBySerial returns members holding a live embedded product with serial.
func (r *memberRepo) FindBySerial(ctx context.Context, serial string) ([]*models.Member, error) {
	return r.many(ctx, bson.M{
		"products": bson.M{"$elemMatch": bson.M{"serialNumber": serial, "isDeleted": false}},
	})
}

// List returns members ordered by creation time.
func (r *memberRepo) List(ctx context.Context, opts store.ListOptions) ([]*models.Member, error) {
	return r.many(ctx, liveFilter(opts.IncludeDeleted),
		findOptions(opts.Limit, bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *memberRepo) one(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Member, error) {
	var doc memberDoc
	err := r.coll.FindOne(ctx, filter, opts...).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", mapMongoError(err))
	}
	return doc.toModel()
}

func (r *memberRepo) many(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*models.Member, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", mapMongoError(err))
	}

	var docs []memberDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read members: %w", mapMongoError(err))
	}

	out := make([]*models.Member, 0, len(docs))
	for i := range docs {
		m, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
