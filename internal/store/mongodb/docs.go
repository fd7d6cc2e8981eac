package mongodb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wolfeidau/assettrack/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type attributeDoc struct {
	Key   string `bson:"key"`
	Value string `bson:"value"`
}

type priceDoc struct {
	Amount       primitive.Decimal128 `bson:"amount"`
	CurrencyCode string               `bson:"currencyCode"`
}

// productDoc is the stored shape of a product, standalone or embedded.
type productDoc struct {
	ID             string         `bson:"_id"`
	Category       string         `bson:"category"`
	Name           string         `bson:"name"`
	Attributes     []attributeDoc `bson:"attributes"`
	SerialNumber   *string        `bson:"serialNumber,omitempty"` // absent when blank so the unique index skips it
	Location       string         `bson:"location"`
	AssignedEmail  string         `bson:"assignedEmail,omitempty"`
	AssignedMember string         `bson:"assignedMember,omitempty"`
	Status         string         `bson:"status"`
	Recoverable    bool           `bson:"recoverable"`
	Condition      string         `bson:"productCondition"`
	AdditionalInfo string         `bson:"additionalInfo,omitempty"`
	LastAssigned   string         `bson:"lastAssigned,omitempty"`
	Price          *priceDoc      `bson:"price,omitempty"`
	FpShipment     bool           `bson:"fp_shipment"`
	ActiveShipment bool           `bson:"activeShipment"`
	IsDeleted      bool           `bson:"isDeleted"`
	DeletedAt      *time.Time     `bson:"deletedAt,omitempty"`
	CreatedAt      time.Time      `bson:"createdAt"`
	UpdatedAt      time.Time      `bson:"updatedAt"`
}

type addressDoc struct {
	Address       string `bson:"address,omitempty"`
	Apartment     string `bson:"apartment,omitempty"`
	City          string `bson:"city,omitempty"`
	Country       string `bson:"country,omitempty"`
	ZipCode       string `bson:"zipCode,omitempty"`
	PersonalEmail string `bson:"personalEmail,omitempty"`
	Phone         string `bson:"phone,omitempty"`
}

// memberDoc is the stored shape of a member with its embedded products.
type memberDoc struct {
	ID             string       `bson:"_id"`
	Email          string       `bson:"email"`
	FirstName      string       `bson:"firstName"`
	LastName       string       `bson:"lastName"`
	Address        addressDoc   `bson:"address"`
	ActiveShipment bool         `bson:"activeShipment"`
	Products       []productDoc `bson:"products"`
	IsDeleted      bool         `bson:"isDeleted"`
	DeletedAt      *time.Time   `bson:"deletedAt,omitempty"`
	CreatedAt      time.Time    `bson:"createdAt"`
	UpdatedAt      time.Time    `bson:"updatedAt"`
}

type auditDoc struct {
	ID        string    `bson:"_id"`
	Action    string    `bson:"actionType"`
	ItemKind  string    `bson:"itemType"`
	ActorID   string    `bson:"userId"`
	OldData   any       `bson:"oldData"`
	NewData   any       `bson:"newData"`
	Context   string    `bson:"context,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

func toProductDoc(p *models.Product) (productDoc, error) {
	doc := productDoc{
		ID:             p.ID.String(),
		Category:       string(p.Category),
		Name:           p.Name,
		Attributes:     make([]attributeDoc, 0, len(p.Attributes)),
		Location:       string(p.Location),
		AssignedEmail:  p.AssignedEmail,
		AssignedMember: p.AssignedMember,
		Status:         string(p.Status),
		Recoverable:    p.Recoverable,
		Condition:      string(p.Condition),
		AdditionalInfo: p.AdditionalInfo,
		LastAssigned:   p.LastAssigned,
		FpShipment:     p.FpShipment,
		ActiveShipment: p.ActiveShipment,
		IsDeleted:      p.IsDeleted,
		DeletedAt:      p.DeletedAt,
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
	for _, a := range p.Attributes {
		doc.Attributes = append(doc.Attributes, attributeDoc{Key: a.Key, Value: a.Value})
	}
	if p.SerialNumber != "" {
		serial := p.SerialNumber
		doc.SerialNumber = &serial
	}
	if p.Price != nil {
		amount, err := primitive.ParseDecimal128(p.Price.Amount.String())
		if err != nil {
			return productDoc{}, fmt.Errorf("invalid price of product %s: %w", p.ID, err)
		}
		doc.Price = &priceDoc{Amount: amount, CurrencyCode: p.Price.CurrencyCode}
	}
	return doc, nil
}

func (d *productDoc) toModel() (*models.Product, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid product id %q: %w", d.ID, err)
	}

	p := &models.Product{
		ID:             id,
		Category:       models.Category(d.Category),
		Name:           d.Name,
		Attributes:     make([]models.Attribute, 0, len(d.Attributes)),
		Location:       models.Location(d.Location),
		AssignedEmail:  d.AssignedEmail,
		AssignedMember: d.AssignedMember,
		Status:         models.Status(d.Status),
		Recoverable:    d.Recoverable,
		Condition:      models.Condition(d.Condition),
		AdditionalInfo: d.AdditionalInfo,
		LastAssigned:   d.LastAssigned,
		FpShipment:     d.FpShipment,
		ActiveShipment: d.ActiveShipment,
		IsDeleted:      d.IsDeleted,
		DeletedAt:      d.DeletedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for _, a := range d.Attributes {
		p.Attributes = append(p.Attributes, models.Attribute{Key: a.Key, Value: a.Value})
	}
	if d.SerialNumber != nil {
		p.SerialNumber = *d.SerialNumber
	}
	if d.Price != nil {
		amount, err := decimal.NewFromString(d.Price.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("invalid price of product %s: %w", d.ID, err)
		}
		p.Price = &models.Price{Amount: amount, CurrencyCode: d.Price.CurrencyCode}
	}
	return p, nil
}

func toMemberDoc(m *models.Member) (memberDoc, error) {
	doc := memberDoc{
		ID:        m.ID.String(),
		Email:     m.Email,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Address: addressDoc{
			Address:       m.Address.Address,
			Apartment:     m.Address.Apartment,
			City:          m.Address.City,
			Country:       m.Address.Country,
			ZipCode:       m.Address.ZipCode,
			PersonalEmail: m.Address.PersonalEmail,
			Phone:         m.Address.Phone,
		},
		ActiveShipment: m.ActiveShipment,
		Products:       make([]productDoc, 0, len(m.Products)),
		IsDeleted:      m.IsDeleted,
		DeletedAt:      m.DeletedAt,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
	for i := range m.Products {
		p, err := toProductDoc(&m.Products[i])
		if err != nil {
			return memberDoc{}, err
		}
		doc.Products = append(doc.Products, p)
	}
	return doc, nil
}

func (d *memberDoc) toModel() (*models.Member, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid member id %q: %w", d.ID, err)
	}

	m := &models.Member{
		ID:        id,
		Email:     d.Email,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Address: models.Address{
			Address:       d.Address.Address,
			Apartment:     d.Address.Apartment,
			City:          d.Address.City,
			Country:       d.Address.Country,
			ZipCode:       d.Address.ZipCode,
			PersonalEmail: d.Address.PersonalEmail,
			Phone:         d.Address.Phone,
		},
		ActiveShipment: d.ActiveShipment,
		Products:       make([]models.Product, 0, len(d.Products)),
		IsDeleted:      d.IsDeleted,
		DeletedAt:      d.DeletedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for i := range d.Products {
		p, err := d.Products[i].toModel()
		if err != nil {
			return nil, err
		}
		m.Products = append(m.Products, *p)
	}
	return m, nil
}

// memberFields is the $set document of a member update. Embedded products
// are written through their own operators.
func memberFields(d memberDoc) bson.M {
	return bson.M{
		"email":          d.Email,
		"firstName":      d.FirstName,
		"lastName":       d.LastName,
		"address":        d.Address,
		"activeShipment": d.ActiveShipment,
		"isDeleted":      d.IsDeleted,
		"deletedAt":      d.DeletedAt,
		"updatedAt":      d.UpdatedAt,
	}
}

// storedAuditDoc is read back with raw payloads that are converted to plain
// JSON values.
type storedAuditDoc struct {
	ID        string        `bson:"_id"`
	Action    string        `bson:"actionType"`
	ItemKind  string        `bson:"itemType"`
	ActorID   string        `bson:"userId"`
	OldData   bson.RawValue `bson:"oldData"`
	NewData   bson.RawValue `bson:"newData"`
	Context   string        `bson:"context,omitempty"`
	CreatedAt time.Time     `bson:"createdAt"`
}

func toAuditDoc(r *models.AuditRecord) auditDoc {
	return auditDoc{
		ID:        r.ID.String(),
		Action:    string(r.Action),
		ItemKind:  string(r.ItemKind),
		ActorID:   r.ActorID,
		OldData:   plainJSON(r.OldData),
		NewData:   plainJSON(r.NewData),
		Context:   r.Context,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (d *storedAuditDoc) toModel() (*models.AuditRecord, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid audit record id %q: %w", d.ID, err)
	}
	oldData, err := rawToPlain(d.OldData)
	if err != nil {
		return nil, err
	}
	newData, err := rawToPlain(d.NewData)
	if err != nil {
		return nil, err
	}
	return &models.AuditRecord{
		ID:        id,
		Action:    models.AuditAction(d.Action),
		ItemKind:  models.ItemKind(d.ItemKind),
		ActorID:   d.ActorID,
		OldData:   oldData,
		NewData:   newData,
		Context:   d.Context,
		CreatedAt: d.CreatedAt,
	}, nil
}

// plainJSON reduces an audit payload to maps, slices and scalars so it
// encodes the same way it would as JSON.
func plainJSON(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func rawToPlain(raw bson.RawValue) (any, error) {
	if raw.Type == 0 || raw.Type == bson.TypeNull {
		return nil, nil
	}
	data, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: raw}}, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audit data: %w", err)
	}
	var wrapper struct {
		V any `json:"v"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode audit data: %w", err)
	}
	return wrapper.V, nil
}
