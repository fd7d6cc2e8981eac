package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Well known attribute keys.
const (
	AttributeBrand = "brand"
	AttributeModel = "model"
)

// Attribute is a free-form key/value pair describing a product (brand, model, ram...).
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Price is an optional amount with its ISO currency code.
type Price struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

// Equal reports whether two prices hold the same amount and currency.
func (p *Price) Equal(other *Price) bool {
	if p == nil || other == nil {
		return p == nil && other == nil
	}
	return p.Amount.Equal(other.Amount) && p.CurrencyCode == other.CurrencyCode
}

// Product represents one physical asset owned by a tenant.
//
// A product lives either in the standalone products collection or embedded in
// the member it is assigned to, never both.
type Product struct {
	ID             uuid.UUID   `json:"id"` // UUIDv7
	Category       Category    `json:"category"`
	Name           string      `json:"name"`
	Attributes     []Attribute `json:"attributes"`
	SerialNumber   string      `json:"serialNumber,omitempty"` // empty means absent
	Location       Location    `json:"location"`
	AssignedEmail  string      `json:"assignedEmail,omitempty"`
	AssignedMember string      `json:"assignedMember,omitempty"`
	Status         Status      `json:"status"`
	Recoverable    bool        `json:"recoverable"`
	Condition      Condition   `json:"productCondition"`
	AdditionalInfo string      `json:"additionalInfo,omitempty"`
	LastAssigned   string      `json:"lastAssigned,omitempty"` // breadcrumb of the previous holder
	Price          *Price      `json:"price,omitempty"`

	// FpShipment is set while the logistics workflow owns the product.
	FpShipment     bool `json:"fp_shipment"`
	ActiveShipment bool `json:"activeShipment"`

	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Attribute returns the value for key, or "" when the attribute is missing.
func (p *Product) Attribute(key string) string {
	for _, attr := range p.Attributes {
		if strings.EqualFold(attr.Key, key) {
			return attr.Value
		}
	}
	return ""
}

// Brand returns the brand attribute.
func (p *Product) Brand() string { return p.Attribute(AttributeBrand) }

// Model returns the model attribute.
func (p *Product) Model() string { return p.Attribute(AttributeModel) }

// Assigned reports whether the product is held by a member.
func (p *Product) Assigned() bool {
	return p.Location == LocationEmployee && p.AssignedEmail != ""
}

// Clone returns a deep copy of the product.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Attributes != nil {
		clone.Attributes = make([]Attribute, len(p.Attributes))
		copy(clone.Attributes, p.Attributes)
	}
	if p.Price != nil {
		price := *p.Price
		clone.Price = &price
	}
	if p.DeletedAt != nil {
		deletedAt := *p.DeletedAt
		clone.DeletedAt = &deletedAt
	}
	return &clone
}

// ProductInput is the payload accepted when creating a product.
type ProductInput struct {
	Category       Category    `json:"category"`
	Name           string      `json:"name"`
	Attributes     []Attribute `json:"attributes"`
	SerialNumber   string      `json:"serialNumber"`
	Location       Location    `json:"location"`
	AssignedEmail  string      `json:"assignedEmail"`
	Recoverable    *bool       `json:"recoverable"` // nil falls back to tenant defaults
	Condition      Condition   `json:"productCondition"`
	AdditionalInfo string      `json:"additionalInfo"`
	Price          *Price      `json:"price"`
}

// ProductChanges describes a partial update of a product.
//
// Pointer fields are left untouched when nil. Nullable fields additionally
// distinguish an explicit null, which clears the stored value.
type ProductChanges struct {
	Category       *Category        `json:"category"`
	Name           *string          `json:"name"`
	Attributes     *[]Attribute     `json:"attributes"`
	SerialNumber   Nullable[string] `json:"serialNumber"`
	Price          Nullable[Price]  `json:"price"`
	Location       *Location        `json:"location"`
	AssignedEmail  *string          `json:"assignedEmail"`
	Status         *Status          `json:"status"`
	Recoverable    *bool            `json:"recoverable"`
	Condition      *Condition       `json:"productCondition"`
	AdditionalInfo Nullable[string] `json:"additionalInfo"`
	FpShipment     *bool            `json:"fp_shipment"`
	ActiveShipment *bool            `json:"activeShipment"`
}
