package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address holds the shipping details of a member.
type Address struct {
	Address       string `json:"address,omitempty"`
	Apartment     string `json:"apartment,omitempty"`
	City          string `json:"city,omitempty"`
	Country       string `json:"country,omitempty"`
	ZipCode       string `json:"zipCode,omitempty"`
	PersonalEmail string `json:"personalEmail,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

// Member is an employee of a tenant who may hold embedded products.
type Member struct {
	ID             uuid.UUID `json:"id"`    // UUIDv7
	Email          string    `json:"email"` // unique per tenant
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Address        Address   `json:"address"`
	ActiveShipment bool      `json:"activeShipment"`
	Products       []Product `json:"products"`

	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// FullName returns the display name of the member.
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// ProductIndex returns the position of the embedded product, or -1.
func (m *Member) ProductIndex(productID uuid.UUID) int {
	for i := range m.Products {
		if m.Products[i].ID == productID {
			return i
		}
	}
	return -1
}

// HasRecoverableProducts reports whether any live embedded product is recoverable.
func (m *Member) HasRecoverableProducts() bool {
	for i := range m.Products {
		if m.Products[i].Recoverable && !m.Products[i].IsDeleted {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the member including embedded products.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	clone := *m
	if m.Products != nil {
		clone.Products = make([]Product, len(m.Products))
		for i := range m.Products {
			clone.Products[i] = *m.Products[i].Clone()
		}
	}
	if m.DeletedAt != nil {
		deletedAt := *m.DeletedAt
		clone.DeletedAt = &deletedAt
	}
	return &clone
}

// MemberInput is the payload accepted when creating a member.
type MemberInput struct {
	Email     string  `json:"email"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Address   Address `json:"address"`
}
