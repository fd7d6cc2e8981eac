// Package status derives the display status of a product from its location,
// assignment, condition and any shipment currently holding it.
//
// Everything here is pure: identical inputs always yield the same status.
package status

import (
	"strings"

	"github.com/wolfeidau/assettrack/internal/models"
)

// AddressPolicy decides whether an assignee's address is complete enough to ship to.
type AddressPolicy interface {
	Complete(addr models.Address) bool
}

// Address field names understood by RequiredFields.
const (
	FieldAddress       = "address"
	FieldApartment     = "apartment"
	FieldCity          = "city"
	FieldCountry       = "country"
	FieldZipCode       = "zipCode"
	FieldPersonalEmail = "personalEmail"
	FieldPhone         = "phone"
)

// RequiredFields is an AddressPolicy that requires every listed field to be non-blank.
type RequiredFields []string

// DefaultAddressPolicy requires a street address, city, country and zip code.
var DefaultAddressPolicy = RequiredFields{FieldAddress, FieldCity, FieldCountry, FieldZipCode}

// Complete implements AddressPolicy.
func (r RequiredFields) Complete(addr models.Address) bool {
	for _, field := range r {
		if strings.TrimSpace(addressField(addr, field)) == "" {
			return false
		}
	}
	return true
}

// KnownField reports whether RequiredFields understands field.
func KnownField(field string) bool {
	switch field {
	case FieldAddress, FieldApartment, FieldCity, FieldCountry, FieldZipCode, FieldPersonalEmail, FieldPhone:
		return true
	}
	return false
}

func addressField(addr models.Address, field string) string {
	switch field {
	case FieldAddress:
		return addr.Address
	case FieldApartment:
		return addr.Apartment
	case FieldCity:
		return addr.City
	case FieldCountry:
		return addr.Country
	case FieldZipCode:
		return addr.ZipCode
	case FieldPersonalEmail:
		return addr.PersonalEmail
	case FieldPhone:
		return addr.Phone
	}
	return ""
}

// Input carries everything the resolver looks at.
type Input struct {
	Location         models.Location
	AssignedEmail    string
	Condition        models.Condition
	PinnedByShipment bool
	ShipmentStatus   models.ShipmentStatus // ShipmentNone when no shipment holds the product

	// AssigneeAddress is only consulted for pinned products held by an employee.
	// A nil address counts as incomplete.
	AssigneeAddress *models.Address
}

// Resolver resolves product statuses using a configurable address policy.
type Resolver struct {
	policy AddressPolicy
}

// NewResolver creates a resolver. A nil policy falls back to DefaultAddressPolicy.
func NewResolver(policy AddressPolicy) *Resolver {
	if policy == nil {
		policy = DefaultAddressPolicy
	}
	return &Resolver{policy: policy}
}

// Resolve resolves with DefaultAddressPolicy.
func Resolve(in Input) models.Status {
	return NewResolver(nil).Resolve(in)
}

// Resolve returns the status for in. The first matching rule wins.
func (r *Resolver) Resolve(in Input) models.Status {
	assigned := in.Location == models.LocationEmployee && in.AssignedEmail != ""

	if in.PinnedByShipment {
		return r.resolvePinned(in, assigned)
	}

	switch {
	case in.Condition == models.ConditionUnusable:
		return models.StatusUnavailable
	case assigned:
		return models.StatusDelivered
	case in.Location.Storage():
		return models.StatusAvailable
	}

	return models.StatusAvailable
}

func (r *Resolver) resolvePinned(in Input, assigned bool) models.Status {
	switch in.ShipmentStatus {
	case models.ShipmentInPreparation, models.ShipmentOnTheWay:
		return models.StatusInTransit
	case models.ShipmentOnHoldMissingData:
		return models.StatusInTransitMissingData
	case models.ShipmentCancelled, models.ShipmentReceived:
		if assigned {
			return models.StatusDelivered
		}
	}

	switch {
	case assigned:
		if in.AssigneeAddress == nil || !r.policy.Complete(*in.AssigneeAddress) {
			return models.StatusInTransitMissingData
		}
		return models.StatusInTransit
	case in.Location.Storage():
		return models.StatusInTransit
	}

	return models.StatusInTransitMissingData
}
