package models

// Category classifies a product. Merchandising is the only category that
// doesn't require brand and model attributes.
type Category string

const (
	CategoryComputer      Category = "Computer"
	CategoryMonitor       Category = "Monitor"
	CategoryAudio         Category = "Audio"
	CategoryPeripherals   Category = "Peripherals"
	CategoryPhone         Category = "Phone"
	CategoryTablet        Category = "Tablet"
	CategoryFurniture     Category = "Furniture"
	CategoryMerchandising Category = "Merchandising"
	CategoryOther         Category = "Other"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryComputer,
	CategoryMonitor,
	CategoryAudio,
	CategoryPeripherals,
	CategoryPhone,
	CategoryTablet,
	CategoryFurniture,
	CategoryMerchandising,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// RequiresBrandModel reports whether products of this category must carry
// brand and model attributes.
func (c Category) RequiresBrandModel() bool {
	return c != CategoryMerchandising
}

// Location is where a product physically sits.
type Location string

const (
	LocationEmployee    Location = "Employee"
	LocationOurOffice   Location = "Our office"
	LocationFPWarehouse Location = "FP warehouse"
)

// Valid reports whether l is a known location.
func (l Location) Valid() bool {
	switch l {
	case LocationEmployee, LocationOurOffice, LocationFPWarehouse:
		return true
	}
	return false
}

// Storage reports whether l is one of the non-employee locations.
func (l Location) Storage() bool {
	return l == LocationOurOffice || l == LocationFPWarehouse
}

// Status is the derived display status of a product.
type Status string

const (
	StatusAvailable            Status = "Available"
	StatusDelivered            Status = "Delivered"
	StatusDeprecated           Status = "Deprecated"
	StatusUnavailable          Status = "Unavailable"
	StatusInTransit            Status = "In Transit"
	StatusInTransitMissingData Status = "In Transit - Missing Data"
)

// InTransit reports whether s is one of the two in-transit variants.
func (s Status) InTransit() bool {
	return s == StatusInTransit || s == StatusInTransitMissingData
}

// Condition describes the physical state of a product.
type Condition string

const (
	ConditionOptimal   Condition = "Optimal"
	ConditionDefective Condition = "Defective"
	ConditionUnusable  Condition = "Unusable"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionOptimal, ConditionDefective, ConditionUnusable:
		return true
	}
	return false
}

// ShipmentStatus is owned by the logistics workflow; it is only ever read here.
type ShipmentStatus string

const (
	ShipmentNone              ShipmentStatus = ""
	ShipmentInPreparation     ShipmentStatus = "In Preparation"
	ShipmentOnTheWay          ShipmentStatus = "On The Way"
	ShipmentOnHoldMissingData ShipmentStatus = "On Hold - Missing Data"
	ShipmentReceived          ShipmentStatus = "Received"
	ShipmentCancelled         ShipmentStatus = "Cancelled"
)
