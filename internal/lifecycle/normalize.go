package lifecycle

import (
	"strings"

	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/tenantconfig"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// unassignSentinel is accepted by Reassign as "no assignee".
const unassignSentinel = "none"

var titleCaser = cases.Title(language.Und)

// normalizeName trims, collapses inner whitespace and title-cases a product name.
func normalizeName(name string) string {
	return titleCaser.String(strings.Join(strings.Fields(name), " "))
}

// normalizeEmail lowercases and trims an email address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeAttributes trims keys and values and drops attributes without a key.
func normalizeAttributes(attrs []models.Attribute) []models.Attribute {
	out := make([]models.Attribute, 0, len(attrs))
	for _, a := range attrs {
		key := strings.TrimSpace(a.Key)
		if key == "" {
			continue
		}
		out = append(out, models.Attribute{Key: key, Value: strings.TrimSpace(a.Value)})
	}
	return out
}

// validateProduct checks the fields every stored product must satisfy.
func validateProduct(p *models.Product) error {
	if !p.Category.Valid() {
		return apperr.Validation(apperr.CodeValidation, "category %q is invalid", p.Category)
	}
	if p.Name == "" {
		return apperr.Validation(apperr.CodeValidation, "name is required")
	}
	if p.Category.RequiresBrandModel() && (p.Brand() == "" || p.Model() == "") {
		return apperr.Validation(apperr.CodeMissingBrandModel, "brand and model are required for category %s", p.Category)
	}
	if !p.Condition.Valid() {
		return apperr.Validation(apperr.CodeValidation, "condition %q is invalid", p.Condition)
	}
	if p.Price != nil {
		if p.Price.Amount.IsNegative() {
			return apperr.Validation(apperr.CodeValidation, "price amount must not be negative")
		}
		if strings.TrimSpace(p.Price.CurrencyCode) == "" {
			return apperr.Validation(apperr.CodeValidation, "price currency code is required")
		}
	}
	return validatePlacement(p)
}

// validatePlacement enforces that a product is held by an employee exactly
// when it has an assignee.
func validatePlacement(p *models.Product) error {
	switch {
	case !p.Location.Valid():
		return apperr.Validation(apperr.CodeInvalidLocation, "location %q is invalid", p.Location)
	case p.Location == models.LocationEmployee && p.AssignedEmail == "":
		return apperr.Validation(apperr.CodeInvalidLocation, "location %s requires an assignee", p.Location)
	case p.Location != models.LocationEmployee && p.AssignedEmail != "":
		return apperr.Validation(apperr.CodeInvalidLocation, "an assigned product must be at location %s", models.LocationEmployee)
	}
	return nil
}

// newProduct turns a create payload into a product. The assignment intent
// decides the location: an assignee always means Employee.
func newProduct(in models.ProductInput, recoverable map[models.Category]bool) (*models.Product, error) {
	p := &models.Product{
		Category:       models.Category(strings.TrimSpace(string(in.Category))),
		Name:           normalizeName(in.Name),
		Attributes:     normalizeAttributes(in.Attributes),
		SerialNumber:   strings.TrimSpace(in.SerialNumber),
		Location:       in.Location,
		AssignedEmail:  normalizeEmail(in.AssignedEmail),
		Condition:      in.Condition,
		AdditionalInfo: strings.TrimSpace(in.AdditionalInfo),
	}

	if p.Condition == "" {
		p.Condition = models.ConditionOptimal
	}

	if in.Price != nil {
		price := *in.Price
		price.CurrencyCode = strings.ToUpper(strings.TrimSpace(price.CurrencyCode))
		p.Price = &price
	}

	if p.AssignedEmail != "" {
		p.Location = models.LocationEmployee
	}

	if in.Recoverable != nil {
		p.Recoverable = *in.Recoverable
	} else {
		p.Recoverable = tenantconfig.Recoverable(recoverable, p.Category)
	}

	if err := validateProduct(p); err != nil {
		return nil, err
	}
	return p, nil
}
