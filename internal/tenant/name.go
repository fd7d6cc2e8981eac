package tenant

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfeidau/assettrack/internal/apperr"
)

// maxNameLen keeps "tenant_<name>" inside the database name limits of every backend.
const maxNameLen = 48

// nameRe allows lowercase alphanumerics, hyphens and underscores, starting and
// ending with an alphanumeric character.
var nameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]*[a-z0-9])?$`)

// Normalize lowercases and trims a tenant name and validates it.
func Normalize(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ValidateName checks that name can be used as a store routing key.
func ValidateName(name string) error {
	if name == "" {
		return apperr.Validation(apperr.CodeInvalidTenant, "tenant name is required")
	}
	if len(name) > maxNameLen {
		return apperr.Validation(apperr.CodeInvalidTenant, "tenant %q exceeds maximum length of %d characters", name, maxNameLen)
	}
	if !nameRe.MatchString(name) {
		return apperr.Validation(apperr.CodeInvalidTenant,
			"tenant %q is invalid: must consist of lowercase alphanumeric characters, hyphens or underscores", name)
	}
	return nil
}

// DatabaseName returns the name of the dedicated database holding the tenant's data.
func DatabaseName(name string) string {
	return fmt.Sprintf("tenant_%s", name)
}
