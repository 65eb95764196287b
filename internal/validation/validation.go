// Package validation checks identifiers and query values received over HTTP.
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ndewijer/fci-sync/internal/apperrors"
)

// ValidateClassID checks that id is a positive upstream numeric class ID.
func ValidateClassID(id string) error {
	n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
	if err != nil || n == 0 {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidClassID, id)
	}
	return nil
}

// ValidateBool checks an optional boolean query value.
func ValidateBool(value string) (*bool, error) {
	if value == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("must be true or false")
	}
	return &b, nil
}
