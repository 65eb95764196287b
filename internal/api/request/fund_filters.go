// Package request parses HTTP query parameters into domain filters.
package request

import (
	"strings"
	"unicode"

	"github.com/ndewijer/fci-sync/internal/model"
	"github.com/ndewijer/fci-sync/internal/validation"
)

const maxFilterLength = 100

// ParseFundClassFilter extracts and validates fund class list filters from
// query parameters. All parameters are optional.
//
// Validation rules:
//   - currency: letters or digits only (a code like "ARS" or a currency ID)
//   - incomeType, manager: at most 100 characters
//   - enriched: "true" or "false"
//
// Returns a *validation.Error naming every invalid parameter.
func ParseFundClassFilter(currencyParam, incomeTypeParam, managerParam, enrichedParam string) (*model.FundClassFilter, error) {
	errs := make(map[string]string)
	filter := &model.FundClassFilter{
		Currency:   strings.TrimSpace(currencyParam),
		IncomeType: strings.TrimSpace(incomeTypeParam),
		Manager:    strings.TrimSpace(managerParam),
	}

	if filter.Currency != "" && !isAlphanumeric(filter.Currency) {
		errs["currency"] = "must contain only letters or digits"
	}
	if len(filter.IncomeType) > maxFilterLength {
		errs["incomeType"] = "too long"
	}
	if len(filter.Manager) > maxFilterLength {
		errs["manager"] = "too long"
	}

	enriched, err := validation.ValidateBool(enrichedParam)
	if err != nil {
		errs["enriched"] = err.Error()
	}
	filter.Enriched = enriched

	if len(errs) > 0 {
		return nil, &validation.Error{Fields: errs}
	}
	return filter, nil
}

func isAlphanumeric(s string) bool {
	if len(s) > 16 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
