// Package normalize turns loosely formatted upstream values into typed ones.
// Upstream publishes numbers as strings in either Spanish ("1.234,56") or
// English ("1,234.56") notation, often with a trailing percent sign.
package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Number parses a locale-ambiguous numeric string.
//
// Rules:
//   - Percent signs and all whitespace are stripped.
//   - When both '.' and ',' appear, the one that appears last is the decimal
//     separator and the other is a thousands separator.
//   - A single ',' is a decimal separator. Repeated ',' are thousands separators.
//   - Repeated '.' are thousands separators.
//
// Empty or unparseable input yields nil, never zero.
//
// Parameters:
//   - s: The raw value, e.g. "12,50%", "1.234,56" or "1,234.56"
//
// Returns:
//   - *float64: The parsed value, or nil
func Number(s string) *float64 {
	d, ok := Decimal(s)
	if !ok {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// Decimal is Number with full precision. The bool is false when the input is
// empty or unparseable.
func Decimal(s string) (decimal.Decimal, bool) {
	clean := canonical(s)
	if clean == "" || clean == "-" || clean == "+" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func canonical(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '%', ' ', '\t', '\n', '\r', '\u00a0':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return ""
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}
