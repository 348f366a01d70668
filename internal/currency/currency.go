// Package currency provides currency code normalization and validation.
package currency

import (
	"errors"
	"strings"
)

// Default is the base currency assumed when a user has none configured.
const Default = "EUR"

// ErrUnsupported is returned when a currency outside the allow-list
// reaches a conversion. Upstream validation should make this unreachable.
var ErrUnsupported = errors.New("unsupported currency")

// allowed is the set of currencies the tracker supports.
var allowed = map[string]bool{
	"EUR": true,
	"USD": true,
	"RON": true,
}

// Normalize trims and upper-cases a currency code. It does not validate;
// malformed input comes back unchanged apart from casing and whitespace.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsAllowed reports whether the code is one of the supported currencies.
// The check is case-insensitive.
func IsAllowed(code string) bool {
	return allowed[Normalize(code)]
}
