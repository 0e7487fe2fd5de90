// Package shipping provides carrier rate quoting behind a Provider
// interface. Implementations normalize heterogeneous carrier responses
// into one uniform quote list.
package shipping

import (
	"context"
	"regexp"
)

// postalCodePattern matches Indonesian postal codes (five digits).
var postalCodePattern = regexp.MustCompile(`^[0-9]{5}$`)

// ValidPostalCode reports whether the destination postal code is
// syntactically valid for the origin country.
func ValidPostalCode(code string) bool {
	return postalCodePattern.MatchString(code)
}

// Provider defines the interface for shipping rate lookup.
// Implementations can integrate with carrier aggregators or flat rates.
type Provider interface {
	// Quote returns available service options for a destination and weight,
	// sorted by ascending cost. An empty list is a valid "no service
	// available" outcome, not an error.
	Quote(ctx context.Context, params QuoteParams) ([]Quote, error)
}

// QuoteParams contains parameters for a rate lookup.
type QuoteParams struct {
	// DestinationPostalCode must be syntactically valid for the origin country.
	DestinationPostalCode string

	// WeightGrams must be a positive integer.
	WeightGrams int32

	// CarrierCode optionally restricts the lookup to one carrier.
	CarrierCode string
}

// Quote is one carrier service option.
type Quote struct {
	CarrierCode string `json:"carrier_code"`
	ServiceCode string `json:"service_code"`
	Description string `json:"description"`

	// Cost in the smallest currency unit, never negative.
	Cost int64 `json:"cost"`

	// Estimated delivery window in days.
	EtdMinDays int `json:"etd_min_days"`
	EtdMaxDays int `json:"etd_max_days"`
}
