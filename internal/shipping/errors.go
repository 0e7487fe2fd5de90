package shipping

import "errors"

// These constants mirror domain error codes to avoid circular imports.
// The handler layer maps them to HTTP status codes.
const (
	codeInvalid     = "invalid"
	codeInternal    = "internal"
	codeUnavailable = "unavailable"
)

// ShippingError represents a shipping-specific error with a code and message.
type ShippingError struct {
	Code    string
	Message string
	Err     error
}

func (e *ShippingError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ShippingError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *ShippingError) ErrorCode() string {
	return e.Code
}

var (
	// ErrInvalidWeight is returned when weight is zero or negative.
	ErrInvalidWeight = &ShippingError{Code: codeInvalid, Message: "Weight must be a positive number of grams"}

	// ErrInvalidPostalCode is returned when the destination postal code is malformed.
	ErrInvalidPostalCode = &ShippingError{Code: codeInvalid, Message: "Destination postal code is not valid"}

	// ErrMissingAPIKey is returned when the rate provider API key is missing.
	ErrMissingAPIKey = &ShippingError{Code: codeInternal, Message: "Shipping provider API key is required"}
)

// QuoteUnavailable wraps a network or upstream failure as a retryable
// condition. Callers retry with backoff; the error is never swallowed.
func QuoteUnavailable(err error) error {
	return &ShippingError{Code: codeUnavailable, Message: "Shipping quote temporarily unavailable", Err: err}
}

// IsUnavailable reports whether err is a retryable quote failure.
func IsUnavailable(err error) bool {
	var se *ShippingError
	if errors.As(err, &se) {
		return se.Code == codeUnavailable
	}
	return false
}
