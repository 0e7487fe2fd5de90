package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAPIKey is returned when the gateway server key is missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing server key")

	// ErrInvalidSignature is returned when notification signature
	// verification fails. Callers must not act on the payload.
	ErrInvalidSignature = errors.New("billing: invalid notification signature")

	// ErrMalformedNotification is returned when a notification payload
	// cannot be parsed at all.
	ErrMalformedNotification = errors.New("billing: malformed notification payload")
)

// GatewayError wraps a gateway API error with additional context.
type GatewayError struct {
	Message       string // Human-readable error message
	StatusCode    int    // HTTP status returned by the gateway
	Temporary     bool   // Whether a retry may succeed
	OriginalError error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway: %s (status: %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("gateway: %s", e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary reports whether err is a transient gateway failure worth
// retrying. Network errors and 5xx responses qualify, rejections do not.
func IsTemporary(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Temporary
	}
	return false
}
