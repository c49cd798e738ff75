package chat

import (
	"errors"
	"fmt"
)

var (
	ErrModelNotFound    = errors.New("model not found")
	ErrUsageCheckFailed = errors.New("usage check failed")
	ErrUnauthenticated  = errors.New("authentication required")
)

// ValidationError reports a missing or malformed form field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// DispatchMessage is the only text a caller sees for vendor failures.
const DispatchMessage = "Failed to process chat request"

// DispatchError wraps a vendor or transport failure. The cause is logged
// server side and reachable through errors.Unwrap.
type DispatchError struct {
	Vendor string
	Route  Route
	Cause  error
}

func (e *DispatchError) Error() string { return DispatchMessage }

func (e *DispatchError) Unwrap() error { return e.Cause }
