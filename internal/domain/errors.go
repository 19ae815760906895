package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord marks a record missing a numeric timestamp or value.
	// The whole fetch fails rather than presenting a partial series.
	ErrMalformedRecord = errors.New("malformed telemetry record")

	// ErrUnknownDevice is returned when a device id is not in the catalog.
	ErrUnknownDevice = errors.New("unknown device")
)

// TransportError is a failed read against the remote store: either a
// non-2xx status or a network failure (StatusCode 0).
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("telemetry store returned status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("telemetry store unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
