package provider

import "fmt"

type FetchErrorKind string

const (
	FetchTransport   FetchErrorKind = "transport"
	FetchStatus      FetchErrorKind = "status"
	FetchMalformed   FetchErrorKind = "malformed"
	FetchCircuitOpen FetchErrorKind = "circuit_open"
)

// FetchError is returned for network failures, timeouts, non-200 responses
// and payloads that are not a market array.
type FetchError struct {
	Kind   FetchErrorKind
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("market fetch via %s failed (%s): %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
