package models

import "fmt"

// Provider failure reasons. Timeout and invalid_response get one
// repair/retry pass at the adapter boundary; auth and unknown surface
// immediately.
const (
	ReasonTimeout         = "timeout"
	ReasonInvalidResponse = "invalid_response"
	ReasonAuth            = "auth"
	ReasonUnknown         = "unknown"
)

// ProviderError is a provider-boundary failure with a classified reason.
// Declared next to the Provider interface because it is part of its contract.
type ProviderError struct {
	Reason string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("provider error (%s)", e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ProviderTimeout wraps err as a timeout failure.
func ProviderTimeout(err error) *ProviderError {
	return &ProviderError{Reason: ReasonTimeout, Err: err}
}

// ProviderInvalidResponse wraps err as an unparseable or schema-invalid model response.
func ProviderInvalidResponse(err error) *ProviderError {
	return &ProviderError{Reason: ReasonInvalidResponse, Err: err}
}

// ProviderAuthFailure wraps err as a credential failure.
func ProviderAuthFailure(err error) *ProviderError {
	return &ProviderError{Reason: ReasonAuth, Err: err}
}

// ProviderUnknown wraps err as an unclassified provider failure.
func ProviderUnknown(err error) *ProviderError {
	return &ProviderError{Reason: ReasonUnknown, Err: err}
}
