package service

import "fmt"

// ValidationError reports input that failed validation before any storage
// call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// AllocationError reports a failure to derive the next record identifier.
type AllocationError struct {
	Err error
}

func (e AllocationError) Error() string {
	return fmt.Sprintf("allocate record id: %v", e.Err)
}

func (e AllocationError) Unwrap() error { return e.Err }
