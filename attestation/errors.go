package attestation

import "fmt"

// ErrInvalidInput reports a required field that is missing or malformed.
// Input problems are always surfaced to the builder's caller, never
// silently defaulted.
type ErrInvalidInput struct {
	Field  string
	Reason string
}

func (e ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}
