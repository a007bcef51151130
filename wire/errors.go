package wire

import "fmt"

// ErrDecodeFailed reports a token that could not be decoded at all:
// malformed base64 or a CBOR body that does not parse. This is a QR or
// encoding problem, never a document-integrity problem.
type ErrDecodeFailed struct {
	Stage string
	Err   error
}

func (e ErrDecodeFailed) Error() string {
	return fmt.Sprintf("decode failed at %s: %v", e.Stage, e.Err)
}

func (e ErrDecodeFailed) Unwrap() error { return e.Err }

// ErrInvalidStructure reports a token that decoded but does not describe a
// structurally valid attestation record.
type ErrInvalidStructure struct {
	Field  string
	Reason string
}

func (e ErrInvalidStructure) Error() string {
	return fmt.Sprintf("invalid record structure: field %q: %s", e.Field, e.Reason)
}

// Error codes carried by Decoded for callers that branch on scan failures
// routinely rather than handling exceptions.
const (
	CodeDecodeFailed     = "decode_failed"
	CodeInvalidStructure = "invalid_structure"
)
