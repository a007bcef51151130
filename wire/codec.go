package wire

import (
	"encoding/base64"
	"errors"

	"github.com/fxamacker/cbor/v2"

	"github.com/sealify/docseal/attestation"
)

// Encode serializes a record into a URL-safe token.
func Encode(r *attestation.Record) (string, error) {
	w, err := toWire(r)
	if err != nil {
		return "", err
	}
	body, err := encMode.Marshal(w)
	if err != nil {
		return "", ErrDecodeFailed{Stage: "cbor encode", Err: err}
	}
	return base64.RawURLEncoding.EncodeToString(body), nil
}

// EncodeUnsigned returns the canonical CBOR bytes of the record with the
// signature omitted. These are the to-be-signed bytes: the signer and the
// verifier both derive them independently from the same record.
func EncodeUnsigned(r *attestation.Record) ([]byte, error) {
	w, err := toWire(r)
	if err != nil {
		return nil, err
	}
	w.Signature = nil
	body, err := encMode.Marshal(w)
	if err != nil {
		return nil, ErrDecodeFailed{Stage: "cbor encode", Err: err}
	}
	return body, nil
}

// Decode parses a token back into a canonical record. It accepts a bare
// token or a full verification URL, and tolerates base64 padding left in by
// older encoders.
func Decode(token string) (*attestation.Record, error) {
	raw := TokenFromURL(token)
	if raw == "" {
		return nil, ErrDecodeFailed{Stage: "base64", Err: errors.New("empty token")}
	}

	body, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		// Older encoders emitted padded tokens.
		body, err = base64.URLEncoding.DecodeString(raw)
		if err != nil {
			return nil, ErrDecodeFailed{Stage: "base64", Err: err}
		}
	}

	var w wireRecord
	if err := decMode.Unmarshal(body, &w); err != nil {
		return nil, ErrDecodeFailed{Stage: "cbor decode", Err: err}
	}
	return fromWire(&w)
}

// Decoded is the branch-friendly decode result for scan paths, where a bad
// QR is a routine outcome rather than an exceptional one.
type Decoded struct {
	Valid     bool
	ErrorCode string
	Detail    string
	Record    *attestation.Record
}

// DecodeChecked never returns an error; failures are reported through the
// Valid flag and ErrorCode.
func DecodeChecked(token string) *Decoded {
	rec, err := Decode(token)
	if err == nil {
		return &Decoded{Valid: true, Record: rec}
	}

	var structural ErrInvalidStructure
	if errors.As(err, &structural) {
		return &Decoded{ErrorCode: CodeInvalidStructure, Detail: err.Error()}
	}
	return &Decoded{ErrorCode: CodeDecodeFailed, Detail: err.Error()}
}

// cborDiagnostic is kept for debugging token layouts from tests.
func cborDiagnostic(body []byte) (string, error) {
	dm, err := cbor.DiagOptions{}.DiagMode()
	if err != nil {
		return "", err
	}
	return dm.Diagnose(body)
}
