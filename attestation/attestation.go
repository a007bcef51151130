// Package attestation defines the canonical in-memory representation of a
// document seal and the pure construction/validation around it. Nothing in
// this package performs I/O; talking to the remote signer is the caller's
// job.
package attestation

import (
	"strings"
	"time"

	"github.com/sealify/docseal/imagehash"
)

// Identity is the signer identity carried inside the seal. Provider must be
// one of the registered OAuth providers; Identifier is the user-visible
// handle and is preserved byte-for-byte through encoding.
type Identity struct {
	Provider   string `json:"provider"`
	Identifier string `json:"identifier"`
}

// Record is the single source of truth for what was attested.
//
// A Record with no Signature is a package awaiting signing; only a signed
// record may be embedded into a QR code. Once decoded during verification a
// record is read-only.
type Record struct {
	Hashes       imagehash.Hashes
	Timestamp    time.Time
	Identity     Identity
	ServiceKeyID string
	Zone         *imagehash.Zone
	Signature    []byte
	UserURL      string
}

// SignerResponse is what the remote signer returns for an accepted package.
type SignerResponse struct {
	Timestamp   time.Time `json:"timestamp"`
	Signature   []byte    `json:"signature"`
	PublicKeyID string    `json:"publicKeyId"`
	PublicKey   string    `json:"publicKey,omitempty"`
}

// Signed reports whether the record carries a signature, i.e. is complete.
func (r *Record) Signed() bool {
	return len(r.Signature) > 0
}

// ExclusionZone returns a copy of the zone with the '#' prefix restored on
// the fill color, or nil for non-image documents.
func (r *Record) ExclusionZone() *imagehash.Zone {
	if r.Zone == nil {
		return nil
	}
	z := *r.Zone
	if !strings.HasPrefix(z.FillColor, "#") {
		z.FillColor = "#" + z.FillColor
	}
	return &z
}

// Complete merges the signer's response into an unsigned package, producing
// a new complete record. The receiver is not modified.
func (r *Record) Complete(resp SignerResponse) (*Record, error) {
	if r.Signed() {
		return nil, ErrInvalidInput{Field: "signature", Reason: "record is already signed"}
	}
	if len(resp.Signature) == 0 {
		return nil, ErrInvalidInput{Field: "signature", Reason: "signer response carries no signature"}
	}
	if resp.PublicKeyID == "" {
		return nil, ErrInvalidInput{Field: "publicKeyId", Reason: "signer response carries no key id"}
	}

	signed := *r
	if r.Zone != nil {
		z := *r.Zone
		signed.Zone = &z
	}
	signed.Timestamp = resp.Timestamp.UTC()
	signed.ServiceKeyID = resp.PublicKeyID
	signed.Signature = append([]byte(nil), resp.Signature...)
	return &signed, nil
}
