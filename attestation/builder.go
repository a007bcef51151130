package attestation

import (
	"time"

	"github.com/sealify/docseal/imagehash"
	"github.com/sealify/docseal/provider"
)

// Option customizes a package under construction.
type Option func(*Record)

// WithZone attaches the exclusion zone the QR visual will occupy.
func WithZone(z imagehash.Zone) Option {
	return func(r *Record) {
		zone := z
		r.Zone = &zone
	}
}

// WithUserURL attaches an optional user-supplied profile link.
func WithUserURL(url string) Option {
	return func(r *Record) {
		r.UserURL = url
	}
}

// WithTimestamp overrides the provisional client-assigned timestamp. The
// signer replaces it with its own once the package is signed.
func WithTimestamp(t time.Time) Option {
	return func(r *Record) {
		r.Timestamp = t.UTC()
	}
}

// NewPackage builds an unsigned attestation package from raw inputs.
//
// It fails with provider.ErrUnknownProvider for an unregistered identity
// provider and ErrInvalidInput for empty hash fields or a malformed
// exclusion zone. No partial record is ever returned alongside an error.
func NewPackage(hashes DocumentHashes, identity Identity, opts ...Option) (*Record, error) {
	if !provider.IsRegistered(identity.Provider) {
		return nil, provider.ErrUnknownProvider{ID: identity.Provider}
	}
	if identity.Identifier == "" {
		return nil, ErrInvalidInput{Field: "identity.identifier", Reason: "empty"}
	}

	rec := &Record{
		Identity:  identity,
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(rec)
	}

	switch h := hashes.(type) {
	case ImageHashes:
		if h.Cryptographic == "" {
			return nil, ErrInvalidInput{Field: "hashes.cryptographic", Reason: "empty"}
		}
		if h.PHash == "" {
			return nil, ErrInvalidInput{Field: "hashes.pHash", Reason: "empty"}
		}
		if h.DHash == "" {
			return nil, ErrInvalidInput{Field: "hashes.dHash", Reason: "empty"}
		}
		rec.Hashes = imagehash.Hashes{
			Cryptographic: h.Cryptographic,
			PHash:         h.PHash,
			DHash:         h.DHash,
		}
	case PDFHashes:
		if h.Cryptographic == "" {
			return nil, ErrInvalidInput{Field: "hashes.cryptographic", Reason: "empty"}
		}
		if rec.Zone != nil {
			return nil, ErrInvalidInput{Field: "exclusionZone", Reason: "pdf documents carry no zone"}
		}
		rec.Hashes = imagehash.Hashes{Cryptographic: h.Cryptographic}
	default:
		return nil, ErrInvalidInput{Field: "hashes", Reason: "unknown document hash variant"}
	}

	if rec.Zone != nil {
		if err := rec.Zone.Validate(); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// EstimateEncodedSize predicts the encoded token length in bytes. It is not
// authoritative (the wire codec is) but is monotonic with the codec's actual
// output, so callers can trust relative comparisons when choosing a QR
// layout.
func EstimateEncodedSize(r *Record) int {
	// CBOR framing plus the fixed binary hash block: 32-byte digest,
	// 32-byte pHash pack, 5-byte dHash pack.
	size := 24 + 32 + 32 + 5

	size += len(r.Identity.Identifier) + 2 // compact id + separator
	size += len(r.ServiceKeyID)
	if r.Zone != nil {
		size += 12 + 6 // four small ints + fill color
	}
	size += len(r.Signature)
	size += len(r.UserURL)

	// base64 expansion.
	return (size*4 + 2) / 3
}
