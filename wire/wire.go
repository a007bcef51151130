// Package wire is the compact codec between the canonical attestation
// record and the URL-safe token embedded in a QR code.
//
// The pipeline is: field remap to 1-character keys → numeric narrowing
// (timestamp to unix seconds, hashes to packed bytes) → optional-field
// omission → CBOR serialization → base64url without padding. Decoding
// reverses the five stages exactly. Token length is the binding constraint:
// every byte saved can avoid promoting the QR symbol to a denser version.
// The identity and user URL are never truncated, whatever they cost.
package wire

import (
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/sealify/docseal/attestation"
	"github.com/sealify/docseal/imagehash"
	"github.com/sealify/docseal/provider"
)

const (
	cryptoHashBytes = 32
	pHashBits       = 256
	dHashBits       = 36

	identitySeparator = ":"
)

// wireRecord is the compact intermediate form. It exists only inside an
// encode or decode call and is never application state.
type wireRecord struct {
	Hashes    wireHashes `cbor:"h"`
	Timestamp int64      `cbor:"t"`
	Identity  string     `cbor:"i"`
	KeyID     string     `cbor:"k"`
	Zone      *wireZone  `cbor:"z,omitempty"`
	Signature []byte     `cbor:"s,omitempty"`
	UserURL   string     `cbor:"u,omitempty"`
}

// wireHashes packs the three hashes into raw bytes: 32-byte digest, 32-byte
// pHash bitmap, 5-byte dHash bitmap. Encoded as a CBOR array to avoid three
// more map keys. The PDF path leaves the perceptual packs empty.
type wireHashes struct {
	_             struct{} `cbor:",toarray"`
	Cryptographic []byte
	PHash         []byte
	DHash         []byte
}

// wireZone flattens the exclusion zone into [x, y, w, h, fill] with the
// '#' stripped from the fill color.
type wireZone struct {
	_    struct{} `cbor:",toarray"`
	X    int
	Y    int
	W    int
	H    int
	Fill string
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: cbor enc mode: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("wire: cbor dec mode: " + err.Error())
	}
}

func toWire(r *attestation.Record) (*wireRecord, error) {
	if r == nil {
		return nil, ErrInvalidStructure{Field: "record", Reason: "nil"}
	}

	h, err := packHashes(r.Hashes)
	if err != nil {
		return nil, err
	}

	p, err := provider.ByID(r.Identity.Provider)
	if err != nil {
		return nil, ErrInvalidStructure{Field: "i", Reason: err.Error()}
	}
	if r.Identity.Identifier == "" {
		return nil, ErrInvalidStructure{Field: "i", Reason: "empty identifier"}
	}
	if r.ServiceKeyID == "" {
		return nil, ErrInvalidStructure{Field: "k", Reason: "empty service key id"}
	}

	w := &wireRecord{
		Hashes:    h,
		Timestamp: r.Timestamp.Unix(),
		Identity:  p.CompactID + identitySeparator + r.Identity.Identifier,
		KeyID:     r.ServiceKeyID,
		Signature: r.Signature,
		UserURL:   r.UserURL,
	}

	if r.Zone != nil {
		if err := r.Zone.Validate(); err != nil {
			return nil, ErrInvalidStructure{Field: "z", Reason: err.Error()}
		}
		w.Zone = &wireZone{
			X:    r.Zone.X,
			Y:    r.Zone.Y,
			W:    r.Zone.Width,
			H:    r.Zone.Height,
			Fill: strings.TrimPrefix(r.Zone.FillColor, "#"),
		}
	}
	return w, nil
}

func fromWire(w *wireRecord) (*attestation.Record, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}

	hashes, err := unpackHashes(w.Hashes)
	if err != nil {
		return nil, err
	}

	compactID, identifier, _ := strings.Cut(w.Identity, identitySeparator)
	p, err := provider.ByCompactID(compactID)
	if err != nil {
		return nil, ErrInvalidStructure{Field: "i", Reason: err.Error()}
	}

	rec := &attestation.Record{
		Hashes:       hashes,
		Timestamp:    time.Unix(w.Timestamp, 0).UTC(),
		Identity:     attestation.Identity{Provider: p.ID, Identifier: identifier},
		ServiceKeyID: w.KeyID,
		Signature:    w.Signature,
		UserURL:      w.UserURL,
	}

	if w.Zone != nil {
		rec.Zone = &imagehash.Zone{
			X:         w.Zone.X,
			Y:         w.Zone.Y,
			Width:     w.Zone.W,
			Height:    w.Zone.H,
			FillColor: "#" + w.Zone.Fill,
		}
	}
	return rec, nil
}

// validate checks structural invariants of a freshly decoded wire record.
// A failure here means the token decoded but does not describe a seal.
func (w *wireRecord) validate() error {
	if len(w.Hashes.Cryptographic) != cryptoHashBytes {
		return ErrInvalidStructure{Field: "h", Reason: fmt.Sprintf("cryptographic hash is %d bytes, want %d", len(w.Hashes.Cryptographic), cryptoHashBytes)}
	}
	if n := len(w.Hashes.PHash); n != 0 && n != pHashBits/8 {
		return ErrInvalidStructure{Field: "h", Reason: fmt.Sprintf("pHash pack is %d bytes", n)}
	}
	if n := len(w.Hashes.DHash); n != 0 && n != (dHashBits+7)/8 {
		return ErrInvalidStructure{Field: "h", Reason: fmt.Sprintf("dHash pack is %d bytes", n)}
	}
	if w.Timestamp <= 0 {
		return ErrInvalidStructure{Field: "t", Reason: "missing timestamp"}
	}
	if !strings.Contains(w.Identity, identitySeparator) {
		return ErrInvalidStructure{Field: "i", Reason: "identity is not compactId:identifier"}
	}
	if w.KeyID == "" {
		return ErrInvalidStructure{Field: "k", Reason: "missing service key id"}
	}
	if z := w.Zone; z != nil {
		if z.X < 0 || z.Y < 0 {
			return ErrInvalidStructure{Field: "z", Reason: "negative position"}
		}
		if z.W <= 0 || z.H <= 0 {
			return ErrInvalidStructure{Field: "z", Reason: "non-positive size"}
		}
		if len(z.Fill) != 6 {
			return ErrInvalidStructure{Field: "z", Reason: "fill color is not RRGGBB"}
		}
	}
	return nil
}
