package wire

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sealify/docseal/imagehash"
)

func packHashes(h imagehash.Hashes) (wireHashes, error) {
	crypto, err := hex.DecodeString(h.Cryptographic)
	if err != nil || len(crypto) != cryptoHashBytes {
		return wireHashes{}, ErrInvalidStructure{Field: "h", Reason: fmt.Sprintf("cryptographic hash %q is not 64 hex chars", h.Cryptographic)}
	}

	phash, err := packBits(h.PHash, pHashBits)
	if err != nil {
		return wireHashes{}, ErrInvalidStructure{Field: "h", Reason: "pHash: " + err.Error()}
	}
	dhash, err := packBits(h.DHash, dHashBits)
	if err != nil {
		return wireHashes{}, ErrInvalidStructure{Field: "h", Reason: "dHash: " + err.Error()}
	}

	return wireHashes{Cryptographic: crypto, PHash: phash, DHash: dhash}, nil
}

func unpackHashes(w wireHashes) (imagehash.Hashes, error) {
	h := imagehash.Hashes{Cryptographic: hex.EncodeToString(w.Cryptographic)}

	if len(w.PHash) > 0 {
		h.PHash = unpackBits(w.PHash, pHashBits)
	}
	if len(w.DHash) > 0 {
		h.DHash = unpackBits(w.DHash, dHashBits)
	}
	return h, nil
}

// packBits turns a '0'/'1' string of exactly n bits into ceil(n/8) bytes,
// most significant bit first. An empty string packs to nil (the PDF path
// has no perceptual hashes).
func packBits(bits string, n int) ([]byte, error) {
	if bits == "" {
		return nil, nil
	}
	if len(bits) != n {
		return nil, fmt.Errorf("got %d bits, want %d", len(bits), n)
	}
	out := make([]byte, (n+7)/8)
	for i := 0; i < n; i++ {
		switch bits[i] {
		case '1':
			out[i/8] |= 1 << (7 - uint(i%8))
		case '0':
		default:
			return nil, fmt.Errorf("non-bit character %q at index %d", bits[i], i)
		}
	}
	return out, nil
}

func unpackBits(packed []byte, n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		if packed[i/8]&(1<<(7-uint(i%8))) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
