package attestation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sealify/docseal/imagehash"
	"github.com/sealify/docseal/provider"
)

func validImageHashes() ImageHashes {
	return ImageHashes{
		Cryptographic: strings.Repeat("ab", 32),
		PHash:         strings.Repeat("10", 128),
		DHash:         strings.Repeat("01", 18),
	}
}

func TestNewPackage(t *testing.T) {
	zone := imagehash.Zone{X: 10, Y: 20, Width: 100, Height: 100, FillColor: "#ffffff"}

	tests := []struct {
		name        string
		hashes      DocumentHashes
		identity    Identity
		opts        []Option
		wantErr     bool
		wantUnknown bool
	}{
		{
			name:     "valid image package",
			hashes:   validImageHashes(),
			identity: Identity{Provider: "google", Identifier: "user@example.com"},
			opts:     []Option{WithZone(zone), WithUserURL("https://example.com/u")},
		},
		{
			name:     "valid pdf package",
			hashes:   PDFHashes{Cryptographic: strings.Repeat("cd", 32)},
			identity: Identity{Provider: "github", Identifier: "octocat"},
		},
		{
			name:        "unknown provider",
			hashes:      validImageHashes(),
			identity:    Identity{Provider: "not-a-real-provider", Identifier: "x"},
			wantErr:     true,
			wantUnknown: true,
		},
		{
			name:     "empty identifier",
			hashes:   validImageHashes(),
			identity: Identity{Provider: "google"},
			wantErr:  true,
		},
		{
			name:     "missing pHash",
			hashes:   ImageHashes{Cryptographic: strings.Repeat("ab", 32), DHash: "01"},
			identity: Identity{Provider: "google", Identifier: "x"},
			wantErr:  true,
		},
		{
			name:     "negative zone position",
			hashes:   validImageHashes(),
			identity: Identity{Provider: "google", Identifier: "x"},
			opts:     []Option{WithZone(imagehash.Zone{X: -1, Y: 0, Width: 10, Height: 10, FillColor: "#ffffff"})},
			wantErr:  true,
		},
		{
			name:     "zero-size zone",
			hashes:   validImageHashes(),
			identity: Identity{Provider: "google", Identifier: "x"},
			opts:     []Option{WithZone(imagehash.Zone{X: 0, Y: 0, Width: 0, Height: 10, FillColor: "#ffffff"})},
			wantErr:  true,
		},
		{
			name:     "pdf with zone",
			hashes:   PDFHashes{Cryptographic: strings.Repeat("cd", 32)},
			identity: Identity{Provider: "google", Identifier: "x"},
			opts:     []Option{WithZone(zone)},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewPackage(tt.hashes, tt.identity, tt.opts...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if rec != nil {
					t.Error("partial record returned alongside error")
				}
				if tt.wantUnknown {
					var unknownErr provider.ErrUnknownProvider
					if !errors.As(err, &unknownErr) {
						t.Errorf("expected ErrUnknownProvider, got %T", err)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Signed() {
				t.Error("new package must be unsigned")
			}
			if rec.Timestamp.IsZero() {
				t.Error("provisional timestamp not assigned")
			}
		})
	}
}

func TestComplete(t *testing.T) {
	pkg, err := NewPackage(validImageHashes(), Identity{Provider: "google", Identifier: "user@example.com"})
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	resp := SignerResponse{Timestamp: ts, Signature: []byte{0xd2, 0x84}, PublicKeyID: "key-1"}

	signed, err := pkg.Complete(resp)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !signed.Signed() {
		t.Error("completed record must be signed")
	}
	if !signed.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", signed.Timestamp, ts)
	}
	if signed.ServiceKeyID != "key-1" {
		t.Errorf("service key id = %q", signed.ServiceKeyID)
	}
	if pkg.Signed() {
		t.Error("Complete mutated the original package")
	}

	if _, err := signed.Complete(resp); err == nil {
		t.Error("completing an already-signed record must fail")
	}
	if _, err := pkg.Complete(SignerResponse{PublicKeyID: "key-1"}); err == nil {
		t.Error("completing with an empty signature must fail")
	}
}

func TestExclusionZoneRestoresHashPrefix(t *testing.T) {
	rec := &Record{Zone: &imagehash.Zone{X: 1, Y: 2, Width: 3, Height: 4, FillColor: "ffffff"}}
	z := rec.ExclusionZone()
	if z.FillColor != "#ffffff" {
		t.Errorf("fill color = %q, want #ffffff", z.FillColor)
	}
	// Original must keep its stripped form untouched.
	if rec.Zone.FillColor != "ffffff" {
		t.Errorf("ExclusionZone mutated the record")
	}

	var none *Record = &Record{}
	if none.ExclusionZone() != nil {
		t.Error("nil zone must stay nil")
	}
}

func TestEstimateEncodedSizeMonotonic(t *testing.T) {
	base, err := NewPackage(validImageHashes(), Identity{Provider: "google", Identifier: "a@b.c"})
	if err != nil {
		t.Fatal(err)
	}
	longer, err := NewPackage(validImageHashes(),
		Identity{Provider: "google", Identifier: strings.Repeat("a", 200) + "@example.com"},
		WithUserURL("https://example.com/"+strings.Repeat("p", 100)))
	if err != nil {
		t.Fatal(err)
	}

	if EstimateEncodedSize(longer) <= EstimateEncodedSize(base) {
		t.Error("estimate must grow with field sizes")
	}
}
