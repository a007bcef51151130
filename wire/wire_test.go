package wire

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sealify/docseal/attestation"
	"github.com/sealify/docseal/imagehash"
)

func sampleRecord(t *testing.T) *attestation.Record {
	t.Helper()
	return &attestation.Record{
		Hashes: imagehash.Hashes{
			Cryptographic: strings.Repeat("a1", 32),
			PHash:         strings.Repeat("10", 128),
			DHash:         strings.Repeat("011011", 6),
		},
		Timestamp:    time.Date(2026, 2, 14, 9, 30, 45, 0, time.UTC),
		Identity:     attestation.Identity{Provider: "google", Identifier: "user@example.com"},
		ServiceKeyID: "key-2026-01",
		Zone:         &imagehash.Zone{X: 12, Y: 34, Width: 120, Height: 120, FillColor: "#ffffff"},
		Signature:    []byte{0xd2, 0x84, 0x43, 0xa1, 0x01, 0x26},
		UserURL:      "https://example.com/profile/user",
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*attestation.Record)
	}{
		{name: "full record", mutate: func(r *attestation.Record) {}},
		{name: "no signature", mutate: func(r *attestation.Record) { r.Signature = nil }},
		{name: "no user url", mutate: func(r *attestation.Record) { r.UserURL = "" }},
		{
			name: "no zone, pdf style hashes",
			mutate: func(r *attestation.Record) {
				r.Zone = nil
				r.Hashes.PHash = ""
				r.Hashes.DHash = ""
			},
		},
		{
			name: "maximal identifier",
			mutate: func(r *attestation.Record) {
				r.Identity.Identifier = strings.Repeat("x", 200) + "@example.com"
			},
		},
		{
			name: "identifier containing separator",
			mutate: func(r *attestation.Record) {
				r.Identity.Identifier = "acct:user@example.com"
			},
		},
		{
			name: "long user url",
			mutate: func(r *attestation.Record) {
				r.UserURL = "https://example.com/" + strings.Repeat("p", 100)
			},
		},
		{
			name: "zone at origin",
			mutate: func(r *attestation.Record) {
				r.Zone = &imagehash.Zone{X: 0, Y: 0, Width: 1, Height: 1, FillColor: "#000000"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord(t)
			tt.mutate(rec)

			token, err := Encode(rec)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if strings.ContainsAny(token, "+/=") {
				t.Errorf("token %q is not url-safe unpadded base64", token)
			}

			got, err := Decode(token)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if got.Hashes != rec.Hashes {
				t.Errorf("hashes differ:\n got %+v\nwant %+v", got.Hashes, rec.Hashes)
			}
			if got.Identity != rec.Identity {
				t.Errorf("identity differs: got %+v want %+v", got.Identity, rec.Identity)
			}
			if got.ServiceKeyID != rec.ServiceKeyID {
				t.Errorf("service key id differs: %q vs %q", got.ServiceKeyID, rec.ServiceKeyID)
			}
			if got.UserURL != rec.UserURL {
				t.Errorf("user url differs: %q vs %q", got.UserURL, rec.UserURL)
			}
			if string(got.Signature) != string(rec.Signature) {
				t.Errorf("signature differs")
			}

			drift := got.Timestamp.Sub(rec.Timestamp)
			if drift < 0 {
				drift = -drift
			}
			if drift >= time.Second {
				t.Errorf("timestamp drift %v >= 1s", drift)
			}

			switch {
			case rec.Zone == nil:
				if got.Zone != nil {
					t.Errorf("absent zone decoded to %+v", got.Zone)
				}
			default:
				want := *rec.Zone
				if *got.Zone != want {
					t.Errorf("zone differs: got %+v want %+v", *got.Zone, want)
				}
			}
		})
	}
}

func TestTimestampSubSecondNarrowing(t *testing.T) {
	rec := sampleRecord(t)
	rec.Timestamp = time.Date(2026, 2, 14, 9, 30, 45, 999_000_000, time.UTC)

	token, err := Encode(rec)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(token)
	if err != nil {
		t.Fatal(err)
	}
	if drift := rec.Timestamp.Sub(got.Timestamp); drift < 0 || drift >= time.Second {
		t.Errorf("drift %v out of [0,1s)", drift)
	}
}

func TestDecodeAcceptsURLAndPaddedForms(t *testing.T) {
	rec := sampleRecord(t)
	token, err := Encode(rec)
	if err != nil {
		t.Fatal(err)
	}

	// Re-pad to simulate an older encoder.
	body, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatal(err)
	}
	padded := base64.URLEncoding.EncodeToString(body)

	forms := []struct {
		name  string
		input string
	}{
		{name: "bare", input: token},
		{name: "verification url", input: VerificationURL("https://seal.example.com", token)},
		{name: "url with trailing query", input: VerificationURL("https://seal.example.com", token) + "?utm=x"},
		{name: "padded legacy", input: padded},
	}

	for _, f := range forms {
		t.Run(f.name, func(t *testing.T) {
			got, err := Decode(f.input)
			if err != nil {
				t.Fatalf("Decode(%q): %v", f.input, err)
			}
			if got.Identity != rec.Identity {
				t.Errorf("identity differs after decode")
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	validToken, err := Encode(sampleRecord(t))
	if err != nil {
		t.Fatal(err)
	}

	// CBOR that parses but is not a seal record.
	notARecord := base64.RawURLEncoding.EncodeToString([]byte{0xa1, 0x61, 0x71, 0x01}) // {"q": 1}

	tests := []struct {
		name           string
		token          string
		wantDecodeFail bool
		wantStructural bool
	}{
		{name: "garbage base64", token: "%%%not-base64%%%", wantDecodeFail: true},
		{name: "empty", token: "", wantDecodeFail: true},
		{name: "valid base64, invalid cbor", token: base64.RawURLEncoding.EncodeToString([]byte("plaintext")), wantDecodeFail: true},
		{name: "structurally empty record", token: notARecord, wantStructural: true},
		{name: "truncated token", token: validToken[:len(validToken)/2], wantDecodeFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.token)
			if err == nil {
				t.Fatal("expected error")
			}
			var decodeErr ErrDecodeFailed
			var structErr ErrInvalidStructure
			switch {
			case tt.wantDecodeFail:
				if !errors.As(err, &decodeErr) {
					t.Errorf("want ErrDecodeFailed, got %T: %v", err, err)
				}
			case tt.wantStructural:
				if !errors.As(err, &structErr) {
					t.Errorf("want ErrInvalidStructure, got %T: %v", err, err)
				}
			}
		})
	}
}

func TestDecodeChecked(t *testing.T) {
	token, err := Encode(sampleRecord(t))
	if err != nil {
		t.Fatal(err)
	}

	if d := DecodeChecked(token); !d.Valid || d.Record == nil {
		t.Errorf("valid token reported invalid: %+v", d)
	}
	if d := DecodeChecked("!!!"); d.Valid || d.ErrorCode != CodeDecodeFailed {
		t.Errorf("garbage token: %+v", d)
	}
	structural := base64.RawURLEncoding.EncodeToString([]byte{0xa0}) // {}
	if d := DecodeChecked(structural); d.Valid || d.ErrorCode != CodeInvalidStructure {
		t.Errorf("structural failure: %+v", d)
	}
}

func TestEncodeRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*attestation.Record)
	}{
		{name: "unknown provider", mutate: func(r *attestation.Record) { r.Identity.Provider = "nope" }},
		{name: "empty identifier", mutate: func(r *attestation.Record) { r.Identity.Identifier = "" }},
		{name: "bad cryptographic hash", mutate: func(r *attestation.Record) { r.Hashes.Cryptographic = "xyz" }},
		{name: "bad pHash length", mutate: func(r *attestation.Record) { r.Hashes.PHash = "0101" }},
		{name: "missing key id", mutate: func(r *attestation.Record) { r.ServiceKeyID = "" }},
		{name: "malformed zone", mutate: func(r *attestation.Record) { r.Zone.Width = -4 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord(t)
			tt.mutate(rec)
			if _, err := Encode(rec); err == nil {
				t.Error("expected encode error")
			}
		})
	}
}

func TestEncodeUnsignedStableAcrossSignature(t *testing.T) {
	rec := sampleRecord(t)

	signed, err := EncodeUnsigned(rec)
	if err != nil {
		t.Fatal(err)
	}

	unsigned := *rec
	unsigned.Signature = nil
	plain, err := EncodeUnsigned(&unsigned)
	if err != nil {
		t.Fatal(err)
	}

	if string(signed) != string(plain) {
		t.Error("to-be-signed bytes must not depend on the signature field")
	}

	diag, err := cborDiagnostic(plain)
	if err != nil {
		t.Fatalf("diagnostic: %v", err)
	}
	if strings.Contains(diag, `"s"`) {
		t.Errorf("to-be-signed bytes leak the signature key: %s", diag)
	}
}

func TestTokenFromURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bare", input: "abc123", want: "abc123"},
		{name: "url", input: "https://seal.example.com/v/abc123", want: "abc123"},
		{name: "url with query", input: "https://seal.example.com/v/abc123?x=1", want: "abc123"},
		{name: "whitespace", input: "  abc123\n", want: "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenFromURL(tt.input); got != tt.want {
				t.Errorf("TokenFromURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
