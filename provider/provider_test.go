package provider

import (
	"errors"
	"testing"
)

func TestByID(t *testing.T) {
	tests := []struct {
		name          string
		id            string
		wantCompactID string
		wantErr       bool
	}{
		{
			name:          "google",
			id:            "google",
			wantCompactID: "g",
		},
		{
			name:          "github",
			id:            "github",
			wantCompactID: "h",
		},
		{
			name:    "unknown provider",
			id:      "not-a-real-provider",
			wantErr: true,
		},
		{
			name:    "empty id",
			id:      "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ByID(tt.id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got provider %+v", p)
				}
				var unknownErr ErrUnknownProvider
				if !errors.As(err, &unknownErr) {
					t.Errorf("expected ErrUnknownProvider, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.CompactID != tt.wantCompactID {
				t.Errorf("CompactID = %q, want %q", p.CompactID, tt.wantCompactID)
			}
		})
	}
}

func TestCompactIDRoundTrip(t *testing.T) {
	for _, p := range All() {
		got, err := ByCompactID(p.CompactID)
		if err != nil {
			t.Fatalf("ByCompactID(%q): %v", p.CompactID, err)
		}
		if got.ID != p.ID {
			t.Errorf("ByCompactID(%q).ID = %q, want %q", p.CompactID, got.ID, p.ID)
		}
	}
}

func TestCompactIDsUnique(t *testing.T) {
	seen := map[string]string{}
	for _, p := range All() {
		if prev, ok := seen[p.CompactID]; ok {
			t.Fatalf("compact id %q shared by %q and %q", p.CompactID, prev, p.ID)
		}
		seen[p.CompactID] = p.ID
	}
}

func TestIsRegistered(t *testing.T) {
	if !IsRegistered("google") {
		t.Error("google should be registered")
	}
	if IsRegistered("g") {
		t.Error("compact ids are not provider ids")
	}
}
