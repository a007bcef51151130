// Package provider holds the closed registry of OAuth identity providers a
// seal can attest. The compact id is used only inside the wire encoding.
package provider

import (
	"fmt"

	"github.com/ory/go-convenience/stringslice"
)

type Provider struct {
	ID          string
	CompactID   string
	DisplayName string
}

// The registry is static and closed. Adding a provider is a wire-format
// change: decoders built before the addition cannot resolve the compact id.
var registered = []Provider{
	{ID: "google", CompactID: "g", DisplayName: "Google"},
	{ID: "github", CompactID: "h", DisplayName: "GitHub"},
	{ID: "microsoft", CompactID: "m", DisplayName: "Microsoft"},
	{ID: "apple", CompactID: "a", DisplayName: "Apple"},
	{ID: "facebook", CompactID: "f", DisplayName: "Facebook"},
}

type ErrUnknownProvider struct {
	ID string
}

func (e ErrUnknownProvider) Error() string {
	return fmt.Sprintf("unknown provider: %q", e.ID)
}

func ByID(id string) (Provider, error) {
	for _, p := range registered {
		if p.ID == id {
			return p, nil
		}
	}
	return Provider{}, ErrUnknownProvider{ID: id}
}

func ByCompactID(compactID string) (Provider, error) {
	for _, p := range registered {
		if p.CompactID == compactID {
			return p, nil
		}
	}
	return Provider{}, ErrUnknownProvider{ID: compactID}
}

func IsRegistered(id string) bool {
	return stringslice.Has(ids(), id)
}

// All returns a copy so callers cannot mutate the registry.
func All() []Provider {
	out := make([]Provider, len(registered))
	copy(out, registered)
	return out
}

func ids() []string {
	out := make([]string, 0, len(registered))
	for _, p := range registered {
		out = append(out, p.ID)
	}
	return out
}
