// Package keyring holds the service signing keys. Keys are ECDSA P-256,
// addressed by opaque key ids; the signer signs with the active key and the
// verification endpoint resolves any key id it has ever issued.
package keyring

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type Keyring struct {
	mu     sync.RWMutex
	keys   map[string]*ecdsa.PrivateKey
	active string
}

func New() *Keyring {
	return &Keyring{keys: make(map[string]*ecdsa.PrivateKey)}
}

// Generate creates a new P-256 key, stores it and makes it the active
// signing key.
func (k *Keyring) Generate() (string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	id := uuid.New().String()

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[id] = key
	k.active = id
	return id, nil
}

// Add registers an externally loaded key under a caller-chosen id.
func (k *Keyring) Add(id string, key *ecdsa.PrivateKey) error {
	if id == "" || key == nil {
		return fmt.Errorf("key id and key are required")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.keys[id]; exists {
		return fmt.Errorf("key %q already registered", id)
	}
	k.keys[id] = key
	if k.active == "" {
		k.active = id
	}
	return nil
}

// Active returns the current signing key and its id.
func (k *Keyring) Active() (string, *ecdsa.PrivateKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.active == "" {
		return "", nil, fmt.Errorf("keyring is empty")
	}
	return k.active, k.keys[k.active], nil
}

type ErrKeyNotFound struct {
	ID string
}

func (e ErrKeyNotFound) Error() string {
	return fmt.Sprintf("key not found: %q", e.ID)
}

// Public resolves a key id to its public key.
func (k *Keyring) Public(id string) (*ecdsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[id]
	if !ok {
		return nil, ErrKeyNotFound{ID: id}
	}
	return &key.PublicKey, nil
}
