// Package keyring stores the messaging key pairs held locally for
// onboarded accounts. An account with no entry here cannot read its
// messages; scans simply skip them until a key is generated.
package keyring

import (
	"sync"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
)

// Keyring is the interface for key material storage backends.
type Keyring interface {
	// Get returns the key pair for an address, if one is held.
	Get(addr core.Address) (*crypto.KeyPair, bool)

	// Put stores the key pair for an address, replacing any previous one.
	Put(addr core.Address, kp *crypto.KeyPair)

	// Remove deletes the key pair for an address.
	Remove(addr core.Address)

	// Addresses returns all addresses with stored key material.
	Addresses() []core.Address
}

// Compile-time interface check.
var _ Keyring = (*MemoryKeyring)(nil)

// MemoryKeyring is an in-memory Keyring implementation. Safe for
// concurrent use.
type MemoryKeyring struct {
	mu   sync.RWMutex
	keys map[core.Address]*crypto.KeyPair
}

// NewMemoryKeyring creates an empty in-memory keyring.
func NewMemoryKeyring() *MemoryKeyring {
	return &MemoryKeyring{
		keys: make(map[core.Address]*crypto.KeyPair),
	}
}

// Get returns the key pair for an address. Lookup is case-insensitive.
func (k *MemoryKeyring) Get(addr core.Address) (*crypto.KeyPair, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	kp, ok := k.keys[addr.Normalize()]
	return kp, ok
}

// Put stores the key pair for an address.
func (k *MemoryKeyring) Put(addr core.Address, kp *crypto.KeyPair) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[addr.Normalize()] = kp
}

// Remove deletes the key pair for an address.
func (k *MemoryKeyring) Remove(addr core.Address) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, addr.Normalize())
}

// Addresses returns all addresses with stored key material.
func (k *MemoryKeyring) Addresses() []core.Address {
	k.mu.RLock()
	defer k.mu.RUnlock()
	addrs := make([]core.Address, 0, len(k.keys))
	for addr := range k.keys {
		addrs = append(addrs, addr)
	}
	return addrs
}
