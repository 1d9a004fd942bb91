// Package memory provides an in-memory transport implementation. It is
// the reference substrate for tests and local development: message
// histories live in process memory and are lost on exit.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
	"github.com/roomwire/roomwire-go/transport"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

// Transport implements transport.Transport in process memory. Safe for
// concurrent use.
type Transport struct {
	mu        sync.RWMutex
	histories map[core.AddressKey][]transport.Metadata
	keys      map[core.Address][crypto.KeySize]byte
}

// New creates an empty in-memory transport.
func New() *Transport {
	return &Transport{
		histories: make(map[core.AddressKey][]transport.Metadata),
		keys:      make(map[core.Address][crypto.KeySize]byte),
	}
}

// Start is a no-op; the transport is always ready.
func (t *Transport) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (t *Transport) Stop() error { return nil }

// IsConnected always returns true.
func (t *Transport) IsConnected() bool { return true }

// RegisterKey publishes an address's messaging public key.
func (t *Transport) RegisterKey(ctx context.Context, addr core.Address, pub [crypto.KeySize]byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys[addr.Normalize()] = pub
	return nil
}

// LookupKey returns the published key for an address, or nil if the
// address has never registered one here.
func (t *Transport) LookupKey(ctx context.Context, addr core.Address) (*[crypto.KeySize]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pub, ok := t.keys[addr.Normalize()]
	if !ok {
		return nil, nil
	}
	return &pub, nil
}

// Submit appends the sealed content to every recipient's history in
// arrival order. The sender must have registered a key; an unknown
// sender is rejected with transport.ErrAuthentication. All recipient
// copies share one message ID.
func (t *Transport) Submit(ctx context.Context, sender core.Address, recipients []core.Address, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.keys[sender.Normalize()]; !ok {
		return "", fmt.Errorf("%w: sender %s has no registered key", transport.ErrAuthentication, sender)
	}

	id := uuid.NewString()
	checksum := crypto.Checksum(content)

	seen := make(map[core.Address]bool, len(recipients))
	for _, r := range recipients {
		addr := r.Normalize()
		if seen[addr] {
			continue
		}
		seen[addr] = true

		key, err := addr.Key()
		if err != nil {
			return "", fmt.Errorf("%w: %v", transport.ErrTransport, err)
		}

		stored := make([]byte, len(content))
		copy(stored, content)
		t.histories[key] = append(t.histories[key], transport.Metadata{
			ID:        id,
			Sender:    sender.Normalize(),
			Recipient: addr,
			Content:   stored,
			Checksum:  checksum,
		})
	}
	return id, nil
}

// FetchHistory returns a copy of the history bound to an address key,
// oldest first.
func (t *Transport) FetchHistory(ctx context.Context, key core.AddressKey) ([]transport.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	history := t.histories[key]
	out := make([]transport.Metadata, len(history))
	copy(out, history)
	return out, nil
}
