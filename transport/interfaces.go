// Package transport defines the interface to the encrypted,
// address-addressed message substrate roomwire runs over, and the
// resolver that locates a peer's published key across multiple
// transports.
//
// A transport stores an ordered message history per address key and a
// registry of published public keys per address. It never sees
// plaintext: submitted content is already sealed by the caller.
package transport

import (
	"context"
	"crypto/sha256"
	"errors"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
)

var (
	// ErrTransport reports a failed transport operation (network,
	// broker, or storage). Never retried automatically.
	ErrTransport = errors.New("transport failure")

	// ErrAuthentication reports that the transport rejected the
	// sender's credentials on submit.
	ErrAuthentication = errors.New("transport rejected sender authentication")

	// ErrUnknownAddress reports that no transport knows a published
	// key for an address.
	ErrUnknownAddress = errors.New("no published key for address")
)

// Metadata describes one message in an address's history as recorded
// by the transport. Content is the opaque sealed blob; Checksum is the
// transport's integrity record over it.
type Metadata struct {
	ID        string
	Sender    core.Address
	Recipient core.Address
	Content   []byte
	Checksum  [sha256.Size]byte
}

// Transport is the base interface for all transport implementations.
type Transport interface {
	// Start begins the transport's connection handling. The provided
	// context controls the transport's lifetime.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the transport.
	Stop() error
	// IsConnected returns true if the transport is currently usable.
	IsConnected() bool

	// LookupKey returns the published messaging public key for an
	// address, or nil if this transport has no key for it. A nil key
	// with a nil error is the normal "not here" answer; errors are
	// reserved for transport failures.
	LookupKey(ctx context.Context, addr core.Address) (*[crypto.KeySize]byte, error)

	// RegisterKey publishes an address's messaging public key so other
	// parties can seal messages to it.
	RegisterKey(ctx context.Context, addr core.Address, pub [crypto.KeySize]byte) error

	// FetchHistory returns the full ordered message history bound to an
	// address key, oldest first in the transport's arrival order.
	FetchHistory(ctx context.Context, key core.AddressKey) ([]Metadata, error)

	// Submit delivers one sealed content blob to every recipient's
	// history, authenticated as sender. Returns the transport-assigned
	// message ID.
	Submit(ctx context.Context, sender core.Address, recipients []core.Address, content []byte) (string, error)
}
