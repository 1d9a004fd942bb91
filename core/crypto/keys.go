// Package crypto provides the key material and sealed-content cipher
// used by roomwire messages: X25519 key pairs, address derivation, and
// the seal/open scheme that encrypts one envelope for a set of
// recipient addresses.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"

	"github.com/roomwire/roomwire-go/core"
)

// KeySize is the size of X25519 public and private keys.
const KeySize = 32

var (
	ErrInvalidPubKeySize  = errors.New("invalid public key size: expected 32 bytes")
	ErrInvalidPrivKeySize = errors.New("invalid private key size: expected 64 bytes")
)

// KeyPair holds an X25519 key pair bound to one account address.
type KeyPair struct {
	PublicKey  [KeySize]byte
	PrivateKey [KeySize]byte
}

// GenerateKeyPair generates a new X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	kp := &KeyPair{}
	if _, err := rand.Read(kp.PrivateKey[:]); err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	clampPrivateKey(&kp.PrivateKey)

	pub, err := curve25519.X25519(kp.PrivateKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// KeyPairFromEd25519 derives an X25519 key pair from an Ed25519 signing
// key, so a wallet's existing signing identity can double as its
// messaging key. The conversion follows RFC 8032: SHA-512 the seed,
// then clamp.
func KeyPairFromEd25519(edPrivKey ed25519.PrivateKey) (*KeyPair, error) {
	if len(edPrivKey) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivKeySize
	}

	h := sha512.Sum512(edPrivKey.Seed())

	kp := &KeyPair{}
	copy(kp.PrivateKey[:], h[:KeySize])
	clampPrivateKey(&kp.PrivateKey)

	pub, err := curve25519.X25519(kp.PrivateKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// Ed25519PubKeyToX25519 converts an Ed25519 public key to its X25519
// (Curve25519) equivalent. Used to address messages to a peer whose
// published identity is an Ed25519 key.
func Ed25519PubKeyToX25519(edPubKey []byte) ([KeySize]byte, error) {
	var out [KeySize]byte
	if len(edPubKey) != ed25519.PublicKeySize {
		return out, ErrInvalidPubKeySize
	}
	point, err := new(edwards25519.Point).SetBytes(edPubKey)
	if err != nil {
		return out, fmt.Errorf("invalid Ed25519 public key: %w", err)
	}
	copy(out[:], point.BytesMontgomery())
	return out, nil
}

// Address derives the account address bound to this key pair: the
// trailing 20 bytes of SHA-256 over the public key, hex-encoded with a
// "0x" prefix.
func (kp *KeyPair) Address() core.Address {
	return AddressFromPublicKey(kp.PublicKey)
}

// AddressFromPublicKey derives the account address for a public key.
func AddressFromPublicKey(pub [KeySize]byte) core.Address {
	sum := sha256.Sum256(pub[:])
	return core.Address("0x" + hex.EncodeToString(sum[len(sum)-core.AddressHexLen/2:]))
}

// clampPrivateKey applies the standard Curve25519 clamping: clear the
// lowest 3 bits, clear bit 255, set bit 254.
func clampPrivateKey(key *[KeySize]byte) {
	key[0] &= 248
	key[31] &= 127
	key[31] |= 64
}
