package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/codec"
)

const nonceSize = 24

var (
	// ErrCorruptedContent reports that a message's sealed content does
	// not match its recorded checksum. A scan encountering this aborts:
	// a corrupted message may hide an arbitrary command.
	ErrCorruptedContent = errors.New("sealed content is corrupted")

	// ErrNoKeyMaterial reports that the account holds no key able to
	// open a message: it is not in the recipient key table, or its key
	// fails to unwrap the content secret. Scans skip such messages.
	ErrNoKeyMaterial = errors.New("no usable key material for message")
)

// Sealed content wire layout. The envelope is encrypted once with a
// random secret; the secret is wrapped separately for each recipient
// address with an ephemeral sender key, so any single recipient key
// opens the whole message.
type sealedContent struct {
	EphemeralKey []byte                `json:"ephemeral_key"`
	Nonce        []byte                `json:"nonce"`
	Sealed       []byte                `json:"sealed"`
	Wraps        map[string]wrappedKey `json:"wraps"` // keyed by normalized address
}

type wrappedKey struct {
	Nonce  []byte `json:"nonce"`
	Sealed []byte `json:"sealed"`
}

// Seal encrypts an envelope for a set of recipients, identified by
// address and public key. Returns the opaque content blob submitted to
// the transport.
func Seal(env codec.Envelope, recipients map[core.Address][KeySize]byte) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, errors.New("no recipients to seal for")
	}

	plaintext, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize envelope: %w", err)
	}

	var secret [KeySize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, fmt.Errorf("failed to generate content secret: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nil, plaintext, &nonce, &secret)

	ephPub, ephPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	wraps := make(map[string]wrappedKey, len(recipients))
	for addr, pub := range recipients {
		var wrapNonce [nonceSize]byte
		if _, err := rand.Read(wrapNonce[:]); err != nil {
			return nil, fmt.Errorf("failed to generate wrap nonce: %w", err)
		}
		recipientPub := pub
		wrapped := box.Seal(nil, secret[:], &wrapNonce, &recipientPub, ephPriv)
		wraps[string(addr.Normalize())] = wrappedKey{
			Nonce:  wrapNonce[:],
			Sealed: wrapped,
		}
	}

	content, err := json.Marshal(sealedContent{
		EphemeralKey: ephPub[:],
		Nonce:        nonce[:],
		Sealed:       sealed,
		Wraps:        wraps,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sealed content: %w", err)
	}
	return content, nil
}

// Open decrypts a sealed content blob with the key pair bound to the
// given address. Returns ErrNoKeyMaterial when the address has no wrap
// entry or the key fails to unwrap the content secret — the caller
// skips the message rather than failing the scan.
func Open(kp *KeyPair, address core.Address, content []byte) (*codec.Envelope, error) {
	var sc sealedContent
	if err := json.Unmarshal(content, &sc); err != nil {
		return nil, fmt.Errorf("%w: unreadable content", ErrNoKeyMaterial)
	}
	if len(sc.EphemeralKey) != KeySize || len(sc.Nonce) != nonceSize {
		return nil, fmt.Errorf("%w: unreadable content", ErrNoKeyMaterial)
	}

	wrap, ok := sc.Wraps[string(address.Normalize())]
	if !ok || len(wrap.Nonce) != nonceSize {
		return nil, ErrNoKeyMaterial
	}

	var ephPub [KeySize]byte
	copy(ephPub[:], sc.EphemeralKey)
	var wrapNonce [nonceSize]byte
	copy(wrapNonce[:], wrap.Nonce)

	secretBytes, ok := box.Open(nil, wrap.Sealed, &wrapNonce, &ephPub, &kp.PrivateKey)
	if !ok || len(secretBytes) != KeySize {
		return nil, ErrNoKeyMaterial
	}
	var secret [KeySize]byte
	copy(secret[:], secretBytes)

	var nonce [nonceSize]byte
	copy(nonce[:], sc.Nonce)
	plaintext, ok := secretbox.Open(nil, sc.Sealed, &nonce, &secret)
	if !ok {
		return nil, ErrNoKeyMaterial
	}

	var env codec.Envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope", ErrNoKeyMaterial)
	}
	return &env, nil
}

// Checksum computes the integrity checksum recorded alongside a sealed
// content blob.
func Checksum(content []byte) [sha256.Size]byte {
	return sha256.Sum256(content)
}

// VerifyContent checks a content blob against its recorded checksum.
// Returns ErrCorruptedContent on mismatch or missing content.
func VerifyContent(content []byte, checksum [sha256.Size]byte) error {
	if len(content) == 0 {
		return fmt.Errorf("%w: empty content", ErrCorruptedContent)
	}
	if sha256.Sum256(content) != checksum {
		return ErrCorruptedContent
	}
	return nil
}
