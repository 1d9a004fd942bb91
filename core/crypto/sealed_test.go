package crypto

import (
	"errors"
	"testing"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/codec"
)

func TestSealOpenRoundTrip(t *testing.T) {
	alice := mustKeyPair(t)
	bob := mustKeyPair(t)

	env := codec.Envelope{Subject: "POST:hi", Body: `{"room":"Team"}`}
	recipients := map[core.Address][KeySize]byte{
		alice.Address(): alice.PublicKey,
		bob.Address():   bob.PublicKey,
	}

	content, err := Seal(env, recipients)
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	for name, kp := range map[string]*KeyPair{"alice": alice, "bob": bob} {
		got, err := Open(kp, kp.Address(), content)
		if err != nil {
			t.Fatalf("Open() as %s error: %v", name, err)
		}
		if *got != env {
			t.Errorf("Open() as %s = %+v, want %+v", name, got, env)
		}
	}
}

func TestOpenNotARecipient(t *testing.T) {
	alice := mustKeyPair(t)
	eve := mustKeyPair(t)

	content, err := Seal(codec.Envelope{Subject: "POST:hi"}, map[core.Address][KeySize]byte{
		alice.Address(): alice.PublicKey,
	})
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	if _, err := Open(eve, eve.Address(), content); !errors.Is(err, ErrNoKeyMaterial) {
		t.Errorf("Open() by non-recipient = %v, want ErrNoKeyMaterial", err)
	}
}

func TestOpenWrongKey(t *testing.T) {
	alice := mustKeyPair(t)
	eve := mustKeyPair(t)

	content, err := Seal(codec.Envelope{Subject: "POST:hi"}, map[core.Address][KeySize]byte{
		alice.Address(): alice.PublicKey,
	})
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	// Eve presents Alice's address but holds the wrong private key.
	if _, err := Open(eve, alice.Address(), content); !errors.Is(err, ErrNoKeyMaterial) {
		t.Errorf("Open() with wrong key = %v, want ErrNoKeyMaterial", err)
	}
}

func TestOpenGarbageContent(t *testing.T) {
	alice := mustKeyPair(t)

	if _, err := Open(alice, alice.Address(), []byte("not sealed content")); !errors.Is(err, ErrNoKeyMaterial) {
		t.Errorf("Open() on garbage = %v, want ErrNoKeyMaterial", err)
	}
}

func TestOpenCaseInsensitiveAddress(t *testing.T) {
	alice := mustKeyPair(t)

	content, err := Seal(codec.Envelope{Subject: "POST:hi"}, map[core.Address][KeySize]byte{
		alice.Address(): alice.PublicKey,
	})
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	upper := core.Address("0X" + string(alice.Address())[2:])
	if _, err := Open(alice, upper, content); err != nil {
		t.Errorf("Open() with upper-cased address error: %v", err)
	}
}

func TestVerifyContent(t *testing.T) {
	content := []byte("sealed blob")
	sum := Checksum(content)

	if err := VerifyContent(content, sum); err != nil {
		t.Errorf("VerifyContent() on intact content error: %v", err)
	}

	tampered := append([]byte(nil), content...)
	tampered[0] ^= 0xFF
	if err := VerifyContent(tampered, sum); !errors.Is(err, ErrCorruptedContent) {
		t.Errorf("VerifyContent() on tampered content = %v, want ErrCorruptedContent", err)
	}

	if err := VerifyContent(nil, sum); !errors.Is(err, ErrCorruptedContent) {
		t.Errorf("VerifyContent() on empty content = %v, want ErrCorruptedContent", err)
	}
}

func TestSealNoRecipients(t *testing.T) {
	if _, err := Seal(codec.Envelope{}, nil); err == nil {
		t.Error("Seal() with no recipients: want error")
	}
}

func mustKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}
	return kp
}
