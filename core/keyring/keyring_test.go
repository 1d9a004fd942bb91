package keyring

import (
	"testing"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
)

func TestMemoryKeyring(t *testing.T) {
	kr := NewMemoryKeyring()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}
	addr := kp.Address()

	if _, ok := kr.Get(addr); ok {
		t.Error("Get() on empty keyring returned a key")
	}

	kr.Put(addr, kp)
	got, ok := kr.Get(addr)
	if !ok || got != kp {
		t.Errorf("Get() = (%v, %v), want stored pair", got, ok)
	}

	// Lookup ignores address casing.
	upper := core.Address("0X" + string(addr)[2:])
	if _, ok := kr.Get(upper); !ok {
		t.Error("Get() with upper-cased address missed stored key")
	}

	if addrs := kr.Addresses(); len(addrs) != 1 || !addrs[0].Equal(addr) {
		t.Errorf("Addresses() = %v, want [%s]", addrs, addr)
	}

	kr.Remove(addr)
	if _, ok := kr.Get(addr); ok {
		t.Error("Get() after Remove() returned a key")
	}
}
