package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
)

// fakeTransport is a LookupKey-only stub for resolver tests.
type fakeTransport struct {
	keys    map[core.Address][crypto.KeySize]byte
	err     error
	lookups int
}

func (f *fakeTransport) Start(ctx context.Context) error { return nil }
func (f *fakeTransport) Stop() error                     { return nil }
func (f *fakeTransport) IsConnected() bool               { return true }

func (f *fakeTransport) LookupKey(ctx context.Context, addr core.Address) (*[crypto.KeySize]byte, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	pub, ok := f.keys[addr.Normalize()]
	if !ok {
		return nil, nil
	}
	return &pub, nil
}

func (f *fakeTransport) RegisterKey(ctx context.Context, addr core.Address, pub [crypto.KeySize]byte) error {
	return nil
}

func (f *fakeTransport) FetchHistory(ctx context.Context, key core.AddressKey) ([]Metadata, error) {
	return nil, nil
}

func (f *fakeTransport) Submit(ctx context.Context, sender core.Address, recipients []core.Address, content []byte) (string, error) {
	return "", nil
}

var resolverAddr = core.Address("0x0a055ed28e6acc2f2377ed0ae3be06d24885d449")

func TestResolveFirstMatchWins(t *testing.T) {
	var first, second [crypto.KeySize]byte
	first[0] = 1
	second[0] = 2

	a := &fakeTransport{keys: map[core.Address][crypto.KeySize]byte{resolverAddr: first}}
	b := &fakeTransport{keys: map[core.Address][crypto.KeySize]byte{resolverAddr: second}}

	pub, from, err := NewKeyResolver(a, b).Resolve(context.Background(), resolverAddr)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if *pub != first {
		t.Error("Resolve() did not return the first transport's key")
	}
	if from != a {
		t.Error("Resolve() did not report the first transport")
	}
}

func TestResolveFallsThroughUnknown(t *testing.T) {
	var pub [crypto.KeySize]byte
	pub[0] = 7

	empty := &fakeTransport{}
	holder := &fakeTransport{keys: map[core.Address][crypto.KeySize]byte{resolverAddr: pub}}

	got, from, err := NewKeyResolver(empty, holder).Resolve(context.Background(), resolverAddr)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if *got != pub || from != holder {
		t.Error("Resolve() did not fall through to the second transport")
	}
}

func TestResolveUnknownAddress(t *testing.T) {
	_, _, err := NewKeyResolver(&fakeTransport{}).Resolve(context.Background(), resolverAddr)
	if !errors.Is(err, ErrUnknownAddress) {
		t.Errorf("Resolve() = %v, want ErrUnknownAddress", err)
	}
}

func TestResolveTransportErrorAborts(t *testing.T) {
	var pub [crypto.KeySize]byte
	failing := &fakeTransport{err: ErrTransport}
	holder := &fakeTransport{keys: map[core.Address][crypto.KeySize]byte{resolverAddr: pub}}

	_, _, err := NewKeyResolver(failing, holder).Resolve(context.Background(), resolverAddr)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Resolve() = %v, want ErrTransport (no fall-through past a failure)", err)
	}
	if holder.lookups != 0 {
		t.Error("Resolve() queried a later transport after a failure")
	}
}

func TestResolveCaches(t *testing.T) {
	var pub [crypto.KeySize]byte
	holder := &fakeTransport{keys: map[core.Address][crypto.KeySize]byte{resolverAddr: pub}}
	r := NewKeyResolver(holder)

	for i := 0; i < 3; i++ {
		if _, _, err := r.Resolve(context.Background(), resolverAddr); err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
	}
	if holder.lookups != 1 {
		t.Errorf("transport queried %d times, want 1 (cached)", holder.lookups)
	}

	r.Invalidate(resolverAddr)
	if _, _, err := r.Resolve(context.Background(), resolverAddr); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if holder.lookups != 2 {
		t.Errorf("transport queried %d times after Invalidate, want 2", holder.lookups)
	}
}
