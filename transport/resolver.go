package transport

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
)

const (
	// DefaultKeyCacheTTL bounds how long a resolved public key is
	// reused before the transports are asked again. Published keys
	// change rarely (only on key rotation).
	DefaultKeyCacheTTL = 5 * time.Minute

	keyCacheCleanup = 10 * time.Minute
)

// KeyResolver locates a peer's published messaging key across an
// explicit priority-ordered list of transports. The first transport in
// list order that knows the address wins; there is no merging across
// transports.
type KeyResolver struct {
	transports []Transport
	cache      *gocache.Cache
}

// NewKeyResolver creates a resolver over the given transports, queried
// in the order supplied. Resolved keys are cached for
// DefaultKeyCacheTTL.
func NewKeyResolver(transports ...Transport) *KeyResolver {
	return &KeyResolver{
		transports: transports,
		cache:      gocache.New(DefaultKeyCacheTTL, keyCacheCleanup),
	}
}

// Resolve returns the published public key for an address and the
// transport that knew it. Returns ErrUnknownAddress when no transport
// has a key for the address; transport failures abort the resolution
// rather than falling through, so a flaky first transport cannot cause
// a silently different answer.
func (r *KeyResolver) Resolve(ctx context.Context, addr core.Address) (*[crypto.KeySize]byte, Transport, error) {
	cacheKey := string(addr.Normalize())
	if cached, ok := r.cache.Get(cacheKey); ok {
		entry := cached.(resolvedKey)
		return entry.pub, entry.transport, nil
	}

	for _, t := range r.transports {
		pub, err := t.LookupKey(ctx, addr)
		if err != nil {
			return nil, nil, fmt.Errorf("key lookup for %s: %w", addr, err)
		}
		if pub != nil {
			r.cache.Set(cacheKey, resolvedKey{pub: pub, transport: t}, gocache.DefaultExpiration)
			return pub, t, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnknownAddress, addr)
}

// Invalidate drops any cached key for an address, forcing the next
// Resolve to query the transports again.
func (r *KeyResolver) Invalidate(addr core.Address) {
	r.cache.Delete(string(addr.Normalize()))
}

type resolvedKey struct {
	pub       *[crypto.KeySize]byte
	transport Transport
}
