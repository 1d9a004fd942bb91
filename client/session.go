package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
)

// Session binds an onboarded account to its wallet group and key
// material. A session must exist before the account can publish.
type Session struct {
	Wallet  string
	Address core.Address
	Keys    *crypto.KeyPair
}

// Onboard creates a fresh messaging key pair, derives its address,
// publishes the public key through the transport, and binds a session
// for the new account. The account is also added to the persistent
// account cache when one is configured.
func (c *Client) Onboard(ctx context.Context, wallet string) (*Session, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("onboard: %w", err)
	}
	return c.Attach(ctx, wallet, kp)
}

// Attach binds a session for an account with existing key material,
// for example a messaging key derived from a wallet's signing key via
// crypto.KeyPairFromEd25519. The public key is (re-)published through
// the transport.
func (c *Client) Attach(ctx context.Context, wallet string, kp *crypto.KeyPair) (*Session, error) {
	addr := kp.Address()

	if err := c.cfg.Transport.RegisterKey(ctx, addr, kp.PublicKey); err != nil {
		return nil, fmt.Errorf("publish key for %s: %w", addr, err)
	}
	c.cfg.Keyring.Put(addr, kp)

	sess := &Session{Wallet: wallet, Address: addr, Keys: kp}
	c.sessions.put(sess)

	if c.cfg.Accounts != nil {
		rec := AccountRecord{Wallet: wallet, Address: addr, OnboardedAt: c.cfg.Clock.Now()}
		if err := c.cfg.Accounts.Add(rec); err != nil {
			return nil, fmt.Errorf("cache account %s: %w", addr, err)
		}
	}

	c.log.Info("account onboarded", "wallet", wallet, "address", addr.String())
	return sess, nil
}

// Session returns the bound session for an address, if any.
func (c *Client) Session(addr core.Address) (*Session, bool) {
	return c.sessions.get(addr)
}

// sessionSet is the client's bound-session table. Safe for concurrent
// use.
type sessionSet struct {
	mu       sync.RWMutex
	sessions map[core.Address]*Session
}

func newSessionSet() *sessionSet {
	return &sessionSet{sessions: make(map[core.Address]*Session)}
}

func (s *sessionSet) get(addr core.Address) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[addr.Normalize()]
	return sess, ok
}

func (s *sessionSet) put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Address.Normalize()] = sess
}
