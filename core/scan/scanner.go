// Package scan implements the history scan: one full pass over an
// address's message history that verifies, decrypts, and decodes each
// message and yields the recognized commands in arrival order.
//
// A scan is restartable and holds no state between calls — rooms and
// posts are never persisted, only re-derived from a fresh scan.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/codec"
	"github.com/roomwire/roomwire-go/core/crypto"
	"github.com/roomwire/roomwire-go/core/keyring"
	"github.com/roomwire/roomwire-go/transport"
)

// Config configures a Scanner.
type Config struct {
	// Transport supplies the message history.
	Transport transport.Transport

	// Keyring holds the local accounts' decryption keys. An address
	// with no key material yields an empty scan, not an error.
	Keyring keyring.Keyring

	// Logger for scan events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Scanner drives history scans over one transport.
type Scanner struct {
	cfg Config
	log *slog.Logger
}

// New creates a scanner with the given configuration.
func New(cfg Config) *Scanner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		cfg: cfg,
		log: logger.WithGroup("scan"),
	}
}

// Scan starts one pass over the history bound to an address. The
// returned iterator is lazy: history is fetched on the first Next call
// and messages are decoded one at a time. Each Scan call re-reads
// history from the transport; nothing is cached between calls.
func (s *Scanner) Scan(ctx context.Context, address core.Address) *Iterator {
	return &Iterator{
		scanner: s,
		ctx:     ctx,
		address: address,
	}
}

// Iterator walks one scan's command sequence, bufio.Scanner style:
//
//	it := scanner.Scan(ctx, addr)
//	for it.Next() {
//		cmd := it.Command()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
//
// A corrupted message or a transport failure stops the iteration with
// an error; unreadable or unrecognized messages are skipped.
type Iterator struct {
	scanner *Scanner
	ctx     context.Context
	address core.Address

	fetched bool
	msgs    []transport.Metadata
	idx     int

	cmd  codec.Command
	meta transport.Metadata
	err  error
}

// Next advances to the next recognized command. It returns false when
// the history is exhausted or the scan failed; check Err to tell the
// two apart.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.fetched {
		if err := it.fetch(); err != nil {
			it.err = err
			return false
		}
	}

	log := it.scanner.log
	kp, hasKey := it.scanner.cfg.Keyring.Get(it.address)
	if !hasKey {
		log.Debug("no key material for account, skipping unread messages",
			"address", it.address.String())
	}

	for it.idx < len(it.msgs) {
		if err := it.ctx.Err(); err != nil {
			it.err = err
			return false
		}

		meta := it.msgs[it.idx]
		it.idx++

		// Integrity failure is fatal for the whole scan: a corrupted
		// message may hide an arbitrary command, and a partial view
		// must not be presented as complete.
		if err := crypto.VerifyContent(meta.Content, meta.Checksum); err != nil {
			it.err = fmt.Errorf("message %s: %w", meta.ID, err)
			return false
		}

		if !hasKey {
			continue
		}

		env, err := crypto.Open(kp, it.address, meta.Content)
		if err != nil {
			if errors.Is(err, crypto.ErrNoKeyMaterial) {
				log.Debug("message unreadable, skipping",
					"message", meta.ID, "address", it.address.String())
				continue
			}
			it.err = fmt.Errorf("message %s: %w", meta.ID, err)
			return false
		}

		cmd, err := codec.Decode(*env)
		if err != nil {
			// Unrelated traffic in the same history; not a command.
			continue
		}

		it.cmd = cmd
		it.meta = meta
		return true
	}
	return false
}

// Command returns the command produced by the last successful Next.
func (it *Iterator) Command() codec.Command { return it.cmd }

// Meta returns the transport metadata for the last command, including
// the sender address.
func (it *Iterator) Meta() transport.Metadata { return it.meta }

// Err returns the error that stopped the scan, if any.
func (it *Iterator) Err() error { return it.err }

func (it *Iterator) fetch() error {
	key, err := it.address.Key()
	if err != nil {
		return fmt.Errorf("resolve address key: %w", err)
	}

	msgs, err := it.scanner.cfg.Transport.FetchHistory(it.ctx, key)
	if err != nil {
		return fmt.Errorf("fetch history for %s: %w", it.address, err)
	}

	it.fetched = true
	it.msgs = msgs
	it.scanner.log.Debug("fetched history",
		"address", it.address.String(), "messages", len(msgs))
	return nil
}
