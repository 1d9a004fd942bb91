// Package client provides the user-facing roomwire client: account
// onboarding and the room/post publish operations. Reads (room and
// post listings) are re-derived from history scans on every call; the
// client holds no room state.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/clock"
	"github.com/roomwire/roomwire-go/core/codec"
	"github.com/roomwire/roomwire-go/core/crypto"
	"github.com/roomwire/roomwire-go/core/keyring"
	"github.com/roomwire/roomwire-go/core/room"
	"github.com/roomwire/roomwire-go/core/scan"
	"github.com/roomwire/roomwire-go/transport"
)

var (
	// ErrNotOnboarded reports a publish attempt by an account with no
	// bound session. Checked before any transport call.
	ErrNotOnboarded = errors.New("account is not onboarded")

	// ErrRoomNotFound reports that no CreateRoom command exists for the
	// (creator, roomName) pair a post was addressed to.
	ErrRoomNotFound = errors.New("room not found")
)

// Config configures a Client.
type Config struct {
	// Transport delivers and stores messages.
	Transport transport.Transport

	// Resolver locates peers' published keys. If nil, a resolver over
	// just Transport is used.
	Resolver *transport.KeyResolver

	// Keyring holds onboarded accounts' key material. If nil, an
	// in-memory keyring is used.
	Keyring keyring.Keyring

	// Accounts optionally persists the onboarded account list across
	// restarts. Key material is NOT persisted there, only the list.
	Accounts *AccountStore

	// Clock stamps account records on onboarding. Falls back to the
	// system clock if nil.
	Clock clock.Clock

	// Logger for client events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Client publishes rooms and posts and derives room/post listings.
type Client struct {
	cfg      Config
	log      *slog.Logger
	resolver *transport.KeyResolver
	recon    *room.Reconstructor
	sessions *sessionSet
}

// New creates a client with the given configuration.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Keyring == nil {
		cfg.Keyring = keyring.NewMemoryKeyring()
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = transport.NewKeyResolver(cfg.Transport)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	scanner := scan.New(scan.Config{
		Transport: cfg.Transport,
		Keyring:   cfg.Keyring,
		Logger:    logger,
	})
	return &Client{
		cfg:      cfg,
		log:      logger.WithGroup("client"),
		resolver: resolver,
		recon:    room.NewReconstructor(scanner),
		sessions: newSessionSet(),
	}
}

// CreateRoom declares a room and submits it to every recipient,
// including the creator. The creator is appended to the recipient set
// if absent. Returns the transport-assigned message ID.
func (c *Client) CreateRoom(ctx context.Context, creator core.Address, roomName string, recipients []core.Address) (string, error) {
	if _, ok := c.sessions.get(creator); !ok {
		return "", fmt.Errorf("%w: %s", ErrNotOnboarded, creator)
	}

	full := appendCreator(recipients, creator)
	env := codec.EncodeCreateRoom(roomName, creator, recipients)

	id, err := c.seal(ctx, creator, full, env)
	if err != nil {
		return "", err
	}
	c.log.Info("room created",
		"room", roomName, "creator", creator.String(), "recipients", len(full))
	return id, nil
}

// CreatePost posts a message to a room the creator previously declared.
// The room's current recipient set is resolved by a fresh scan of the
// creator's own history; ErrRoomNotFound if no matching CreateRoom is
// found. Returns the transport-assigned message ID. There is no retry:
// a failed submit surfaces to the caller, and an explicit re-submit
// shows up as a duplicate post.
func (c *Client) CreatePost(ctx context.Context, creator core.Address, roomName, postSubject, postBody string) (string, error) {
	if _, ok := c.sessions.get(creator); !ok {
		return "", fmt.Errorf("%w: %s", ErrNotOnboarded, creator)
	}

	rm, err := c.RoomDetails(ctx, creator, roomName)
	if err != nil {
		return "", err
	}

	env := codec.EncodeCreatePost(roomName, postSubject, postBody, creator)
	id, err := c.seal(ctx, creator, rm.Recipients, env)
	if err != nil {
		return "", err
	}
	c.log.Info("post created",
		"room", roomName, "subject", postSubject, "recipients", len(rm.Recipients))
	return id, nil
}

// RoomDetails returns the room record for a room the account created,
// as reconstructed from the account's own history. ErrRoomNotFound if
// the account never declared a room by that name.
func (c *Client) RoomDetails(ctx context.Context, account core.Address, roomName string) (*room.Room, error) {
	rooms, err := c.recon.Rooms(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("resolve room %q: %w", roomName, err)
	}
	for i := range rooms {
		if rooms[i].Name == roomName && rooms[i].Creator.Equal(account) {
			return &rooms[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q for creator %s", ErrRoomNotFound, roomName, account)
}

// Rooms derives the full room set visible to an address.
func (c *Client) Rooms(ctx context.Context, address core.Address) ([]room.Room, error) {
	return c.recon.Rooms(ctx, address)
}

// Posts derives the ordered post feed for one room as visible to an
// address.
func (c *Client) Posts(ctx context.Context, address core.Address, roomName string) ([]room.Post, error) {
	return c.recon.Posts(ctx, address, roomName)
}

// seal encrypts the envelope for the recipient set and submits it.
func (c *Client) seal(ctx context.Context, sender core.Address, recipients []core.Address, env codec.Envelope) (string, error) {
	keys := make(map[core.Address][crypto.KeySize]byte, len(recipients))
	for _, addr := range recipients {
		pub, _, err := c.resolver.Resolve(ctx, addr)
		if err != nil {
			return "", fmt.Errorf("recipient %s: %w", addr, err)
		}
		keys[addr] = *pub
	}

	content, err := crypto.Seal(env, keys)
	if err != nil {
		return "", fmt.Errorf("seal envelope: %w", err)
	}

	id, err := c.cfg.Transport.Submit(ctx, sender, recipients, content)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	return id, nil
}

func appendCreator(recipients []core.Address, creator core.Address) []core.Address {
	for _, r := range recipients {
		if r.Equal(creator) {
			return recipients
		}
	}
	full := make([]core.Address, 0, len(recipients)+1)
	full = append(full, recipients...)
	return append(full, creator)
}
