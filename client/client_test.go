package client

import (
	"context"
	"errors"
	"testing"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/keyring"
	"github.com/roomwire/roomwire-go/transport"
	"github.com/roomwire/roomwire-go/transport/memory"
)

// newTestClient returns a client over a shared memory transport, plus
// three onboarded sessions.
func newTestClient(t *testing.T) (*Client, *Session, *Session, *Session) {
	t.Helper()
	c := New(Config{
		Transport: memory.New(),
		Keyring:   keyring.NewMemoryKeyring(),
	})
	ctx := context.Background()

	alice, err := c.Onboard(ctx, "metamask")
	if err != nil {
		t.Fatalf("Onboard(alice) error: %v", err)
	}
	bob, err := c.Onboard(ctx, "metamask")
	if err != nil {
		t.Fatalf("Onboard(bob) error: %v", err)
	}
	charlie, err := c.Onboard(ctx, "walletconnect")
	if err != nil {
		t.Fatalf("Onboard(charlie) error: %v", err)
	}
	return c, alice, bob, charlie
}

func TestCreateRoomVisibleToAllRecipients(t *testing.T) {
	c, alice, bob, charlie := newTestClient(t)
	ctx := context.Background()

	if _, err := c.CreateRoom(ctx, charlie.Address, "Team", []core.Address{alice.Address, bob.Address}); err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}

	for _, member := range []*Session{alice, bob, charlie} {
		rooms, err := c.Rooms(ctx, member.Address)
		if err != nil {
			t.Fatalf("Rooms(%s) error: %v", member.Address, err)
		}
		if len(rooms) != 1 {
			t.Fatalf("Rooms(%s) yielded %d rooms, want 1", member.Address, len(rooms))
		}
		r := rooms[0]
		if r.Name != "Team" {
			t.Errorf("Name = %q, want %q", r.Name, "Team")
		}
		if !r.Creator.Equal(charlie.Address) {
			t.Errorf("Creator = %q, want %q", r.Creator, charlie.Address)
		}
		if len(r.Recipients) != 3 {
			t.Errorf("Recipients = %v, want all three members", r.Recipients)
		}
		for _, want := range []core.Address{alice.Address, bob.Address, charlie.Address} {
			if !r.HasRecipient(want) {
				t.Errorf("Recipients %v missing %s", r.Recipients, want)
			}
		}
		if !r.IsAdmin(charlie.Address) {
			t.Error("IsAdmin(creator) = false")
		}
		if r.IsAdmin(alice.Address) {
			t.Error("IsAdmin(member) = true")
		}
	}
}

func TestCreatePostReachesMembers(t *testing.T) {
	c, alice, _, charlie := newTestClient(t)
	ctx := context.Background()

	if _, err := c.CreateRoom(ctx, charlie.Address, "Team", []core.Address{alice.Address}); err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}
	if _, err := c.CreatePost(ctx, charlie.Address, "Team", "hi", "hello"); err != nil {
		t.Fatalf("CreatePost() error: %v", err)
	}

	posts, err := c.Posts(ctx, alice.Address, "Team")
	if err != nil {
		t.Fatalf("Posts() error: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("Posts() yielded %d posts, want 1", len(posts))
	}
	p := posts[0]
	if !p.Sender.Equal(charlie.Address) {
		t.Errorf("Sender = %q, want %q", p.Sender, charlie.Address)
	}
	if p.Subject != "hi" || p.Body != "hello" {
		t.Errorf("post = %+v, want subject %q body %q", p, "hi", "hello")
	}
}

func TestCreatePostRoomNotFound(t *testing.T) {
	c, _, _, charlie := newTestClient(t)

	_, err := c.CreatePost(context.Background(), charlie.Address, "NoSuchRoom", "hi", "hello")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("CreatePost() error = %v, want ErrRoomNotFound", err)
	}
}

func TestCreatePostOnlyCreatorsOwnRooms(t *testing.T) {
	c, alice, _, charlie := newTestClient(t)
	ctx := context.Background()

	// Charlie created the room; Alice is a member but not the creator,
	// so posting resolves against her own (empty) room set.
	if _, err := c.CreateRoom(ctx, charlie.Address, "Team", []core.Address{alice.Address}); err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}

	_, err := c.CreatePost(ctx, alice.Address, "Team", "hi", "hello")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("CreatePost() by non-creator = %v, want ErrRoomNotFound", err)
	}
}

func TestPublishRequiresOnboarding(t *testing.T) {
	c := New(Config{Transport: memory.New()})
	stranger := core.Address("0x0a055ed28e6acc2f2377ed0ae3be06d24885d449")

	if _, err := c.CreateRoom(context.Background(), stranger, "Team", nil); !errors.Is(err, ErrNotOnboarded) {
		t.Errorf("CreateRoom() error = %v, want ErrNotOnboarded", err)
	}
	if _, err := c.CreatePost(context.Background(), stranger, "Team", "hi", "hello"); !errors.Is(err, ErrNotOnboarded) {
		t.Errorf("CreatePost() error = %v, want ErrNotOnboarded", err)
	}
}

func TestCreateRoomUnknownRecipient(t *testing.T) {
	c, _, _, charlie := newTestClient(t)

	// Never onboarded anywhere, so no published key exists.
	ghost := core.Address("0x2222222222222222222222222222222222222222")
	_, err := c.CreateRoom(context.Background(), charlie.Address, "Team", []core.Address{ghost})
	if !errors.Is(err, transport.ErrUnknownAddress) {
		t.Errorf("CreateRoom() error = %v, want ErrUnknownAddress", err)
	}
}

func TestResubmitShowsDuplicatePost(t *testing.T) {
	c, alice, _, charlie := newTestClient(t)
	ctx := context.Background()

	if _, err := c.CreateRoom(ctx, charlie.Address, "Team", []core.Address{alice.Address}); err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := c.CreatePost(ctx, charlie.Address, "Team", "hi", "hello"); err != nil {
			t.Fatalf("CreatePost() error: %v", err)
		}
	}

	posts, err := c.Posts(ctx, alice.Address, "Team")
	if err != nil {
		t.Fatalf("Posts() error: %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("Posts() yielded %d posts, want 2 (resubmission is a visible duplicate)", len(posts))
	}
}

func TestSessionLookup(t *testing.T) {
	c, alice, _, _ := newTestClient(t)

	sess, ok := c.Session(alice.Address)
	if !ok || sess.Wallet != "metamask" {
		t.Errorf("Session() = (%+v, %v), want alice's metamask session", sess, ok)
	}

	upper := core.Address("0X" + string(alice.Address)[2:])
	if _, ok := c.Session(upper); !ok {
		t.Error("Session() lookup is case-sensitive, want insensitive")
	}
}
