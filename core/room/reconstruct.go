package room

import (
	"context"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/codec"
	"github.com/roomwire/roomwire-go/core/scan"
)

// Reconstructor folds history scans into room and post views.
type Reconstructor struct {
	scanner *scan.Scanner
}

// NewReconstructor creates a reconstructor over the given scanner.
func NewReconstructor(scanner *scan.Scanner) *Reconstructor {
	return &Reconstructor{scanner: scanner}
}

// Rooms derives the full room set visible to an address. A later
// CreateRoom for the same (creator, name) silently shadows an earlier
// one — duplicates are legal, and the most recent in scan order wins.
// Any scan failure aborts the whole listing; partial results are never
// returned.
func (r *Reconstructor) Rooms(ctx context.Context, address core.Address) ([]Room, error) {
	var rooms []Room
	index := make(map[roomKey]int)

	it := r.scanner.Scan(ctx, address)
	for it.Next() {
		cmd, ok := it.Command().(*codec.CreateRoom)
		if !ok {
			continue
		}
		room := Room{
			Name:       cmd.RoomName,
			Creator:    cmd.CreatorAddress,
			Recipients: cmd.Recipients,
		}
		key := roomKey{creator: cmd.CreatorAddress.Normalize(), name: cmd.RoomName}
		if at, seen := index[key]; seen {
			rooms[at] = room
			continue
		}
		index[key] = len(rooms)
		rooms = append(rooms, room)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Posts derives the ordered post feed for one room as visible to an
// address, oldest first in scan order. Duplicate posts (e.g. retried
// sends) are all retained. Any scan failure aborts the whole listing.
func (r *Reconstructor) Posts(ctx context.Context, address core.Address, roomName string) ([]Post, error) {
	var posts []Post

	it := r.scanner.Scan(ctx, address)
	for it.Next() {
		cmd, ok := it.Command().(*codec.CreatePost)
		if !ok || cmd.RoomName != roomName {
			continue
		}
		posts = append(posts, Post{
			Room:    cmd.RoomName,
			Sender:  it.Meta().Sender,
			Subject: cmd.Subject,
			Body:    cmd.Body,
		})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

// roomKey is the (creator, name) uniqueness key; the creator side is
// normalized so case-variant addresses collide as intended.
type roomKey struct {
	creator core.Address
	name    string
}
