// Package room derives rooms and posts from a history scan. Nothing
// here is persisted: a Room or Post is owned by the caller of the scan
// that produced it and is refreshed only by re-deriving from a new
// scan.
package room

import "github.com/roomwire/roomwire-go/core"

// Room is a derived record describing a named group and its recipient
// set, reconstructed from a CreateRoom command. Its uniqueness key is
// (creator, name).
type Room struct {
	Name       string
	Creator    core.Address
	Recipients []core.Address
}

// IsAdmin reports whether an account is the room's admin. The creator
// is the only admin — there is no other administrative capability in
// this protocol. Address comparison ignores hex casing.
func (r *Room) IsAdmin(addr core.Address) bool {
	return r.Creator.Equal(addr)
}

// HasRecipient reports whether an address is in the room's recipient
// set, ignoring hex casing.
func (r *Room) HasRecipient(addr core.Address) bool {
	for _, rec := range r.Recipients {
		if rec.Equal(addr) {
			return true
		}
	}
	return false
}

// Post is a derived message belonging to a room, reconstructed from a
// CreatePost command. Sender is taken from the transport's message
// metadata, not from the command body.
type Post struct {
	Room    string
	Sender  core.Address
	Subject string
	Body    string
}
