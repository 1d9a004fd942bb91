// Package codec encodes and decodes roomwire commands to and from the
// subject/body envelope carried by the underlying message transport.
//
// The protocol is convention-based: a command is any message whose
// subject starts with a reserved tag followed by ":". Messages with any
// other subject are ordinary mail traffic sharing the same history and
// are not commands.
package codec

import "github.com/roomwire/roomwire-go/core"

// Command is a decoded protocol command. The concrete type is either
// *CreateRoom or *CreatePost.
type Command interface {
	// Tag returns the reserved subject tag for this command.
	Tag() string
}

// CreateRoom declares a room: a named group of recipient addresses.
// The recipient set always includes the creator.
type CreateRoom struct {
	RoomName       string
	CreatorAddress core.Address
	Recipients     []core.Address
}

// Tag returns TagRoomCreated.
func (*CreateRoom) Tag() string { return TagRoomCreated }

// CreatePost carries one message posted to a room. It is addressed to
// the room's recipient set as stored in the corresponding CreateRoom.
type CreatePost struct {
	RoomName       string
	CreatorAddress core.Address
	Subject        string
	Body           string
}

// Tag returns TagPost.
func (*CreatePost) Tag() string { return TagPost }
