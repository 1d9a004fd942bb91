package codec

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/roomwire/roomwire-go/core"
)

const (
	// TagRoomCreated marks a CreateRoom command subject.
	TagRoomCreated = "ROOM CREATED"
	// TagPost marks a CreatePost command subject.
	TagPost = "POST"

	// tagDelimiter separates the tag from the user-supplied remainder.
	// Tag matching splits on the FIRST occurrence only, so a room name
	// or post subject containing ":" survives, but a room name cannot
	// itself be recovered from the subject if it contains ":" — the
	// body carries the authoritative copy.
	tagDelimiter = ":"
)

// ErrNotRecognized reports that an envelope is not a roomwire command.
// This is the normal skip path for unrelated traffic in a message
// history, not a failure.
var ErrNotRecognized = errors.New("envelope is not a recognized command")

// Envelope is the subject/body pair carried by one transport message.
type Envelope struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Wire form of a CreateRoom body.
type createRoomBody struct {
	CreatorAddress core.Address   `json:"creator_address"`
	RoomName       string         `json:"roomName"`
	Recipients     []core.Address `json:"recipients"`
}

// Wire form of a CreatePost body.
type createPostBody struct {
	CreatorAddress core.Address `json:"creator_address"`
	Post           string       `json:"post"`
	Room           string       `json:"room"`
}

// EncodeCreateRoom builds the envelope declaring a room. The creator is
// appended to the recipient set if not already present, so a decoded
// room always includes its creator as a member.
func EncodeCreateRoom(roomName string, creator core.Address, recipients []core.Address) Envelope {
	full := recipients
	found := false
	for _, r := range recipients {
		if r.Equal(creator) {
			found = true
			break
		}
	}
	if !found {
		full = make([]core.Address, 0, len(recipients)+1)
		full = append(full, recipients...)
		full = append(full, creator)
	}

	body, _ := json.Marshal(createRoomBody{
		CreatorAddress: creator,
		RoomName:       roomName,
		Recipients:     full,
	})
	return Envelope{
		Subject: TagRoomCreated + tagDelimiter + roomName,
		Body:    string(body),
	}
}

// EncodeCreatePost builds the envelope carrying one post to a room.
func EncodeCreatePost(roomName, postSubject, postBody string, creator core.Address) Envelope {
	body, _ := json.Marshal(createPostBody{
		CreatorAddress: creator,
		Post:           postBody,
		Room:           roomName,
	})
	return Envelope{
		Subject: TagPost + tagDelimiter + postSubject,
		Body:    string(body),
	}
}

// Decode inspects an envelope's subject tag and parses its body into a
// Command. Envelopes with an unrecognized tag, no tag delimiter, or a
// body that fails to parse return ErrNotRecognized — history may carry
// arbitrary unrelated traffic, and such messages are skipped, never
// fatal.
func Decode(env Envelope) (Command, error) {
	idx := strings.Index(env.Subject, tagDelimiter)
	if idx < 0 {
		return nil, ErrNotRecognized
	}
	tag, rest := env.Subject[:idx], env.Subject[idx+1:]

	switch tag {
	case TagRoomCreated:
		var body createRoomBody
		if err := json.Unmarshal([]byte(env.Body), &body); err != nil {
			return nil, ErrNotRecognized
		}
		if body.RoomName == "" || body.CreatorAddress == "" {
			return nil, ErrNotRecognized
		}
		return &CreateRoom{
			RoomName:       body.RoomName,
			CreatorAddress: body.CreatorAddress,
			Recipients:     body.Recipients,
		}, nil

	case TagPost:
		var body createPostBody
		if err := json.Unmarshal([]byte(env.Body), &body); err != nil {
			return nil, ErrNotRecognized
		}
		if body.Room == "" || body.CreatorAddress == "" {
			return nil, ErrNotRecognized
		}
		return &CreatePost{
			RoomName:       body.Room,
			CreatorAddress: body.CreatorAddress,
			Subject:        rest,
			Body:           body.Post,
		}, nil

	default:
		return nil, ErrNotRecognized
	}
}
