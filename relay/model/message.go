// Package model defines the wire types of the relay API.
package model

// Message is one addressed message as stored by the relay. Content is
// the opaque sealed blob; the relay records its checksum at submit
// time and never inspects the plaintext.
type Message struct {
	ID         string `json:"id"`
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient"`
	Content    []byte `json:"content"`
	Checksum   string `json:"checksum"` // hex-encoded SHA-256 of Content
	SequenceNo uint64 `json:"sequence_no"`
}

// SubmitRequest is the body of POST /messages.
type SubmitRequest struct {
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Content    []byte   `json:"content"`
}

// SubmitResponse is the reply to a successful submit.
type SubmitResponse struct {
	ID string `json:"id"`
}

// KeyRecord is a published messaging public key for an address.
type KeyRecord struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key"` // hex-encoded X25519 public key
}
