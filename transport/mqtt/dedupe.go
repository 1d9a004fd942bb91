package mqtt

import (
	"crypto/sha256"
	"sync"

	"github.com/roomwire/roomwire-go/core"
)

const (
	// defaultDedupeWindow is how many recent deliveries the transport
	// remembers per instance when filtering broker redeliveries.
	defaultDedupeWindow = 256

	dedupeHashSize = 8
)

// deduper suppresses QoS 1 broker redeliveries before they reach the
// archive. It remembers the last N deliveries as truncated hashes of
// (recipient key, message ID) in a circular buffer, so a redelivered
// copy of an already-archived message is dropped while distinct
// submissions with fresh IDs always pass.
type deduper struct {
	mu     sync.Mutex
	hashes []byte
	max    int
	next   int
}

func newDeduper(window int) *deduper {
	if window <= 0 {
		window = defaultDedupeWindow
	}
	return &deduper{
		hashes: make([]byte, window*dedupeHashSize),
		max:    window,
	}
}

// hasSeen checks whether a delivery was already processed. If not, it
// records the delivery and returns false.
func (d *deduper) hasSeen(key core.AddressKey, messageID string) bool {
	hash := deliveryHash(key, messageID)

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.max {
		offset := i * dedupeHashSize
		if string(d.hashes[offset:offset+dedupeHashSize]) == string(hash[:]) {
			return true
		}
	}

	offset := d.next * dedupeHashSize
	copy(d.hashes[offset:offset+dedupeHashSize], hash[:])
	d.next = (d.next + 1) % d.max
	return false
}

func deliveryHash(key core.AddressKey, messageID string) [dedupeHashSize]byte {
	h := sha256.New()
	h.Write(key[:])
	h.Write([]byte(messageID))
	sum := h.Sum(nil)
	var result [dedupeHashSize]byte
	copy(result[:], sum[:dedupeHashSize])
	return result
}
