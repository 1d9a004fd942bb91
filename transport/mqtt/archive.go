package mqtt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roomwire/roomwire-go/core"
	"github.com/roomwire/roomwire-go/core/crypto"
	"github.com/roomwire/roomwire-go/transport"
)

var (
	historyBucket = []byte("history")
	keysBucket    = []byte("keys")
)

// archive is the bbolt-backed record of everything seen on watched
// inbox topics, plus the key announcements observed so far. History is
// a nested bucket per address key; entries are keyed by a big-endian
// per-bucket sequence number so a cursor walks them in arrival order.
type archive struct {
	mu sync.Mutex
	db *bolt.DB
}

func openArchive(path string) (*archive, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(historyBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(keysBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive: %w", err)
	}
	return &archive{db: db}, nil
}

func (a *archive) Close() error {
	return a.db.Close()
}

func (a *archive) append(key core.AddressKey, meta transport.Metadata) error {
	buf, err := json.Marshal(archivedMessage{
		ID:       meta.ID,
		Sender:   meta.Sender.Normalize().String(),
		Content:  meta.Content,
		Checksum: meta.Checksum[:],
	})
	if err != nil {
		return fmt.Errorf("encode archived message: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(historyBucket).CreateBucketIfNotExists(key[:])
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		var seqKey [8]byte
		binary.BigEndian.PutUint64(seqKey[:], seq)
		return b.Put(seqKey[:], buf)
	})
}

func (a *archive) history(key core.AddressKey) ([]transport.Metadata, error) {
	recipient := key.Address()
	var out []transport.Metadata
	err := a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket).Bucket(key[:])
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var msg archivedMessage
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("decode archived message at %x: %w", k, err)
			}
			meta := transport.Metadata{
				ID:        msg.ID,
				Sender:    core.Address(msg.Sender),
				Recipient: recipient,
				Content:   msg.Content,
			}
			copy(meta.Checksum[:], msg.Checksum)
			out = append(out, meta)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *archive) putKey(addr core.Address, pub [crypto.KeySize]byte) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(keysBucket).Put([]byte(addr.Normalize()), pub[:])
	})
}

func (a *archive) getKey(addr core.Address) (*[crypto.KeySize]byte, error) {
	var pub *[crypto.KeySize]byte
	err := a.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(keysBucket).Get([]byte(addr.Normalize()))
		if v == nil {
			return nil
		}
		if len(v) != crypto.KeySize {
			return fmt.Errorf("malformed key record for %s", addr)
		}
		pub = new([crypto.KeySize]byte)
		copy(pub[:], v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// archivedMessage is the stored form of one history entry. The
// recipient is implicit in the bucket.
type archivedMessage struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Content  []byte `json:"content"`
	Checksum []byte `json:"checksum"`
}
