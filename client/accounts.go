package client

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roomwire/roomwire-go/core"
)

var accountsBucket = []byte("accounts")

// AccountRecord is one entry in the locally cached account list. Only
// the wallet/address binding is cached; key material never touches
// disk.
type AccountRecord struct {
	Wallet      string       `json:"wallet"`
	Address     core.Address `json:"address"`
	OnboardedAt time.Time    `json:"onboarded_at"`
}

// AccountStore persists the onboarded account list in a local bbolt
// file, so the account list survives restarts. Rooms and posts are
// never persisted locally; they are always re-derived from history.
type AccountStore struct {
	db *bolt.DB
}

// OpenAccountStore opens (or creates) the account cache at path.
func OpenAccountStore(path string) (*AccountStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open account store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(accountsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init account store: %w", err)
	}
	return &AccountStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *AccountStore) Close() error {
	return s.db.Close()
}

// Add stores an account record, keyed by normalized address. Adding an
// already-cached address overwrites its record.
func (s *AccountStore) Add(rec AccountRecord) error {
	rec.Address = rec.Address.Normalize()
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode account record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).Put([]byte(rec.Address), buf)
	})
}

// Remove deletes the record for an address.
func (s *AccountStore) Remove(addr core.Address) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).Delete([]byte(addr.Normalize()))
	})
}

// List returns all cached account records, ordered by address.
func (s *AccountStore) List() ([]AccountRecord, error) {
	var records []AccountRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(accountsBucket).ForEach(func(k, v []byte) error {
			var rec AccountRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode account record %s: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
