package storage

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"

	"github.com/roomwire/roomwire-go/relay/model"
)

var _ Storage = (*InMemoryStorage)(nil)

// InMemoryStorage is a single-instance Storage for tests and local
// development. Histories and keys never expire.
type InMemoryStorage struct {
	// mu serializes history appends; the cache itself is safe for
	// concurrent use but read-modify-write of a history list is not.
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewInMemoryStorage returns a new in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		cache: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
	}
}

func (s *InMemoryStorage) AppendMessage(ctx context.Context, historyKey string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var history []model.Message
	if cached, ok := s.cache.Get(historyRedisKey(historyKey)); ok {
		history = cached.([]model.Message)
	}
	msg.SequenceNo = uint64(len(history))
	s.cache.Set(historyRedisKey(historyKey), append(history, msg), gocache.NoExpiration)
	return nil
}

func (s *InMemoryStorage) GetHistory(ctx context.Context, historyKey string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached, ok := s.cache.Get(historyRedisKey(historyKey))
	if !ok {
		return nil, nil
	}
	history := cached.([]model.Message)
	out := make([]model.Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *InMemoryStorage) SetKey(ctx context.Context, address string, publicKey string) error {
	s.cache.Set(pubKeyRedisKey(address), publicKey, gocache.NoExpiration)
	return nil
}

func (s *InMemoryStorage) GetKey(ctx context.Context, address string) (string, error) {
	value, ok := s.cache.Get(pubKeyRedisKey(address))
	if !ok {
		return "", ErrNotFound
	}
	return value.(string), nil
}

func (s *InMemoryStorage) Close() error {
	return nil
}
