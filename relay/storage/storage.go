// Package storage provides the relay's message history and key
// registry backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/roomwire/roomwire-go/relay/config"
	"github.com/roomwire/roomwire-go/relay/model"
)

var ErrNotFound = errors.New("not found")

// Storage is an interface that defines the methods to be implemented
// by a relay storage backend. Histories are keyed by the hex form of
// an address's 32-byte transport key; the key registry is keyed by
// display address.
type Storage interface {
	AppendMessage(ctx context.Context, historyKey string, msg model.Message) error
	GetHistory(ctx context.Context, historyKey string) ([]model.Message, error)
	SetKey(ctx context.Context, address string, publicKey string) error
	GetKey(ctx context.Context, address string) (string, error)
	Close() error
}

var _ Storage = (*RedisStorage)(nil)

// RedisStorage is a redis-backed Storage for multi-instance relays.
type RedisStorage struct {
	cfg    config.RedisServer
	client *redis.Client
}

// NewRedisStorage returns a new storage that uses redis.
func NewRedisStorage(cfg config.RedisServer) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.User,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if status := client.Ping(context.Background()); status.Err() != nil {
		return nil, status.Err()
	}
	return &RedisStorage{cfg: cfg, client: client}, nil
}

// AppendMessage appends a message to a history list. The assigned
// sequence number is the list position.
func (s *RedisStorage) AppendMessage(ctx context.Context, historyKey string, msg model.Message) error {
	key := historyRedisKey(historyKey)
	length, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("fail to get history length for %s, err: %w", historyKey, err)
	}
	msg.SequenceNo = uint64(length)
	buf, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("fail to encode message, err: %w", err)
	}
	if err := s.client.RPush(ctx, key, buf).Err(); err != nil {
		return fmt.Errorf("fail to append message to %s, err: %w", historyKey, err)
	}
	return nil
}

// GetHistory returns the full ordered history for a key, oldest first.
func (s *RedisStorage) GetHistory(ctx context.Context, historyKey string) ([]model.Message, error) {
	items, err := s.client.LRange(ctx, historyRedisKey(historyKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fail to read history for %s, err: %w", historyKey, err)
	}
	messages := make([]model.Message, 0, len(items))
	for _, item := range items {
		var msg model.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("fail to decode message in %s, err: %w", historyKey, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// SetKey publishes an address's messaging public key.
func (s *RedisStorage) SetKey(ctx context.Context, address string, publicKey string) error {
	if err := s.client.Set(ctx, pubKeyRedisKey(address), publicKey, 0).Err(); err != nil {
		return fmt.Errorf("fail to set key for %s, err: %w", address, err)
	}
	return nil
}

// GetKey returns the published key for an address, or ErrNotFound.
func (s *RedisStorage) GetKey(ctx context.Context, address string) (string, error) {
	value, err := s.client.Get(ctx, pubKeyRedisKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fail to get key for %s, err: %w", address, err)
	}
	return value, nil
}

// Close closes the redis client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

func historyRedisKey(historyKey string) string {
	return "history:" + historyKey
}

func pubKeyRedisKey(address string) string {
	return "pubkey:" + address
}
