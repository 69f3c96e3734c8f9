package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the slots as plain string keys under a prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 4,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) IsNewEvent(ctx context.Context, url string) (bool, error) {
	last, err := s.get(ctx, eventSlot)
	if err != nil {
		return false, err
	}
	return isNew(last, url), nil
}

// Commit sets both event slots in one MULTI/EXEC transaction.
func (s *RedisStore) Commit(ctx context.Context, url string, magnitude float64) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(magnitudeSlot), formatMagnitude(magnitude), 0)
		pipe.Set(ctx, s.key(eventSlot), url, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

func (s *RedisStore) Rollback(ctx context.Context) error {
	return s.set(ctx, eventSlot, "")
}

func (s *RedisStore) SaveCoordinates(ctx context.Context, c domain.Coordinates) error {
	return s.set(ctx, coordinatesSlot, c.String())
}

func (s *RedisStore) LastCoordinates(ctx context.Context) (domain.Coordinates, error) {
	raw, err := s.get(ctx, coordinatesSlot)
	if err != nil {
		return domain.Coordinates{}, err
	}
	return parseCoordinates(raw)
}

func (s *RedisStore) LastEvent(ctx context.Context) (string, error) {
	return s.get(ctx, eventSlot)
}

func (s *RedisStore) LastMagnitude(ctx context.Context) (float64, error) {
	raw, err := s.get(ctx, magnitudeSlot)
	if err != nil {
		return 0, err
	}
	return parseMagnitude(raw)
}

func (s *RedisStore) key(slot string) string {
	return s.prefix + slot
}

// get returns the slot value; a missing key reads as "".
func (s *RedisStore) get(ctx context.Context, slot string) (string, error) {
	v, err := s.client.Get(ctx, s.key(slot)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", slot, err)
	}
	return v, nil
}

func (s *RedisStore) set(ctx context.Context, slot, value string) error {
	if err := s.client.Set(ctx, s.key(slot), value, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", slot, err)
	}
	return nil
}
