// Package redisstore tracks per-room presence in redis. Presence is
// advisory: keys carry a TTL so counts self-heal after crashed
// connections, and a nil store degrades every call to a no-op.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 5 * time.Minute

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func presenceKey(roomID string) string {
	return fmt.Sprintf("presence:%s", roomID)
}

// Join records one more connected client for the room.
func (s *Store) Join(ctx context.Context, roomID string) error {
	if s == nil {
		return nil
	}
	key := presenceKey(roomID)
	pipe := s.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, presenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Leave records one fewer connected client, flooring at zero.
func (s *Store) Leave(ctx context.Context, roomID string) error {
	if s == nil {
		return nil
	}
	key := presenceKey(roomID)
	n, err := s.rdb.Decr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n < 0 {
		return s.rdb.Set(ctx, key, 0, presenceTTL).Err()
	}
	return s.rdb.Expire(ctx, key, presenceTTL).Err()
}

// Count returns the room's connected-client count; zero when the
// store is absent or the key has expired.
func (s *Store) Count(ctx context.Context, roomID string) (int64, error) {
	if s == nil {
		return 0, nil
	}
	n, err := s.rdb.Get(ctx, presenceKey(roomID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.rdb.Close()
}
