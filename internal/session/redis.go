package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const redisKeyPrefix = "funnel:session:"

// RedisBackend stores sessions in Redis so multiple serving instances see
// the same state. Entries expire after the configured TTL.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, eris.Wrap(err, "session: redis ping")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisBackend{client: client, ttl: ttl}, nil
}

func (b *RedisBackend) Put(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "session: marshal")
	}
	if err := b.client.Set(ctx, redisKeyPrefix+s.ID, data, b.ttl).Err(); err != nil {
		return eris.Wrap(err, "session: redis set")
	}
	return nil
}

func (b *RedisBackend) Get(ctx context.Context, id string) (*Session, error) {
	data, err := b.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "session: redis get")
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "session: unmarshal")
	}
	return &s, nil
}

func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	if err := b.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return eris.Wrap(err, "session: redis del")
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
