package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// IdempotencyHeader is the request header carrying the client's key.
const IdempotencyHeader = "Idempotency-Key"

// KeyStore reserves idempotency keys.
type KeyStore interface {
	// Reserve returns false when the key is already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisKeyStore keeps idempotency keys in Redis with a TTL.
type RedisKeyStore struct {
	rdb *redis.Client
}

// NewRedisKeyStore wraps a Redis client.
func NewRedisKeyStore(rdb *redis.Client) *RedisKeyStore {
	return &RedisKeyStore{rdb: rdb}
}

func (s *RedisKeyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, "exists", ttl).Result()
}

func (s *RedisKeyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// Idempotency rejects a request whose Idempotency-Key was already used by the
// same caller. The key is released again when the request fails so the
// client can retry. Requests without the header pass through.
func Idempotency(store KeyStore, ttl time.Duration, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(IdempotencyHeader)
		if key == "" || store == nil {
			return c.Next()
		}
		if len(key) > 128 {
			return fiber.NewError(fiber.StatusBadRequest, "idempotency key too long")
		}

		redisKey := "idempotent-key:" + key
		if userID, ok := GetCurrentUserID(c); ok {
			redisKey = fmt.Sprintf("idempotent-key:%s:%s", userID, key)
		}

		ctx := c.UserContext()
		reserved, err := store.Reserve(ctx, redisKey, ttl)
		if err != nil {
			log.Error().Err(err).Msg("idempotency store unavailable")
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency check unavailable, please retry")
		}
		if !reserved {
			return fiber.NewError(fiber.StatusConflict, "idempotency key already used")
		}

		err = c.Next()
		if err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
			if rerr := store.Release(context.Background(), redisKey); rerr != nil {
				log.Warn().Err(rerr).Str("key", redisKey).Msg("failed to release idempotency key")
			}
		}
		return err
	}
}
