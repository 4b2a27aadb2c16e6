package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"checkout-service/models"

	"github.com/redis/go-redis/v9"
)

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisIdempotencyStore keeps create-order progress in Redis for ttl.
type RedisIdempotencyStore struct {
	client redisKV
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (r *RedisIdempotencyStore) getIdemKey(userID, key string) string {
	return "idem:checkout:" + userID + ":" + key
}

// Get returns nil, nil when no record exists.
func (r *RedisIdempotencyStore) Get(ctx context.Context, userID, key string) (*models.IdempotencyRecord, error) {
	data, err := r.client.Get(ctx, r.getIdemKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec models.IdempotencyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RedisIdempotencyStore) Save(ctx context.Context, userID, key string, rec *models.IdempotencyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.getIdemKey(userID, key), data, r.ttl).Err()
}
