package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/rugstore/pkg/config"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/order"
)

const (
	catalogKey   = "catalog:products"
	intentKeyFmt = "checkout:intent:%s"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// Products returns the cached product list.
func (r *RedisRepository) Products(ctx context.Context) ([]models.Product, bool, error) {
	var products []models.Product
	if err := r.GetJSON(ctx, catalogKey, &products); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read catalog cache: %w", err)
	}
	return products, true, nil
}

func (r *RedisRepository) SetProducts(ctx context.Context, products []models.Product) error {
	return r.SetJSON(ctx, catalogKey, products, r.config.CatalogTTL)
}

func (r *RedisRepository) InvalidateProducts(ctx context.Context) error {
	return r.Del(ctx, catalogKey)
}

// Intents returns the payment intent store backed by this client.
func (r *RedisRepository) Intents() *IntentStore {
	return &IntentStore{redis: r}
}

// IntentStore maps checkout idempotency keys to gateway orders with SETNX so
// concurrent creators agree on one gateway order.
type IntentStore struct {
	redis *RedisRepository
}

func (s *IntentStore) Get(ctx context.Context, key string) (order.Intent, bool, error) {
	var intent order.Intent
	if err := s.redis.GetJSON(ctx, fmt.Sprintf(intentKeyFmt, key), &intent); err != nil {
		if errors.Is(err, redis.Nil) {
			return order.Intent{}, false, nil
		}
		return order.Intent{}, false, err
	}
	return intent, true, nil
}

func (s *IntentStore) PutIfAbsent(ctx context.Context, key string, intent order.Intent) (order.Intent, bool, error) {
	data, err := json.Marshal(intent)
	if err != nil {
		return order.Intent{}, false, err
	}
	redisKey := fmt.Sprintf(intentKeyFmt, key)
	created, err := s.redis.client.SetNX(ctx, redisKey, data, s.redis.config.IdempotencyTTL).Result()
	if err != nil {
		return order.Intent{}, false, err
	}
	if created {
		return intent, true, nil
	}
	stored, found, err := s.Get(ctx, key)
	if err != nil {
		return order.Intent{}, false, err
	}
	if !found {
		return order.Intent{}, false, fmt.Errorf("payment intent %s expired while being created", key)
	}
	return stored, false, nil
}
