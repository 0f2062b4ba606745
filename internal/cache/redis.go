package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisClient struct {
	client *redis.Client
	log    *zap.Logger
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int, ttl time.Duration, log *zap.Logger) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connected successfully", zap.String("addr", addr))

	return &RedisClient{
		client: rdb,
		log:    log,
		ttl:    ttl,
	}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func availabilityKey(storeID int64, sku string) string {
	return fmt.Sprintf("inv:availability:%d:%s", storeID, sku)
}

// Кэш ответов availability (read-through на стороне транспорта)
func (r *RedisClient) GetAvailability(ctx context.Context, storeID int64, sku string) ([]byte, error) {
	return r.client.Get(ctx, availabilityKey(storeID, sku)).Bytes()
}

func (r *RedisClient) SetAvailability(ctx context.Context, storeID int64, sku string, payload []byte) error {
	return r.client.Set(ctx, availabilityKey(storeID, sku), payload, r.ttl).Err()
}

// Invalidate сбрасывает кэш позиции после любой мутации остатков.
func (r *RedisClient) Invalidate(ctx context.Context, storeID int64, sku string) error {
	return r.client.Del(ctx, availabilityKey(storeID, sku)).Err()
}
