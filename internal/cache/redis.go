package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelbooking/config"
	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client   *redis.Client
	poolsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, poolsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:   redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		poolsTTL: poolsTTL,
	}
}

func (c *RedisCache) GetPools(ctx context.Context, kind domain.BookingKind) ([]domain.Pool, error) {
	data, err := c.client.Get(ctx, poolsKey(kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var pools []domain.Pool
	if err := json.Unmarshal(data, &pools); err != nil {
		return nil, err
	}
	return pools, nil
}

func (c *RedisCache) SetPools(ctx context.Context, kind domain.BookingKind, pools []domain.Pool) error {
	payload, err := json.Marshal(pools)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, poolsKey(kind), payload, c.poolsTTL).Err()
}

func (c *RedisCache) InvalidatePools(ctx context.Context, kind domain.BookingKind) error {
	return c.client.Del(ctx, poolsKey(kind)).Err()
}

// AcquireUnitHold narrows the race window on a named unit before the
// database transaction runs; the pool_units booked flag remains the source
// of truth.
func (c *RedisCache) AcquireUnitHold(ctx context.Context, poolID, unitID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, unitHoldKey(poolID, unitID), "held", ttl).Result()
}

func (c *RedisCache) ReleaseUnitHold(ctx context.Context, poolID, unitID string) error {
	return c.client.Del(ctx, unitHoldKey(poolID, unitID)).Err()
}

func poolsKey(kind domain.BookingKind) string {
	return fmt.Sprintf("cache:pools:%s", kind)
}

func unitHoldKey(poolID, unitID string) string {
	return fmt.Sprintf("hold:pool:%s:unit:%s", poolID, unitID)
}
