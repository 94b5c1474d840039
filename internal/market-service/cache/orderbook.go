// Package cache guarda por poucos segundos as visões de pool e order book.
// Cada entrada é uma resposta inteira, montada a partir de um único snapshot.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *Cache { return &Cache{R: r, TTL: ttl} }

func keyOrderBook(marketID string) string { return "market:orderbook:" + marketID }
func keyPool(marketID string) string      { return "market:pool:" + marketID }

func (c *Cache) get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) set(ctx context.Context, key string, v any) error {
	if c.TTL <= 0 {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, key, b, c.TTL).Err()
}

func (c *Cache) GetOrderBook(ctx context.Context, marketID string, dst any) (bool, error) {
	return c.get(ctx, keyOrderBook(marketID), dst)
}

func (c *Cache) SetOrderBook(ctx context.Context, marketID string, v any) error {
	return c.set(ctx, keyOrderBook(marketID), v)
}

func (c *Cache) GetPool(ctx context.Context, marketID string, dst any) (bool, error) {
	return c.get(ctx, keyPool(marketID), dst)
}

func (c *Cache) SetPool(ctx context.Context, marketID string, v any) error {
	return c.set(ctx, keyPool(marketID), v)
}

// Invalidate remove as visões do mercado; chamado após aposta e liquidação
func (c *Cache) Invalidate(ctx context.Context, marketID string) error {
	return c.R.Del(ctx, keyOrderBook(marketID), keyPool(marketID)).Err()
}
