// Package lease implementa o lease de resolução por mercado sobre Redis.
package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/radieske/prediction-market-poc/internal/market"
)

// só apaga a chave se o valor ainda for o token de quem adquiriu
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Redis concede leases com SET NX PX; a expiração libera o mercado se o worker cair
type Redis struct {
	rdb     *redis.Client
	release *redis.Script
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, release: redis.NewScript(releaseLua)}
}

// Acquire retorna market.ErrLeaseHeld se a chave já tiver dono.
// A função de liberação pode ser chamada mais de uma vez.
func (l *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, market.ErrLeaseHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// contexto próprio: o do chamador pode já ter sido cancelado
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.release.Run(rctx, l.rdb, []string{key}, token).Err()
		})
	}
	return release, nil
}
