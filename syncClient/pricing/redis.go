package pricing

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

// DefaultRedisKey holds the latest SOL/USD rate as a decimal string.
const DefaultRedisKey = "wavewarz:sol_price_usd"

// RedisSource reads a rate published to redis by an external price feed.
type RedisSource struct {
	client redis.UniversalClient
	key    string
}

// NewRedisSource creates a Source over client. An empty key means DefaultRedisKey.
func NewRedisSource(client redis.UniversalClient, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

// SolPriceUSD implements Source. A missing key is an error so that a
// fallback source takes over.
func (r *RedisSource) SolPriceUSD(ctx context.Context) (float64, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("no rate published at %s", r.key)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate: %w", err)
	}
	price, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q at %s: %w", raw, r.key, err)
	}
	return price, nil
}
