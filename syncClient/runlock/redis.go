package runlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const releaseTimeout = 5 * time.Second

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every process using the same redis key. The key
// expires after ttl so a crashed holder cannot block runs forever.
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedis creates a redis-backed lock.
func NewRedis(client redis.UniversalClient, key string, ttl time.Duration, logger zerolog.Logger) *Redis {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Redis{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.With().Str("component", "run_lock").Str("key", key).Logger(),
	}
}

// Ping checks the redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// TryAcquire implements Lock with SET NX PX and a random token.
func (r *Redis) TryAcquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SETNX %s: %w", r.key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{r.key}, token).Err(); err != nil {
				r.logger.Warn().Err(err).Msg("failed to release run lock, it will expire")
			}
		})
	}
	return release, nil
}
