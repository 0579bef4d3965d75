package admission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"clinsight/internal/config"
	"clinsight/internal/domain"
	"clinsight/internal/port"
)

// acquireScript increments the user's lease counter and backs out if the
// cap is exceeded. The TTL bounds how long a crashed replica can hold slots.
var acquireScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
if n > tonumber(ARGV[1]) then
	redis.call('DECR', KEYS[1])
	return 0
end
return 1
`)

var releaseScript = redis.NewScript(`
local n = redis.call('DECR', KEYS[1])
if n <= 0 then
	redis.call('DEL', KEYS[1])
end
return n
`)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Redis caps in-flight runs per user across every replica sharing the
// Redis instance.
type Redis struct {
	client   redis.Scripter
	max      int
	leaseTTL time.Duration
	prefix   string
}

// NewRedis creates a Redis-backed limiter.
func NewRedis(client redis.Scripter, max int, leaseTTL time.Duration) *Redis {
	if leaseTTL <= 0 {
		leaseTTL = 10 * time.Minute
	}
	return &Redis{client: client, max: max, leaseTTL: leaseTTL, prefix: "clinsight:inflight:"}
}

var _ port.Admission = (*Redis)(nil)

func (r *Redis) Acquire(ctx context.Context, userID string) (func(), error) {
	if r.max <= 0 {
		return func() {}, nil
	}
	key := r.prefix + userID
	ok, err := acquireScript.Run(ctx, r.client, []string{key}, r.max, r.leaseTTL.Milliseconds()).Int()
	if err != nil {
		return nil, fmt.Errorf("admission.Redis.Acquire: %w", err)
	}
	if ok == 0 {
		return nil, domain.ErrTooManyInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be gone by the time a run ends.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{key}).Err(); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("admission.Redis: release failed, lease will expire")
			}
		})
	}, nil
}
