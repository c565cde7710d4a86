package locker

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sitequote/billing/internal/config"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/types"
)

// releaseScript deletes the key only when it still holds our token, so a
// holder whose lease expired cannot release a lock someone else now owns
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it still holds our token
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX leases shared by every
// instance pointed at the same redis. A held lease is renewed every third of
// its TTL until unlock, so the TTL only bounds how long a crashed holder
// blocks others.
type RedisLocker struct {
	client      *redis.Client
	prefix      string
	ttl         time.Duration
	waitTimeout time.Duration
	logger      *logger.Logger
}

func NewRedisLocker(cfg *config.Configuration, logger *logger.Logger) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not reach redis at %s", cfg.Redis.Address).
			Mark(ierr.ErrSystem)
	}

	return NewRedisLockerWithClient(client, cfg.Redis.Prefix, cfg.Locker.TTL, cfg.Locker.WaitTimeout, logger), nil
}

func NewRedisLockerWithClient(client *redis.Client, prefix string, ttl, waitTimeout time.Duration, logger *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{
		client:      client,
		prefix:      prefix,
		ttl:         ttl,
		waitTimeout: waitTimeout,
		logger:      logger,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + ":" + key
	token := types.GenerateUUID()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 25 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = l.waitTimeout

	acquire := func() error {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return ierr.ErrLockNotAcquired
		}
		return nil
	}

	if err := backoff.Retry(acquire, backoff.WithContext(policy, ctx)); err != nil {
		return nil, lockNotAcquired(key, err)
	}

	stop := make(chan struct{})
	go l.keepAlive(redisKey, token, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			// the caller's ctx may already be cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Errorw("failed to release redis lock",
					"key", redisKey,
					"error", err,
				)
			}
		})
	}, nil
}

// keepAlive renews the lease until stop is closed or the lease is lost
func (l *RedisLocker) keepAlive(redisKey, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
		renewed, err := renewScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int64()
		cancel()

		if err != nil {
			l.logger.Warnw("failed to renew redis lock",
				"key", redisKey,
				"error", err,
			)
			continue
		}
		if renewed == 0 {
			l.logger.Errorw("redis lock lease lost before unlock", "key", redisKey)
			return
		}
	}
}

// Close closes the underlying redis client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
