package locker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sitequote/billing/internal/config"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type LockerSuite struct {
	suite.Suite
	newLocker func(waitTimeout time.Duration) Locker
}

func (s *LockerSuite) TestMutualExclusion() {
	l := s.newLocker(5 * time.Second)
	ctx := context.Background()

	var (
		inside  atomic.Int64
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				unlock, err := l.Lock(ctx, "subs_1")
				if !s.NoError(err) {
					return
				}
				if inside.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(100 * time.Microsecond)
				inside.Add(-1)
				unlock()
			}
		}()
	}
	wg.Wait()
	s.False(overlap.Load())
}

func (s *LockerSuite) TestDifferentKeysDoNotBlock() {
	l := s.newLocker(200 * time.Millisecond)
	ctx := context.Background()

	unlock1, err := l.Lock(ctx, "subs_1")
	s.Require().NoError(err)
	defer unlock1()

	unlock2, err := l.Lock(ctx, "subs_2")
	s.Require().NoError(err)
	unlock2()
}

func (s *LockerSuite) TestWaitTimeout() {
	l := s.newLocker(100 * time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "subs_1")
	s.Require().NoError(err)
	defer unlock()

	_, err = l.Lock(ctx, "subs_1")
	s.Error(err)
	s.True(ierr.IsTransient(err))
}

func (s *LockerSuite) TestUnlockIsIdempotent() {
	l := s.newLocker(time.Second)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "subs_1")
	s.Require().NoError(err)
	unlock()
	unlock()

	unlock, err = l.Lock(ctx, "subs_1")
	s.Require().NoError(err)
	unlock()
}

func TestMemoryLocker(t *testing.T) {
	suite.Run(t, &LockerSuite{
		newLocker: func(waitTimeout time.Duration) Locker {
			return NewMemoryLocker(waitTimeout)
		},
	})
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	suite.Run(t, &LockerSuite{
		newLocker: func(waitTimeout time.Duration) Locker {
			return NewRedisLockerWithClient(client, "test:lock", time.Minute, waitTimeout, logger.NewNopLogger())
		},
	})
}

func TestRedisLockerLeaseExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLockerWithClient(client, "test:lock", time.Second, 2*time.Second, logger.NewNopLogger())
	ctx := context.Background()

	staleUnlock, err := l.Lock(ctx, "subs_1")
	require.NoError(t, err)

	// crashed holder: the lease runs out without an unlock
	mr.FastForward(2 * time.Second)

	unlock, err := l.Lock(ctx, "subs_1")
	require.NoError(t, err)

	// the stale holder must not release the new holder's lease
	staleUnlock()
	assert.True(t, mr.Exists("test:lock:subs_1"))

	unlock()
	assert.False(t, mr.Exists("test:lock:subs_1"))
}

func TestNewLocker(t *testing.T) {
	cfg := config.GetDefaultConfig()

	l, err := NewLocker(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemoryLocker{}, l)

	cfg.Locker.Backend = "etcd"
	_, err = NewLocker(cfg, logger.NewNopLogger())
	assert.True(t, ierr.IsValidation(err))
}

func TestRedisLockerRenewsHeldLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ttl := 300 * time.Millisecond
	l := NewRedisLockerWithClient(client, "test:lock", ttl, time.Second, logger.NewNopLogger())

	unlock, err := l.Lock(context.Background(), "subs_1")
	require.NoError(t, err)

	// most of the lease is used up by slow provider calls
	mr.FastForward(250 * time.Millisecond)
	require.True(t, mr.Exists("test:lock:subs_1"))

	assert.Eventually(t, func() bool {
		return mr.TTL("test:lock:subs_1") > 200*time.Millisecond
	}, time.Second, 20*time.Millisecond)

	// renewal keeps the key alive past the original deadline
	mr.FastForward(100 * time.Millisecond)
	assert.True(t, mr.Exists("test:lock:subs_1"))

	unlock()
	assert.False(t, mr.Exists("test:lock:subs_1"))
}

func TestRedisLockerDoesNotRenewLostLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ttl := 150 * time.Millisecond
	l := NewRedisLockerWithClient(client, "test:lock", ttl, time.Second, logger.NewNopLogger())

	staleUnlock, err := l.Lock(context.Background(), "subs_1")
	require.NoError(t, err)

	mr.FastForward(time.Second)
	require.False(t, mr.Exists("test:lock:subs_1"))

	// another instance now holds the key
	require.NoError(t, mr.Set("test:lock:subs_1", "other"))
	mr.SetTTL("test:lock:subs_1", 5*time.Second)

	time.Sleep(3 * ttl)
	assert.Equal(t, 5*time.Second, mr.TTL("test:lock:subs_1"))

	staleUnlock()
	assert.True(t, mr.Exists("test:lock:subs_1"))
}
