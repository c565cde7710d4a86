package cache

import (
	"context"
	"testing"
	"time"

	"github.com/sitequote/billing/internal/config"
	"github.com/sitequote/billing/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	c := NewInMemoryCache(cfg)

	key := GenerateKey(PrefixQuotation, "event", "quote_1")
	assert.Equal(t, "quotation:v1::event:quote_1", key)

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, "value", 0)
	v, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	c.Set(ctx, GenerateKey(PrefixQuotation, "construction", "quote_2"), "other", time.Minute)
	c.Set(ctx, GenerateKey(PrefixSubscription, "subs_1"), "sub", time.Minute)
	c.DeleteByPrefix(ctx, PrefixQuotation)

	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
	_, ok = c.Get(ctx, GenerateKey(PrefixSubscription, "subs_1"))
	assert.True(t, ok)

	c.Flush(ctx)
	_, ok = c.Get(ctx, GenerateKey(PrefixSubscription, "subs_1"))
	assert.False(t, ok)
}

func TestInMemoryCacheDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	c := NewInMemoryCache(cfg)

	c.Set(ctx, "k", "v", time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestInMemoryCacheDisabledForSharedDeployments(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	cfg.Locker.Backend = types.LockerBackendRedis
	c := NewInMemoryCache(cfg)

	c.Set(ctx, "k", "v", time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
