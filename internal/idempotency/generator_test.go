package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKey(t *testing.T) {
	g := NewGenerator()

	params := map[string]interface{}{
		"subscription_id": "subs_1",
		"previous_price":  "price_1",
		"unit_amount":     int64(65000),
	}
	key := g.GenerateKey(ScopePriceRevision, params)

	t.Run("stable across map orderings", func(t *testing.T) {
		reordered := map[string]interface{}{
			"unit_amount":     int64(65000),
			"previous_price":  "price_1",
			"subscription_id": "subs_1",
		}
		assert.Equal(t, key, g.GenerateKey(ScopePriceRevision, reordered))
		assert.True(t, g.ValidateKey(ScopePriceRevision, reordered, key))
	})

	t.Run("differs when an input differs", func(t *testing.T) {
		other := map[string]interface{}{
			"subscription_id": "subs_1",
			"previous_price":  "price_1",
			"unit_amount":     int64(70000),
		}
		assert.NotEqual(t, key, g.GenerateKey(ScopePriceRevision, other))
	})

	assert.Contains(t, key, string(ScopePriceRevision)+"-")
}
