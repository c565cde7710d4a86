package testutil

import (
	"context"

	"github.com/sitequote/billing/internal/domain/tracking"
)

// InMemoryTrackingStore implements tracking.Repository
type InMemoryTrackingStore struct {
	*InMemoryStore[*tracking.Tracking]
}

func NewInMemoryTrackingStore() *InMemoryTrackingStore {
	return &InMemoryTrackingStore{
		InMemoryStore: NewInMemoryStore[*tracking.Tracking](),
	}
}

func (s *InMemoryTrackingStore) Create(ctx context.Context, t *tracking.Tracking) error {
	return s.InMemoryStore.Create(ctx, t.ID, t)
}

func (s *InMemoryTrackingStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*tracking.Tracking, error) {
	return s.List(ctx,
		func(_ context.Context, t *tracking.Tracking) bool {
			return t.SubscriptionID == subscriptionID
		},
		func(a, b *tracking.Tracking) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID < b.ID
			}
			return a.CreatedAt.Before(b.CreatedAt)
		},
	)
}
