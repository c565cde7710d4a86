package testutil

import (
	"context"
	"sync"

	"github.com/sitequote/billing/internal/domain/notification"
)

// InMemoryNotificationStore implements notification.Repository
type InMemoryNotificationStore struct {
	*InMemoryStore[*notification.Notification]

	mu        sync.Mutex
	createErr error
}

func NewInMemoryNotificationStore() *InMemoryNotificationStore {
	return &InMemoryNotificationStore{
		InMemoryStore: NewInMemoryStore[*notification.Notification](),
	}
}

// FailCreate makes every following Create return err
func (s *InMemoryNotificationStore) FailCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

func (s *InMemoryNotificationStore) Create(ctx context.Context, n *notification.Notification) error {
	s.mu.Lock()
	failErr := s.createErr
	s.mu.Unlock()
	if failErr != nil {
		return failErr
	}
	return s.InMemoryStore.Create(ctx, n.ID, n)
}

func (s *InMemoryNotificationStore) ListByUser(ctx context.Context, userID string) ([]*notification.Notification, error) {
	return s.List(ctx,
		func(_ context.Context, n *notification.Notification) bool {
			return n.UserID == userID
		},
		func(a, b *notification.Notification) bool {
			return a.CreatedAt.After(b.CreatedAt)
		},
	)
}
