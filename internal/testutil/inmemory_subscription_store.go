package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sitequote/billing/internal/domain/subscription"
	"github.com/sitequote/billing/internal/domain/user"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
	users user.Repository

	mu          sync.Mutex
	applyErr    error
	applyCalled int
}

func NewInMemorySubscriptionStore(users user.Repository) *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
		users:         users,
	}
}

// FailApplyMonthlyCost makes every following ApplyMonthlyCost return err.
// Pass nil to recover.
func (s *InMemorySubscriptionStore) FailApplyMonthlyCost(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyErr = err
}

// ApplyMonthlyCostCalls returns how many times ApplyMonthlyCost ran
func (s *InMemorySubscriptionStore) ApplyMonthlyCostCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyCalled
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Subscription with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) GetWithUser(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.GetByID(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}
	sub.User = owner
	return sub, nil
}

func (s *InMemorySubscriptionStore) ApplyMonthlyCost(ctx context.Context, id string, amount decimal.Decimal) (*subscription.Subscription, decimal.Decimal, error) {
	s.mu.Lock()
	s.applyCalled++
	failErr := s.applyErr
	s.mu.Unlock()

	if failErr != nil {
		return nil, decimal.Zero, failErr
	}

	var delta decimal.Decimal
	updated, err := s.Mutate(ctx, id, func(sub *subscription.Subscription) (*subscription.Subscription, error) {
		next := copySubscription(sub)
		delta = amount.Sub(sub.MonthlyCost)
		next.UpgradedCost = sub.UpgradedCost.Add(delta)
		next.MonthlyCost = amount
		next.UpdatedAt = time.Now().UTC()
		next.UpdatedBy = types.GetUserID(ctx)
		return next, nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return copySubscription(updated), delta, nil
}

func (s *InMemorySubscriptionStore) IncrementUpgradedCost(ctx context.Context, id string, amount decimal.Decimal) (*subscription.Subscription, error) {
	updated, err := s.Mutate(ctx, id, func(sub *subscription.Subscription) (*subscription.Subscription, error) {
		next := copySubscription(sub)
		next.UpgradedCost = sub.UpgradedCost.Add(amount)
		next.UpdatedAt = time.Now().UTC()
		next.UpdatedBy = types.GetUserID(ctx)
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return copySubscription(updated), nil
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	c := *sub
	c.User = nil
	return &c
}
