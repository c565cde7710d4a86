package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/sitequote/billing/internal/domain/quotation"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/types"
)

// InMemoryQuotationStore implements quotation.Repository for one category
type InMemoryQuotationStore struct {
	*InMemoryStore[*quotation.Quotation]
	category types.QuotationType

	mu        sync.Mutex
	getCalls  int
	updateErr error
}

func NewInMemoryQuotationStore(category types.QuotationType) *InMemoryQuotationStore {
	return &InMemoryQuotationStore{
		InMemoryStore: NewInMemoryStore[*quotation.Quotation](),
		category:      category,
	}
}

// NewInMemoryQuotationStores returns one store per known category
func NewInMemoryQuotationStores() map[types.QuotationType]*InMemoryQuotationStore {
	stores := make(map[types.QuotationType]*InMemoryQuotationStore, len(types.QuotationTypes))
	for _, category := range types.QuotationTypes {
		stores[category] = NewInMemoryQuotationStore(category)
	}
	return stores
}

func (s *InMemoryQuotationStore) Category() types.QuotationType {
	return s.category
}

// GetCalls returns how many lookups reached the store
func (s *InMemoryQuotationStore) GetCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

// FailUpdateCostDetails makes every following UpdateCostDetails return err
func (s *InMemoryQuotationStore) FailUpdateCostDetails(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErr = err
}

func (s *InMemoryQuotationStore) Create(ctx context.Context, q *quotation.Quotation) error {
	if q.Site == nil || q.Site.Category() != s.category {
		return ierr.NewErrorf("quotation site does not belong to %s", s.category).
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, q.ID, copyQuotation(q))
}

func (s *InMemoryQuotationStore) Get(ctx context.Context, id string) (*quotation.Quotation, error) {
	s.mu.Lock()
	s.getCalls++
	s.mu.Unlock()

	q, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Quotation with ID %s was not found", id).
			WithReportableDetails(map[string]any{
				"quotation_type": s.category,
			}).
			Mark(ierr.ErrNotFound)
	}
	return copyQuotation(q), nil
}

func (s *InMemoryQuotationStore) UpdateCostDetails(ctx context.Context, id string, details quotation.CostDetails) error {
	s.mu.Lock()
	failErr := s.updateErr
	s.mu.Unlock()
	if failErr != nil {
		return failErr
	}

	_, err := s.Mutate(ctx, id, func(q *quotation.Quotation) (*quotation.Quotation, error) {
		next := copyQuotation(q)
		next.CostDetails = details
		next.UpdatedAt = time.Now().UTC()
		next.UpdatedBy = types.GetUserID(ctx)
		return next, nil
	})
	return err
}

func copyQuotation(q *quotation.Quotation) *quotation.Quotation {
	c := *q
	c.CostDetails.Items = append([]quotation.CostItem{}, q.CostDetails.Items...)
	return &c
}
