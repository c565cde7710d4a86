package service

import (
	"context"

	"github.com/samber/lo"
	"github.com/sitequote/billing/internal/cache"
	"github.com/sitequote/billing/internal/domain/quotation"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/types"
)

// QuotationResolver finds a quotation from its id and the category tag
// carried by whoever references it
type QuotationResolver interface {
	Resolve(ctx context.Context, quotationID string, quotationType types.QuotationType) (*quotation.Quotation, error)

	// Repository returns the store of one category
	Repository(quotationType types.QuotationType) (quotation.Repository, error)

	// DeleteCache drops the cached copy of a quotation after it was written
	DeleteCache(ctx context.Context, quotationID string, quotationType types.QuotationType)
}

type quotationResolver struct {
	registry map[types.QuotationType]quotation.Repository
	cache    cache.Cache
	logger   *logger.Logger
}

// NewQuotationResolver builds the category registry. It fails unless every
// known category has exactly one repository. cache may be nil.
func NewQuotationResolver(repos []quotation.Repository, c cache.Cache, logger *logger.Logger) (QuotationResolver, error) {
	registry := make(map[types.QuotationType]quotation.Repository, len(repos))
	for _, repo := range repos {
		category := repo.Category()
		if err := category.Validate(); err != nil {
			return nil, err
		}
		if _, exists := registry[category]; exists {
			return nil, ierr.NewErrorf("quotation category %s registered twice", category).
				WithHint("Each quotation category must have exactly one store").
				Mark(ierr.ErrSystem)
		}
		registry[category] = repo
	}

	missing := lo.Filter(types.QuotationTypes, func(t types.QuotationType, _ int) bool {
		_, ok := registry[t]
		return !ok
	})
	if len(missing) > 0 {
		return nil, ierr.NewError("quotation registry is incomplete").
			WithHint("Each quotation category must have exactly one store").
			WithReportableDetails(map[string]any{
				"missing": missing,
			}).
			Mark(ierr.ErrSystem)
	}

	return &quotationResolver{
		registry: registry,
		cache:    c,
		logger:   logger,
	}, nil
}

func (r *quotationResolver) Repository(quotationType types.QuotationType) (quotation.Repository, error) {
	if err := quotationType.Validate(); err != nil {
		return nil, err
	}
	return r.registry[quotationType], nil
}

func (r *quotationResolver) Resolve(ctx context.Context, quotationID string, quotationType types.QuotationType) (*quotation.Quotation, error) {
	repo, err := r.Repository(quotationType)
	if err != nil {
		return nil, err
	}

	if quotationID == "" {
		return nil, ierr.NewError("quotation_id is required").
			WithHint("Please provide a valid quotation ID").
			Mark(ierr.ErrValidation)
	}

	key := cache.GenerateKey(cache.PrefixQuotation, quotationType, quotationID)
	if cached := r.GetCache(ctx, key); cached != nil {
		return cached, nil
	}

	q, err := repo.Get(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	q.Type = quotationType

	r.SetCache(ctx, key, q)
	return cloneQuotation(q), nil
}

func (r *quotationResolver) GetCache(ctx context.Context, key string) *quotation.Quotation {
	if r.cache == nil {
		return nil
	}
	if value, found := r.cache.Get(ctx, key); found {
		if q, ok := value.(*quotation.Quotation); ok {
			return cloneQuotation(q)
		}
	}
	return nil
}

func (r *quotationResolver) SetCache(ctx context.Context, key string, q *quotation.Quotation) {
	if r.cache == nil {
		return
	}
	r.cache.Set(ctx, key, cloneQuotation(q), 0)
}

func (r *quotationResolver) DeleteCache(ctx context.Context, quotationID string, quotationType types.QuotationType) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(ctx, cache.GenerateKey(cache.PrefixQuotation, quotationType, quotationID))
}

// cloneQuotation keeps cached documents isolated from callers that edit
// the cost breakdown they were handed
func cloneQuotation(q *quotation.Quotation) *quotation.Quotation {
	c := *q
	c.CostDetails.Items = append([]quotation.CostItem(nil), q.CostDetails.Items...)
	return &c
}
