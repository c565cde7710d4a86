package service

import (
	"context"

	"github.com/sitequote/billing/internal/api/dto"
	"github.com/sitequote/billing/internal/domain/quotation"
	"github.com/sitequote/billing/internal/domain/tracking"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sourcegraph/conc/pool"
)

type SubscriptionDetailService interface {
	// AssembleDetail returns the subscription with its owner, quotation and
	// tracking history
	AssembleDetail(ctx context.Context, subscriptionID string) (*dto.SubscriptionDetailResponse, error)
}

type subscriptionDetailService struct {
	ServiceParams
	resolver QuotationResolver
}

func NewSubscriptionDetailService(params ServiceParams, resolver QuotationResolver) SubscriptionDetailService {
	return &subscriptionDetailService{
		ServiceParams: params,
		resolver:      resolver,
	}
}

func (s *subscriptionDetailService) AssembleDetail(ctx context.Context, subscriptionID string) (*dto.SubscriptionDetailResponse, error) {
	if subscriptionID == "" {
		return nil, ierr.NewError("subscription_id is required").
			WithHint("Please provide a valid subscription ID").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.GetWithUser(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	var (
		q      *quotation.Quotation
		events []*tracking.Tracking
	)

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	p.Go(func(ctx context.Context) error {
		var err error
		q, err = s.resolver.Resolve(ctx, sub.QuotationID, sub.QuotationType)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		events, err = s.TrackingRepo.ListBySubscription(ctx, sub.ID)
		return err
	})

	if err := p.Wait(); err != nil {
		return nil, err
	}

	if events == nil {
		events = []*tracking.Tracking{}
	}

	return &dto.SubscriptionDetailResponse{
		Subscription: sub,
		Quotation:    q,
		Tracking:     events,
	}, nil
}
