package service

import (
	"context"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sitequote/billing/internal/api/dto"
	"github.com/sitequote/billing/internal/domain/billing"
	"github.com/sitequote/billing/internal/domain/quotation"
	"github.com/sitequote/billing/internal/domain/subscription"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/idempotency"
	"github.com/sitequote/billing/internal/types"
)

// Stages of a cost revision, reported with partial failures
const (
	stageSwapPrice    = "swap_price"
	stageRetirePrice  = "retire_price"
	stageSweepPrices  = "sweep_prices"
	stagePersistLocal = "persist_local"
)

// BillingSyncService keeps a subscription's recurring provider price in
// step with its quotation cost
type BillingSyncService interface {
	// ReconcileCost moves the subscription to req.UpdatedCost. Provider
	// changes happen first and local records are written only after the
	// provider is consistent. Re-running with the same amount after a
	// failure converges.
	ReconcileCost(ctx context.Context, subscriptionID string, req dto.UpdateCostRequest) (*quotation.Quotation, error)
}

type billingSyncService struct {
	ServiceParams
	resolver QuotationResolver
	notifier ChangeNotifier
}

func NewBillingSyncService(params ServiceParams, resolver QuotationResolver, notifier ChangeNotifier) BillingSyncService {
	return &billingSyncService{
		ServiceParams: params,
		resolver:      resolver,
		notifier:      notifier,
	}
}

func (s *billingSyncService) ReconcileCost(ctx context.Context, subscriptionID string, req dto.UpdateCostRequest) (*quotation.Quotation, error) {
	if subscriptionID == "" {
		return nil, ierr.NewError("subscription_id is required").
			WithHint("Please provide a valid subscription ID").
			Mark(ierr.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	targetAmount, err := types.ValidateChargeAmount(req.UpdatedCost)
	if err != nil {
		return nil, err
	}

	unlock, err := s.Locker.Lock(ctx, reconcileLockKey(subscriptionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	q, err := s.resolver.Resolve(ctx, sub.QuotationID, sub.QuotationType)
	if err != nil {
		return nil, err
	}

	providerSub, err := s.BillingProvider.GetSubscription(ctx, sub.ProviderSubscriptionID)
	if err != nil {
		return nil, err
	}
	item, ok := providerSub.BilledItem()
	if !ok || item.Price == nil {
		return nil, ierr.NewError("provider subscription has no billed item").
			WithHint("The billing subscription is not set up for recurring charges").
			WithReportableDetails(map[string]any{
				"subscription_id":          sub.ID,
				"provider_subscription_id": sub.ProviderSubscriptionID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	previous := item.Price

	log := s.Logger.WithContext(ctx).With(
		"subscription_id", sub.ID,
		"provider_subscription_id", sub.ProviderSubscriptionID,
		"previous_price_id", previous.ID,
		"target_amount", targetAmount,
	)

	target := previous
	if !previous.Active || previous.UnitAmount != targetAmount {
		target, err = s.BillingProvider.CreatePrice(ctx, billing.CreatePriceInput{
			UnitAmount: targetAmount,
			Currency:   lo.CoalesceOrEmpty(previous.Currency, s.Config.Stripe.Currency),
			Interval:   lo.CoalesceOrEmpty(previous.Interval, s.Config.Stripe.Interval),
			ProductID:  lo.CoalesceOrEmpty(previous.ProductID, s.Config.Stripe.RecurringProductID),
			Metadata:   lineageMetadata(sub.ID, previous),
			IdempotencyKey: s.Idempotency.GenerateKey(idempotency.ScopePriceRevision, map[string]interface{}{
				"subscription_id":          sub.ID,
				"provider_subscription_id": sub.ProviderSubscriptionID,
				"previous_price_id":        previous.ID,
				"unit_amount":              targetAmount,
			}),
		})
		if err != nil {
			return nil, err
		}
		log.Infow("created replacement price", "price_id", target.ID)
	} else {
		log.Infow("bound price already at target amount, skipping creation")
	}

	if target.ID != previous.ID {
		if err := s.BillingProvider.SwapSubscriptionItemPrice(ctx, item.ID, target.ID); err != nil {
			return nil, s.partialState(ctx, sub, target, stageSwapPrice, err)
		}
		log.Infow("rebound subscription item", "item_id", item.ID, "price_id", target.ID)

		if previous.Active {
			if err := s.BillingProvider.DeactivatePrice(ctx, previous.ID); err != nil {
				return nil, s.partialState(ctx, sub, target, stageRetirePrice, err)
			}
		}
	}

	if err := s.retireStrayPrices(ctx, sub, target); err != nil {
		return nil, s.partialState(ctx, sub, target, stageSweepPrices, err)
	}

	repo, err := s.resolver.Repository(sub.QuotationType)
	if err != nil {
		return nil, err
	}

	var updated *subscription.Subscription
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := repo.UpdateCostDetails(ctx, q.ID, req.CostDetails); err != nil {
			return err
		}

		var delta decimal.Decimal
		updated, delta, err = s.SubRepo.ApplyMonthlyCost(ctx, sub.ID, req.UpdatedCost)
		if err != nil {
			return err
		}
		log.Infow("applied monthly cost", "delta", delta.String())
		return nil
	})
	if err != nil {
		return nil, s.partialState(ctx, sub, target, stagePersistLocal, err)
	}
	s.resolver.DeleteCache(ctx, q.ID, sub.QuotationType)

	q.CostDetails = req.CostDetails
	s.notifier.NotifyQuoteUpdated(ctx, updated, q)

	return q, nil
}

// lineageMetadata tags a replacement price with the subscription and the
// prices it supersedes. Prices bound at checkout carry no subscription tag,
// so they are only reachable through this lineage.
func lineageMetadata(subscriptionID string, previous *billing.Price) map[string]string {
	metadata := map[string]string{
		billing.MetadataSubscriptionID:  subscriptionID,
		billing.MetadataReplacesPriceID: previous.ID,
	}

	origin := previous.Metadata[billing.MetadataOriginPriceID]
	if previous.Metadata[billing.MetadataSubscriptionID] != subscriptionID {
		origin = previous.ID
	}
	if origin != "" {
		metadata[billing.MetadataOriginPriceID] = origin
	}
	return metadata
}

// supersededBy reports whether p is an earlier price of the subscription now
// billed at bound
func supersededBy(p, bound *billing.Price, subscriptionID string) bool {
	if p.ID == bound.ID {
		return false
	}
	if p.Metadata[billing.MetadataSubscriptionID] == subscriptionID {
		return true
	}
	return p.ID == bound.Metadata[billing.MetadataReplacesPriceID] ||
		p.ID == bound.Metadata[billing.MetadataOriginPriceID]
}

// retireStrayPrices deactivates every active price on the product that the
// bound price supersedes: prices tagged for this subscription and the
// untagged prices named in the bound price's lineage
func (s *billingSyncService) retireStrayPrices(ctx context.Context, sub *subscription.Subscription, bound *billing.Price) error {
	productID := lo.CoalesceOrEmpty(bound.ProductID, s.Config.Stripe.RecurringProductID)
	active, err := s.BillingProvider.ListActivePrices(ctx, productID)
	if err != nil {
		return err
	}

	stray := lo.Filter(active, func(p *billing.Price, _ int) bool {
		return supersededBy(p, bound, sub.ID)
	})
	for _, p := range stray {
		if err := s.BillingProvider.DeactivatePrice(ctx, p.ID); err != nil {
			return err
		}
		s.Logger.WithContext(ctx).Infow("retired stray price",
			"subscription_id", sub.ID,
			"price_id", p.ID,
		)
	}
	return nil
}

// partialState records that the provider was changed but the revision did
// not finish. The returned error keeps the original classification.
func (s *billingSyncService) partialState(ctx context.Context, sub *subscription.Subscription, bound *billing.Price, stage string, err error) error {
	details := map[string]any{
		"partial_state":            true,
		"stage":                    stage,
		"subscription_id":          sub.ID,
		"provider_subscription_id": sub.ProviderSubscriptionID,
		"price_id":                 bound.ID,
	}

	s.Logger.WithContext(ctx).Errorw("cost revision stopped after provider changes",
		"partial_state", true,
		"stage", stage,
		"subscription_id", sub.ID,
		"provider_subscription_id", sub.ProviderSubscriptionID,
		"price_id", bound.ID,
		"error", err,
	)
	s.Sentry.CapturePartialState(ctx, err, map[string]string{
		"stage":           stage,
		"subscription_id": sub.ID,
	})

	return ierr.WithError(err).
		WithHint("Billing was partially updated, retry the same change to complete it").
		WithReportableDetails(details).
		Error()
}

func reconcileLockKey(subscriptionID string) string {
	return "reconcile:" + subscriptionID
}
