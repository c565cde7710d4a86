package service

import (
	"context"

	"github.com/sitequote/billing/internal/api/dto"
	"github.com/sitequote/billing/internal/domain/billing"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/types"
)

// ServiceFeeDescriptionPrefix starts the description of every service fee
// invoice item
const ServiceFeeDescriptionPrefix = "Service Fee - "

type ServiceFeeService interface {
	// ChargeServiceFee adds a one-off charge to the customer's next invoice
	// and records it in the subscription's upgraded cost. Calls are not
	// deduplicated.
	ChargeServiceFee(ctx context.Context, subscriptionID string, req dto.ServiceFeeRequest) (*dto.ServiceFeeReceipt, error)
}

type serviceFeeService struct {
	ServiceParams
}

func NewServiceFeeService(params ServiceParams) ServiceFeeService {
	return &serviceFeeService{
		ServiceParams: params,
	}
}

func (s *serviceFeeService) ChargeServiceFee(ctx context.Context, subscriptionID string, req dto.ServiceFeeRequest) (*dto.ServiceFeeReceipt, error) {
	if subscriptionID == "" {
		return nil, ierr.NewError("subscription_id is required").
			WithHint("Please provide a valid subscription ID").
			Mark(ierr.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	amount, err := types.ValidateChargeAmount(req.UpgradeAmount)
	if err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	providerSub, err := s.BillingProvider.GetSubscription(ctx, sub.ProviderSubscriptionID)
	if err != nil {
		return nil, err
	}

	invoice, err := s.BillingProvider.GetUpcomingInvoice(ctx, providerSub.CustomerID, providerSub.ID)
	if err != nil {
		return nil, err
	}

	item, err := s.BillingProvider.CreateInvoiceItem(ctx, billing.CreateInvoiceItemInput{
		CustomerID:     providerSub.CustomerID,
		InvoiceID:      invoice.ID,
		SubscriptionID: providerSub.ID,
		ProductID:      s.Config.Stripe.ServiceFeeProductID,
		UnitAmount:     amount,
		Currency:       types.NormalizeCurrency(s.Config.Stripe.Currency),
		Description:    ServiceFeeDescriptionPrefix + req.Description,
		Metadata: map[string]string{
			billing.MetadataSubscriptionID: sub.ID,
		},
	})
	if err != nil {
		return nil, err
	}

	log := s.Logger.WithContext(ctx)
	log.Infow("created service fee invoice item",
		"subscription_id", sub.ID,
		"invoice_id", invoice.ID,
		"invoice_item_id", item.ID,
		"amount", amount,
	)

	updated, err := s.SubRepo.IncrementUpgradedCost(ctx, sub.ID, req.UpgradeAmount)
	if err != nil {
		log.Errorw("service fee charged but upgraded cost not recorded",
			"partial_state", true,
			"subscription_id", sub.ID,
			"invoice_item_id", item.ID,
			"error", err,
		)
		s.Sentry.CapturePartialState(ctx, err, map[string]string{
			"stage":           "increment_upgraded_cost",
			"subscription_id": sub.ID,
			"invoice_item_id": item.ID,
		})
		return nil, ierr.WithError(err).
			WithHint("The fee was added to the invoice but the subscription total was not updated").
			WithReportableDetails(map[string]any{
				"partial_state":   true,
				"subscription_id": sub.ID,
				"invoice_item_id": item.ID,
			}).
			Error()
	}

	return &dto.ServiceFeeReceipt{
		SubscriptionID: sub.ID,
		InvoiceID:      invoice.ID,
		InvoiceItemID:  item.ID,
		Amount:         req.UpgradeAmount,
		Description:    item.Description,
		UpgradedCost:   updated.UpgradedCost,
	}, nil
}
