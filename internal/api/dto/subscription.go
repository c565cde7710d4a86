package dto

import (
	"github.com/shopspring/decimal"
	"github.com/sitequote/billing/internal/domain/quotation"
	"github.com/sitequote/billing/internal/domain/subscription"
	"github.com/sitequote/billing/internal/domain/tracking"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/types"
	"github.com/sitequote/billing/internal/validator"
)

// UpdateCostRequest revises a subscription's quotation cost
type UpdateCostRequest struct {
	CostDetails quotation.CostDetails `json:"cost_details"`
	UpdatedCost decimal.Decimal       `json:"updated_cost" validate:"required"`
}

func (r *UpdateCostRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if _, err := types.ValidateChargeAmount(r.UpdatedCost); err != nil {
		return ierr.WithError(err).
			WithHint("Updated cost must be a positive amount with at most two decimals").
			WithReportableDetails(map[string]any{
				"updated_cost": r.UpdatedCost.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	return r.CostDetails.Validate()
}

// ServiceFeeRequest appends a one-off charge to the next invoice
type ServiceFeeRequest struct {
	UpgradeAmount decimal.Decimal `json:"upgrade_amount" validate:"required"`
	Description   string          `json:"description" validate:"required,max=500"`
}

func (r *ServiceFeeRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if _, err := types.ValidateChargeAmount(r.UpgradeAmount); err != nil {
		return ierr.WithError(err).
			WithHint("Service fee must be a positive amount with at most two decimals").
			WithReportableDetails(map[string]any{
				"upgrade_amount": r.UpgradeAmount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

// ServiceFeeReceipt is the outcome of a successful service fee charge
type ServiceFeeReceipt struct {
	SubscriptionID string          `json:"subscription_id"`
	InvoiceID      string          `json:"invoice_id,omitempty"`
	InvoiceItemID  string          `json:"invoice_item_id"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	UpgradedCost   decimal.Decimal `json:"upgraded_cost"`
}

// SubscriptionDetailResponse is a subscription with everything an admin
// needs on one page
type SubscriptionDetailResponse struct {
	Subscription *subscription.Subscription `json:"subscription"`
	Quotation    *quotation.Quotation       `json:"quotation"`
	Tracking     []*tracking.Tracking       `json:"tracking"`
}

// QuoteUpdatedPayload is the body of the update_quote broadcast
type QuoteUpdatedPayload struct {
	Quotation *quotation.Quotation `json:"quotation"`
}
