package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitequote/billing/internal/api/dto"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/service"
)

type SubscriptionHandler struct {
	detail      service.SubscriptionDetailService
	billingSync service.BillingSyncService
	serviceFee  service.ServiceFeeService
	log         *logger.Logger
}

func NewSubscriptionHandler(
	detail service.SubscriptionDetailService,
	billingSync service.BillingSyncService,
	serviceFee service.ServiceFeeService,
	log *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		detail:      detail,
		billingSync: billingSync,
		serviceFee:  serviceFee,
		log:         log,
	}
}

// GetSubscriptionDetail returns the subscription with its owner, quotation
// and tracking history
func (h *SubscriptionHandler) GetSubscriptionDetail(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("subscription ID is required").
			WithHint("Please provide a valid subscription ID").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.detail.AssembleDetail(c.Request.Context(), id)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Errorw("failed to assemble subscription detail",
			"subscription_id", id,
			"error", err,
		)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse("Subscription details", resp))
}

// UpdateCost revises the subscription's quotation and reprices its billing
func (h *SubscriptionHandler) UpdateCost(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("subscription ID is required").
			WithHint("Please provide a valid subscription ID").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.UpdateCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	q, err := h.billingSync.ReconcileCost(c.Request.Context(), id, req)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Errorw("failed to update subscription cost",
			"subscription_id", id,
			"error", err,
		)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse("Quotation updated", q))
}

// ChargeServiceFee adds a one-off fee to the subscription's next invoice
func (h *SubscriptionHandler) ChargeServiceFee(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("subscription ID is required").
			WithHint("Please provide a valid subscription ID").
			Mark(ierr.ErrValidation))
		return
	}

	var req dto.ServiceFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	receipt, err := h.serviceFee.ChargeServiceFee(c.Request.Context(), id, req)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Errorw("failed to charge service fee",
			"subscription_id", id,
			"error", err,
		)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse("Service fee added to upcoming invoice", receipt))
}
