package service

import (
	"context"

	"github.com/sitequote/billing/internal/api/dto"
	"github.com/sitequote/billing/internal/domain/events"
	"github.com/sitequote/billing/internal/domain/notification"
	"github.com/sitequote/billing/internal/domain/quotation"
	"github.com/sitequote/billing/internal/domain/subscription"
	"github.com/sitequote/billing/internal/types"
)

// ChangeNotifier tells the subscription owner that their quotation changed.
// Delivery is best effort: failures are logged and never reach the caller.
type ChangeNotifier interface {
	NotifyQuoteUpdated(ctx context.Context, sub *subscription.Subscription, q *quotation.Quotation)
}

type changeNotifier struct {
	ServiceParams
}

func NewChangeNotifier(params ServiceParams) ChangeNotifier {
	return &changeNotifier{
		ServiceParams: params,
	}
}

func (n *changeNotifier) NotifyQuoteUpdated(ctx context.Context, sub *subscription.Subscription, q *quotation.Quotation) {
	log := n.Logger.WithContext(ctx)

	record := notification.NewNotification(sub.UserID, sub.QuotationType, q.ID, types.NotificationTypeUpdateQuote)
	if err := n.NotificationRepo.Create(ctx, record); err != nil {
		log.Errorw("failed to persist quote update notification",
			"subscription_id", sub.ID,
			"quotation_id", q.ID,
			"error", err,
		)
	}

	event, err := events.NewEvent(types.EventUpdateQuote, sub.UserID, dto.QuoteUpdatedPayload{Quotation: q})
	if err != nil {
		log.Errorw("failed to build quote update event",
			"subscription_id", sub.ID,
			"error", err,
		)
		return
	}

	if err := n.EventPublisher.Publish(ctx, event); err != nil {
		log.Errorw("failed to publish quote update event",
			"subscription_id", sub.ID,
			"event_id", event.ID,
			"error", err,
		)
		return
	}

	log.Debugw("published quote update",
		"subscription_id", sub.ID,
		"event_id", event.ID,
	)
}
