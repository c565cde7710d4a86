package v1

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitequote/billing/internal/config"
	"github.com/sitequote/billing/internal/domain/events"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/pubsub"
)

// NotificationHandler streams outbound events to connected admin clients
type NotificationHandler struct {
	subscriber pubsub.Subscriber
	topic      string
	heartbeat  time.Duration
	log        *logger.Logger
}

func NewNotificationHandler(subscriber pubsub.Subscriber, cfg *config.Configuration, log *logger.Logger) *NotificationHandler {
	heartbeat := cfg.Notification.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &NotificationHandler{
		subscriber: subscriber,
		topic:      cfg.Notification.Topic,
		heartbeat:  heartbeat,
		log:        log,
	}
}

// Stream holds a server-sent events connection open and forwards every
// event published while the client is connected. An optional user_id query
// parameter narrows the stream to one subscription owner.
func (h *NotificationHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Query("user_id")

	messages, err := h.subscriber.Subscribe(ctx, h.topic)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Notification stream is unavailable").
			Mark(ierr.ErrSystem))
		return
	}

	log := h.log.WithContext(ctx)
	log.Debugw("notification stream opened", "user_id", userID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			c.SSEvent("ping", "")
			return true
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			msg.Ack()

			var event events.Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				log.Errorw("dropping malformed event", "message_uuid", msg.UUID, "error", err)
				return true
			}
			if userID != "" && event.UserID != userID {
				return true
			}

			c.SSEvent(event.EventName, event)
			return true
		}
	})

	log.Debugw("notification stream closed", "user_id", userID)
}
