package stripe

import (
	"context"
	"time"

	"github.com/sitequote/billing/internal/config"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/sentry"
	"github.com/stripe/stripe-go/v82"
)

// Client handles Stripe API client setup and per-call deadlines
type Client struct {
	stripe  *stripe.Client
	timeout time.Duration
	logger  *logger.Logger
	sentry  *sentry.Service
}

// NewClient creates a new Stripe client from the configured secret key
func NewClient(cfg *config.Configuration, logger *logger.Logger, sentrySvc *sentry.Service) *Client {
	return &Client{
		stripe:  stripe.NewClient(cfg.Stripe.SecretKey, nil),
		timeout: cfg.Stripe.RequestTimeout,
		logger:  logger,
		sentry:  sentrySvc,
	}
}

// call runs fn under the configured request timeout inside a provider span
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	span, spanCtx := c.sentry.StartProviderSpan(ctx, operation, nil)
	if span != nil {
		defer span.Finish()
		ctx = spanCtx
	}

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		err = classifyError(operation, err)
		c.logger.Warnw("stripe call failed",
			"operation", operation,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return err
	}

	c.logger.Debugw("stripe call completed",
		"operation", operation,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
