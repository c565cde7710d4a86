package stripe

import (
	"context"
	"errors"
	"net"
	"net/http"

	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/stripe/stripe-go/v82"
)

// classifyError marks a Stripe failure as transient (rate limits, 5xx,
// timeouts, connection failures) or permanent
func classifyError(operation string, err error) error {
	details := map[string]any{
		"operation": operation,
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		details["status"] = stripeErr.HTTPStatusCode
		details["code"] = string(stripeErr.Code)
		details["request_id"] = stripeErr.RequestID

		if stripeErr.Code == stripe.ErrorCodeInvoiceUpcomingNone {
			return ierr.WithError(err).
				WithHint("The customer has no upcoming invoice to add the charge to").
				WithReportableDetails(details).
				Mark(ierr.ErrNoUpcomingInvoice)
		}

		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return ierr.WithError(err).
				WithHint("Billing provider is temporarily unavailable, retry shortly").
				WithReportableDetails(details).
				Mark(ierr.ErrProviderTransient)
		}

		return ierr.WithError(err).
			WithHintf("Billing provider rejected the request: %s", stripeErr.Msg).
			WithReportableDetails(details).
			Mark(ierr.ErrProvider)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return ierr.WithError(err).
			WithHint("Billing provider did not respond in time, retry shortly").
			WithReportableDetails(details).
			Mark(ierr.ErrProviderTransient)
	}

	return ierr.WithError(err).
		WithHint("Billing provider request failed").
		WithReportableDetails(details).
		Mark(ierr.ErrProvider)
}
