package stripe

import (
	"context"
	"errors"
	"fmt"
	"testing"

	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		sentinel  error
	}{
		{
			name:      "rate limited",
			err:       &stripe.Error{HTTPStatusCode: 429, Code: stripe.ErrorCodeRateLimit, Msg: "slow down"},
			transient: true,
			sentinel:  ierr.ErrProviderTransient,
		},
		{
			name:      "server error",
			err:       &stripe.Error{HTTPStatusCode: 503, Msg: "unavailable"},
			transient: true,
			sentinel:  ierr.ErrProviderTransient,
		},
		{
			name:     "invalid request",
			err:      &stripe.Error{HTTPStatusCode: 400, Code: stripe.ErrorCodeResourceMissing, Msg: "No such price"},
			sentinel: ierr.ErrProvider,
		},
		{
			name:     "no upcoming invoice",
			err:      &stripe.Error{HTTPStatusCode: 404, Code: stripe.ErrorCodeInvoiceUpcomingNone},
			sentinel: ierr.ErrNoUpcomingInvoice,
		},
		{
			name:      "deadline exceeded",
			err:       fmt.Errorf("request: %w", context.DeadlineExceeded),
			transient: true,
			sentinel:  ierr.ErrProviderTransient,
		},
		{
			name:     "unknown failure",
			err:      errors.New("boom"),
			sentinel: ierr.ErrProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyError("prices.create", tt.err)
			assert.True(t, ierr.Is(err, tt.sentinel))
			assert.Equal(t, tt.transient, ierr.IsTransient(err))
		})
	}
}
