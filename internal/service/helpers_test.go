package service

import (
	"time"

	"github.com/sitequote/billing/internal/locker"
	"github.com/sitequote/billing/internal/testutil"
)

// newTestServiceParams wires the in-memory stores and fakes of the base
// suite into service params
func newTestServiceParams(s *testutil.BaseServiceTestSuite, l locker.Locker) ServiceParams {
	if l == nil {
		l = locker.NewMemoryLocker(5 * time.Second)
	}

	params := NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		nil,
		s.GetCache(),
		l,
		s.GetStores().SubscriptionRepo,
		s.GetStores().UserRepo,
		s.GetStores().TrackingRepo,
		s.GetStores().NotificationRepo,
		s.GetProvider(),
		s.GetPublisher(),
	)
	return params
}

// newTestResolver builds a resolver over the base suite's quotation stores
func newTestResolver(s *testutil.BaseServiceTestSuite) QuotationResolver {
	resolver, err := NewQuotationResolver(s.GetStores().QuotationRepositories(), s.GetCache(), s.GetLogger())
	s.Require().NoError(err)
	return resolver
}
