package service

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sitequote/billing/internal/domain/quotation"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/testutil"
	"github.com/sitequote/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type ChangeNotifierSuite struct {
	testutil.BaseServiceTestSuite
	notifier ChangeNotifier
	fixture  *testutil.SubscriptionFixture
}

func TestChangeNotifier(t *testing.T) {
	suite.Run(t, new(ChangeNotifierSuite))
}

func (s *ChangeNotifierSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.notifier = NewChangeNotifier(newTestServiceParams(&s.BaseServiceTestSuite, nil))
	s.fixture = s.SeedSubscription(quotation.RecreationalSite{
		SiteName:   "Lake Park",
		Season:     "summer",
		Facilities: []string{"beach"},
	}, decimal.NewFromInt(250))
}

func (s *ChangeNotifierSuite) TestNotifyQuoteUpdated() {
	s.notifier.NotifyQuoteUpdated(s.GetContext(), s.fixture.Subscription, s.fixture.Quotation)

	records, err := s.GetStores().NotificationRepo.ListByUser(s.GetContext(), s.fixture.User.ID)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(types.NotificationTypeUpdateQuote, records[0].Type)
	s.Equal(types.QuotationTypeRecreationalSite, records[0].QuoteType)
	s.Equal(s.fixture.Quotation.ID, records[0].QuoteID)
	s.False(records[0].StatusSeen)

	published := s.GetPublisher().GetEvents()
	s.Require().Len(published, 1)
	s.Equal(types.EventUpdateQuote, published[0].EventName)
	s.Equal(s.fixture.User.ID, published[0].UserID)

	var payload struct {
		Quotation struct {
			ID string `json:"id"`
		} `json:"quotation"`
	}
	s.Require().NoError(json.Unmarshal(published[0].Payload, &payload))
	s.Equal(s.fixture.Quotation.ID, payload.Quotation.ID)
}

func (s *ChangeNotifierSuite) TestPublishesWhenPersistFails() {
	s.GetStores().NotificationRepo.FailCreate(ierr.NewError("insert failed").Mark(ierr.ErrDatabase))

	s.NotPanics(func() {
		s.notifier.NotifyQuoteUpdated(s.GetContext(), s.fixture.Subscription, s.fixture.Quotation)
	})
	s.True(s.GetPublisher().HasEvent(types.EventUpdateQuote))
}

func (s *ChangeNotifierSuite) TestSwallowsPublishFailure() {
	s.GetPublisher().FailPublish(ierr.NewError("broker unavailable").Mark(ierr.ErrSystem))

	s.NotPanics(func() {
		s.notifier.NotifyQuoteUpdated(s.GetContext(), s.fixture.Subscription, s.fixture.Quotation)
	})

	records, err := s.GetStores().NotificationRepo.ListByUser(s.GetContext(), s.fixture.User.ID)
	s.Require().NoError(err)
	s.Len(records, 1)
	s.Empty(s.GetPublisher().GetEvents())
}
