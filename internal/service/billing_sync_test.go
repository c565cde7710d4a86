package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sitequote/billing/internal/api/dto"
	"github.com/sitequote/billing/internal/domain/billing"
	"github.com/sitequote/billing/internal/domain/quotation"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/locker"
	"github.com/sitequote/billing/internal/testutil"
	"github.com/sitequote/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type BillingSyncServiceSuite struct {
	testutil.BaseServiceTestSuite
	billingSync BillingSyncService
	resolver    QuotationResolver
	fixture     *testutil.SubscriptionFixture
}

func TestBillingSyncService(t *testing.T) {
	suite.Run(t, new(BillingSyncServiceSuite))
}

func (s *BillingSyncServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupService(nil)
	s.fixture = s.SeedSubscription(quotation.ConstructionSite{
		ProjectName: "Tower B",
		Address:     "1 Main St",
		CrewSize:    40,
		Phase:       "framing",
	}, decimal.NewFromInt(500))
}

func (s *BillingSyncServiceSuite) setupService(l locker.Locker) {
	params := newTestServiceParams(&s.BaseServiceTestSuite, l)
	s.resolver = newTestResolver(&s.BaseServiceTestSuite)
	s.billingSync = NewBillingSyncService(params, s.resolver, NewChangeNotifier(params))
}

func (s *BillingSyncServiceSuite) costRequest(amount string) dto.UpdateCostRequest {
	total := decimal.RequireFromString(amount)
	return dto.UpdateCostRequest{
		UpdatedCost: total,
		CostDetails: quotation.CostDetails{
			Items: []quotation.CostItem{
				{
					Description: "Portable toilet",
					Quantity:    decimal.NewFromInt(1),
					UnitCost:    total,
					Amount:      total,
				},
			},
			Notes:     "revised",
			Frequency: "weekly",
		},
	}
}

func (s *BillingSyncServiceSuite) subscriptionCosts() (monthly, upgraded decimal.Decimal) {
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), s.fixture.Subscription.ID)
	s.Require().NoError(err)
	return sub.MonthlyCost, sub.UpgradedCost
}

// assertConsistent checks that exactly one active price is tagged for the
// subscription, that it is the bound one, and that it matches the local cost
func (s *BillingSyncServiceSuite) assertConsistent(expected string) {
	want := decimal.RequireFromString(expected)

	bound, ok := s.GetProvider().BoundPrice(s.fixture.ProviderSubscriptionID)
	s.Require().True(ok)
	s.True(bound.Active)

	wantMinor, err := types.ToMinorUnits(want)
	s.Require().NoError(err)
	s.Equal(wantMinor, bound.UnitAmount)

	active := s.GetProvider().ActivePricesTagged(s.fixture.Subscription.ID)
	s.Require().Len(active, 1)
	s.Equal(bound.ID, active[0].ID)

	monthly, _ := s.subscriptionCosts()
	s.True(monthly.Equal(want), "monthly cost %s, want %s", monthly, want)
}

func (s *BillingSyncServiceSuite) TestReconcileCostIncrease() {
	q, err := s.billingSync.ReconcileCost(s.GetContext(), s.fixture.Subscription.ID, s.costRequest("650"))
	s.Require().NoError(err)
	s.Equal(s.fixture.Quotation.ID, q.ID)
	s.Equal("revised", q.CostDetails.Notes)

	s.assertConsistent("650")

	old, ok := s.GetProvider().Price(s.fixture.PriceID)
	s.Require().True(ok)
	s.False(old.Active)

	_, upgraded := s.subscriptionCosts()
	s.True(upgraded.Equal(decimal.NewFromInt(650)))

	stored, err := s.GetStores().QuotationRepos[types.QuotationTypeConstruction].Get(s.GetContext(), s.fixture.Quotation.ID)
	s.Require().NoError(err)
	s.Equal("revised", stored.CostDetails.Notes)
	s.True(stored.TotalCost.Equal(decimal.NewFromInt(500)), "total cost is not rewritten by a revision")

	s.Equal(1, s.GetDB().TxCount())
}

func (s *BillingSyncServiceSuite) TestReconcileCostDecrease() {
	_, err := s.billingSync.ReconcileCost(s.GetContext(), s.fixture.Subscription.ID, s.costRequest("400"))
	s.Require().NoError(err)

	s.assertConsistent("400")

	_, upgraded := s.subscriptionCosts()
	s.True(upgraded.Equal(decimal.NewFromInt(400)))
}

func (s *BillingSyncServiceSuite) TestReconcileCostSameAmountSkipsPriceCreation() {
	_, err := s.billingSync.ReconcileCost(s.GetContext(), s.fixture.Subscription.ID, s.costRequest("500"))
	s.Require().NoError(err)

	s.Equal(0, s.GetProvider().Calls(testutil.OpCreatePrice))
	s.Equal(0, s.GetProvider().Calls(testutil.OpSwapSubscriptionItem))
	s.Equal(1, s.GetProvider().PriceCount())
	s.assertConsistent("500")

	_, upgraded := s.subscriptionCosts()
	s.True(upgraded.Equal(decimal.NewFromInt(500)))
}

func (s *BillingSyncServiceSuite) TestReconcileCostLedgerAcrossRevisions() {
	ctx := s.GetContext()
	subID := s.fixture.Subscription.ID

	_, err := s.billingSync.ReconcileCost(ctx, subID, s.costRequest("650"))
	s.Require().NoError(err)
	_, err = s.billingSync.ReconcileCost(ctx, subID, s.costRequest("400.50"))
	s.Require().NoError(err)
	_, err = s.billingSync.ReconcileCost(ctx, subID, s.costRequest("720"))
	s.Require().NoError(err)

	s.assertConsistent("720")
	s.Equal(4, s.GetProvider().PriceCount())

	_, upgraded := s.subscriptionCosts()
	s.True(upgraded.Equal(decimal.NewFromInt(720)))
}

func (s *BillingSyncServiceSuite) TestReconcileCostValidation() {
	testCases := []struct {
		name   string
		amount string
	}{
		{name: "zero", amount: "0"},
		{name: "negative", amount: "-10"},
		{name: "sub_cent", amount: "650.005"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.billingSync.ReconcileCost(s.GetContext(), s.fixture.Subscription.ID, s.costRequest(tc.amount))
			s.Error(err)
			s.True(ierr.IsValidation(err))
		})
	}

	s.Run("negative_line_item", func() {
		req := s.costRequest("650")
		req.CostDetails.Items[0].Quantity = decimal.NewFromInt(-1)
		_, err := s.billingSync.ReconcileCost(s.GetContext(), s.fixture.Subscription.ID, req)
		s.True(ierr.IsValidation(err))
	})

	s.Run("missing_subscription_id", func() {
		_, err := s.billingSync.ReconcileCost(s.GetContext(), "", s.costRequest("650"))
		s.True(ierr.IsValidation(err))
	})

	s.Equal(0, s.GetProvider().Calls(testutil.OpGetSubscription))
	monthly, _ := s.subscriptionCosts()
	s.True(monthly.Equal(decimal.NewFromInt(500)))
}

func (s *BillingSyncServiceSuite) TestReconcileCostSubscriptionNotFound() {
	_, err := s.billingSync.ReconcileCost(s.GetContext(), "subs_missing", s.costRequest("650"))
	s.Error(err)
	s.True(ierr.IsNotFound(err))
	s.Equal(0, s.GetProvider().Calls(testutil.OpGetSubscription))
}

func (s *BillingSyncServiceSuite) TestReconcileCostUnknownQuotationType() {
	sub := *s.fixture.Subscription
	sub.QuotationType = types.QuotationType("warehouse")
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub.ID, &sub))

	_, err := s.billingSync.ReconcileCost(s.GetContext(), sub.ID, s.costRequest("650"))
	s.Error(err)
	s.True(ierr.IsUnknownQuotationType(err))
	s.Equal(0, s.GetProvider().Calls(testutil.OpGetSubscription))
}

func (s *BillingSyncServiceSuite) TestReconcileCostQuotationNotFound() {
	store := s.GetStores().QuotationRepos[types.QuotationTypeConstruction]
	s.Require().NoError(store.Delete(s.GetContext(), s.fixture.Quotation.ID))

	_, err := s.billingSync.ReconcileCost(s.GetContext(), s.fixture.Subscription.ID, s.costRequest("650"))
	s.Error(err)
	s.True(ierr.IsNotFound(err))
	s.Equal(0, s.GetProvider().Calls(testutil.OpCreatePrice))
}

func (s *BillingSyncServiceSuite) TestReconcileCostProviderFailureBeforeChanges() {
	s.GetProvider().Fail(testutil.OpCreatePrice, ierr.NewError("stripe unavailable").
		Mark(ierr.ErrProviderTransient))

	_, err := s.billingSync.ReconcileCost(s.GetContext(), s.fixture.Subscription.ID, s.costRequest("650"))
	s.Error(err)
	s.True(ierr.IsTransient(err))
	s.Equal(0, s.GetDB().TxCount())

	s.assertConsistent("500")
}

func (s *BillingSyncServiceSuite) TestReconcileCostRecoversFromFailedSwap() {
	ctx := s.GetContext()
	subID := s.fixture.Subscription.ID

	s.GetProvider().Fail(testutil.OpSwapSubscriptionItem, ierr.NewError("connection reset").
		Mark(ierr.ErrProviderTransient))

	_, err := s.billingSync.ReconcileCost(ctx, subID, s.costRequest("650"))
	s.Error(err)
	s.True(ierr.IsTransient(err))

	monthly, _ := s.subscriptionCosts()
	s.True(monthly.Equal(decimal.NewFromInt(500)), "local record untouched until the provider is consistent")
	s.Equal(2, s.GetProvider().PriceCount())

	s.GetProvider().Fail(testutil.OpSwapSubscriptionItem, nil)

	_, err = s.billingSync.ReconcileCost(ctx, subID, s.costRequest("650"))
	s.Require().NoError(err)

	s.Equal(2, s.GetProvider().PriceCount(), "retry reuses the price created by the failed run")
	s.assertConsistent("650")

	_, upgraded := s.subscriptionCosts()
	s.True(upgraded.Equal(decimal.NewFromInt(650)))
}

func (s *BillingSyncServiceSuite) TestReconcileCostRecoversFromFailedRetire() {
	ctx := s.GetContext()
	subID := s.fixture.Subscription.ID

	s.GetProvider().Fail(testutil.OpDeactivatePrice, ierr.NewError("rate limited").
		Mark(ierr.ErrProviderTransient))

	_, err := s.billingSync.ReconcileCost(ctx, subID, s.costRequest("650"))
	s.Error(err)

	s.Len(s.GetProvider().ActivePricesTagged(subID), 2)

	s.GetProvider().Fail(testutil.OpDeactivatePrice, nil)

	_, err = s.billingSync.ReconcileCost(ctx, subID, s.costRequest("650"))
	s.Require().NoError(err)

	s.Equal(1, s.GetProvider().Calls(testutil.OpCreatePrice), "bound price already at target")
	s.assertConsistent("650")

	old, ok := s.GetProvider().Price(s.fixture.PriceID)
	s.Require().True(ok)
	s.False(old.Active)
}

func (s *BillingSyncServiceSuite) seedCheckoutFixture() {
	s.fixture = s.SeedCheckoutSubscription(quotation.FarmOrchardWinerySite{
		PropertyName: "Hill Orchard",
		Acreage:      40,
		CropType:     "apples",
		WorkerCount:  12,
	}, decimal.NewFromInt(500))
}

func (s *BillingSyncServiceSuite) TestReconcileCostRetiresCheckoutPrice() {
	s.seedCheckoutFixture()

	_, err := s.billingSync.ReconcileCost(s.GetContext(), s.fixture.Subscription.ID, s.costRequest("650"))
	s.Require().NoError(err)
	s.assertConsistent("650")

	checkout, _ := s.GetProvider().Price(s.fixture.PriceID)
	s.False(checkout.Active)

	bound, _ := s.GetProvider().BoundPrice(s.fixture.ProviderSubscriptionID)
	s.Equal(s.fixture.PriceID, bound.Metadata[billing.MetadataReplacesPriceID])
	s.Equal(s.fixture.PriceID, bound.Metadata[billing.MetadataOriginPriceID])
}

func (s *BillingSyncServiceSuite) TestReconcileCostRecoversFromFailedRetireOfCheckoutPrice() {
	s.seedCheckoutFixture()
	ctx := s.GetContext()
	subID := s.fixture.Subscription.ID

	s.GetProvider().Fail(testutil.OpDeactivatePrice, ierr.NewError("rate limited").
		Mark(ierr.ErrProviderTransient))

	_, err := s.billingSync.ReconcileCost(ctx, subID, s.costRequest("650"))
	s.Error(err)

	checkout, _ := s.GetProvider().Price(s.fixture.PriceID)
	s.True(checkout.Active)

	s.GetProvider().Fail(testutil.OpDeactivatePrice, nil)

	_, err = s.billingSync.ReconcileCost(ctx, subID, s.costRequest("650"))
	s.Require().NoError(err)

	s.Equal(1, s.GetProvider().Calls(testutil.OpCreatePrice), "bound price already at target")
	s.assertConsistent("650")

	checkout, _ = s.GetProvider().Price(s.fixture.PriceID)
	s.False(checkout.Active, "checkout price is retired once the retry converges")
}

func (s *BillingSyncServiceSuite) TestReconcileCostRetiresCheckoutPriceAfterLaterRevision() {
	s.seedCheckoutFixture()
	ctx := s.GetContext()
	subID := s.fixture.Subscription.ID

	s.GetProvider().Fail(testutil.OpDeactivatePrice, ierr.NewError("rate limited").
		Mark(ierr.ErrProviderTransient))
	_, err := s.billingSync.ReconcileCost(ctx, subID, s.costRequest("650"))
	s.Error(err)
	s.GetProvider().Fail(testutil.OpDeactivatePrice, nil)

	_, err = s.billingSync.ReconcileCost(ctx, subID, s.costRequest("700"))
	s.Require().NoError(err)
	s.assertConsistent("700")

	checkout, _ := s.GetProvider().Price(s.fixture.PriceID)
	s.False(checkout.Active)

	bound, _ := s.GetProvider().BoundPrice(s.fixture.ProviderSubscriptionID)
	s.Equal(s.fixture.PriceID, bound.Metadata[billing.MetadataOriginPriceID])
}

func (s *BillingSyncServiceSuite) TestReconcileCostRecoversFromFailedPersist() {
	ctx := s.GetContext()
	subID := s.fixture.Subscription.ID

	s.GetStores().SubscriptionRepo.FailApplyMonthlyCost(ierr.NewError("connection refused").
		Mark(ierr.ErrDatabase))

	_, err := s.billingSync.ReconcileCost(ctx, subID, s.costRequest("650"))
	s.Error(err)
	s.True(ierr.IsDatabase(err))
	s.Empty(s.GetPublisher().GetEvents())

	s.GetStores().SubscriptionRepo.FailApplyMonthlyCost(nil)

	_, err = s.billingSync.ReconcileCost(ctx, subID, s.costRequest("650"))
	s.Require().NoError(err)

	s.Equal(1, s.GetProvider().Calls(testutil.OpCreatePrice))
	s.assertConsistent("650")

	_, upgraded := s.subscriptionCosts()
	s.True(upgraded.Equal(decimal.NewFromInt(650)), "ledger moves once")
}

func (s *BillingSyncServiceSuite) TestReconcileCostRetiresStrayPrices() {
	subID := s.fixture.Subscription.ID

	orphan := s.GetProvider().AddPrice(billing.Price{
		UnitAmount: 61000,
		Currency:   "cad",
		Interval:   "month",
		ProductID:  s.GetConfig().Stripe.RecurringProductID,
		Active:     true,
		Metadata:   map[string]string{billing.MetadataSubscriptionID: subID},
	})
	other := s.GetProvider().AddPrice(billing.Price{
		UnitAmount: 30000,
		Currency:   "cad",
		Interval:   "month",
		ProductID:  s.GetConfig().Stripe.RecurringProductID,
		Active:     true,
		Metadata:   map[string]string{billing.MetadataSubscriptionID: "subs_other"},
	})

	_, err := s.billingSync.ReconcileCost(s.GetContext(), subID, s.costRequest("650"))
	s.Require().NoError(err)

	s.assertConsistent("650")

	p, _ := s.GetProvider().Price(orphan)
	s.False(p.Active)
	p, _ = s.GetProvider().Price(other)
	s.True(p.Active, "prices of other subscriptions are left alone")
}

func (s *BillingSyncServiceSuite) TestReconcileCostNotifies() {
	_, err := s.billingSync.ReconcileCost(s.GetContext(), s.fixture.Subscription.ID, s.costRequest("650"))
	s.Require().NoError(err)

	s.True(s.GetPublisher().HasEvent(types.EventUpdateQuote))

	notifications, err := s.GetStores().NotificationRepo.ListByUser(s.GetContext(), s.fixture.User.ID)
	s.Require().NoError(err)
	s.Require().Len(notifications, 1)
	s.Equal(types.NotificationTypeUpdateQuote, notifications[0].Type)
	s.Equal(s.fixture.Quotation.ID, notifications[0].QuoteID)
	s.Equal(types.QuotationTypeConstruction, notifications[0].QuoteType)
	s.False(notifications[0].StatusSeen)
}

func (s *BillingSyncServiceSuite) TestReconcileCostIgnoresNotifierFailure() {
	s.GetPublisher().FailPublish(ierr.NewError("broker down").Mark(ierr.ErrSystem))
	s.GetStores().NotificationRepo.FailCreate(ierr.NewError("insert failed").Mark(ierr.ErrDatabase))

	_, err := s.billingSync.ReconcileCost(s.GetContext(), s.fixture.Subscription.ID, s.costRequest("650"))
	s.NoError(err)
	s.assertConsistent("650")
}

func (s *BillingSyncServiceSuite) TestReconcileCostRefreshesCachedQuotation() {
	ctx := s.GetContext()

	before, err := s.resolver.Resolve(ctx, s.fixture.Quotation.ID, types.QuotationTypeConstruction)
	s.Require().NoError(err)
	s.Empty(before.CostDetails.Notes)

	_, err = s.billingSync.ReconcileCost(ctx, s.fixture.Subscription.ID, s.costRequest("650"))
	s.Require().NoError(err)

	after, err := s.resolver.Resolve(ctx, s.fixture.Quotation.ID, types.QuotationTypeConstruction)
	s.Require().NoError(err)
	s.Equal("revised", after.CostDetails.Notes)
}

// runConcurrentRevisions starts two revisions that both hold at the
// provider read until the other arrives or a short timeout passes. It
// returns the price id each one observed as bound.
func (s *BillingSyncServiceSuite) runConcurrentRevisions(amounts ...string) ([]string, []error) {
	var (
		mu       sync.Mutex
		observed []string
		arrived  int
		release  = make(chan struct{})
	)

	s.GetProvider().OnGetSubscription = func(ctx context.Context, sub *billing.Subscription) {
		mu.Lock()
		observed = append(observed, sub.Items[0].Price.ID)
		arrived++
		if arrived == len(amounts) {
			close(release)
		}
		mu.Unlock()

		select {
		case <-release:
		case <-time.After(300 * time.Millisecond):
		}
	}

	errs := make([]error, len(amounts))
	var wg sync.WaitGroup
	for i, amount := range amounts {
		wg.Add(1)
		go func(i int, amount string) {
			defer wg.Done()
			_, errs[i] = s.billingSync.ReconcileCost(s.GetContext(), s.fixture.Subscription.ID, s.costRequest(amount))
		}(i, amount)
	}
	wg.Wait()

	s.GetProvider().OnGetSubscription = nil
	return observed, errs
}

func (s *BillingSyncServiceSuite) TestConcurrentRevisionsAreSerialized() {
	observed, errs := s.runConcurrentRevisions("650", "700")

	for _, err := range errs {
		s.NoError(err)
	}
	s.Require().Len(observed, 2)
	s.NotEqual(observed[0], observed[1], "second revision sees the first one's price")

	bound, ok := s.GetProvider().BoundPrice(s.fixture.ProviderSubscriptionID)
	s.Require().True(ok)
	final := types.FromMinorUnits(bound.UnitAmount)
	s.assertConsistent(final.StringFixed(2))

	_, upgraded := s.subscriptionCosts()
	s.True(upgraded.Equal(final))
}

func (s *BillingSyncServiceSuite) TestConcurrentRevisionsInterleaveWithoutLock() {
	s.setupService(testutil.NoopLocker{})

	observed, _ := s.runConcurrentRevisions("650", "700")

	s.Require().Len(observed, 2)
	s.Equal(observed[0], observed[1], "both revisions act on the same starting price")
	s.Equal(s.fixture.PriceID, observed[0])
}
