package testutil

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sitequote/billing/internal/cache"
	"github.com/sitequote/billing/internal/config"
	"github.com/sitequote/billing/internal/domain/billing"
	"github.com/sitequote/billing/internal/domain/quotation"
	"github.com/sitequote/billing/internal/domain/subscription"
	"github.com/sitequote/billing/internal/domain/tracking"
	"github.com/sitequote/billing/internal/domain/user"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/types"
	"github.com/sitequote/billing/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the in-memory repositories for testing
type Stores struct {
	UserRepo         *InMemoryUserStore
	SubscriptionRepo *InMemorySubscriptionStore
	QuotationRepos   map[types.QuotationType]*InMemoryQuotationStore
	TrackingRepo     *InMemoryTrackingStore
	NotificationRepo *InMemoryNotificationStore
}

// QuotationRepositories returns the quotation stores as the registry slice
// services are built from
func (s Stores) QuotationRepositories() []quotation.Repository {
	repos := make([]quotation.Repository, 0, len(s.QuotationRepos))
	for _, category := range types.QuotationTypes {
		repos = append(repos, s.QuotationRepos[category])
	}
	return repos
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	provider  *FakeBillingProvider
	publisher *InMemoryPublisherService
	db        *MockPostgresClient
	cache     cache.Cache
	logger    *logger.Logger
	config    *config.Configuration
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()
	s.config.Logging.Level = types.LogLevelError
	s.logger = logger.NewNopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.provider = NewFakeBillingProvider()
	s.publisher = NewInMemoryEventPublisher()
	s.db = NewMockPostgresClient()
	s.cache = cache.NewInMemoryCache(s.config)
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
	s.publisher.Clear()
}

func (s *BaseServiceTestSuite) setupStores() {
	users := NewInMemoryUserStore()
	s.stores = Stores{
		UserRepo:         users,
		SubscriptionRepo: NewInMemorySubscriptionStore(users),
		QuotationRepos:   NewInMemoryQuotationStores(),
		TrackingRepo:     NewInMemoryTrackingStore(),
		NotificationRepo: NewInMemoryNotificationStore(),
	}
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.UserRepo.Clear()
	s.stores.SubscriptionRepo.Clear()
	for _, store := range s.stores.QuotationRepos {
		store.Clear()
	}
	s.stores.TrackingRepo.Clear()
	s.stores.NotificationRepo.Clear()
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetProvider() *FakeBillingProvider {
	return s.provider
}

func (s *BaseServiceTestSuite) GetPublisher() *InMemoryPublisherService {
	return s.publisher
}

func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// SubscriptionFixture is a fully wired subscription: owner, quotation,
// provider subscription with one billed item, and the local record
type SubscriptionFixture struct {
	User                   *user.User
	Quotation              *quotation.Quotation
	Subscription           *subscription.Subscription
	ProviderSubscriptionID string
	CustomerID             string
	ItemID                 string
	PriceID                string
}

// SeedSubscription creates a subscription billed monthlyCost in the given
// category, with the provider price tagged for the local subscription
func (s *BaseServiceTestSuite) SeedSubscription(site quotation.Site, monthlyCost decimal.Decimal) *SubscriptionFixture {
	return s.seedSubscription(site, monthlyCost, true)
}

// SeedCheckoutSubscription is SeedSubscription with the provider price as
// checkout creates it: no metadata linking it to the local subscription
func (s *BaseServiceTestSuite) SeedCheckoutSubscription(site quotation.Site, monthlyCost decimal.Decimal) *SubscriptionFixture {
	return s.seedSubscription(site, monthlyCost, false)
}

func (s *BaseServiceTestSuite) seedSubscription(site quotation.Site, monthlyCost decimal.Decimal, tagged bool) *SubscriptionFixture {
	ctx := s.GetContext()

	owner := user.NewUser(ctx, "Jo Site", "jo@example.com")
	s.Require().NoError(s.stores.UserRepo.Create(ctx, owner))

	details := quotation.CostDetails{
		Items: []quotation.CostItem{
			{
				Description: "Standard unit",
				Quantity:    decimal.NewFromInt(1),
				UnitCost:    monthlyCost,
				Amount:      monthlyCost,
			},
		},
		Frequency: "weekly",
	}
	q := quotation.NewQuotation(ctx, owner.ID, site, details, monthlyCost)
	s.Require().NoError(s.stores.QuotationRepos[site.Category()].Create(ctx, q))

	fixture := &SubscriptionFixture{
		User:                   owner,
		Quotation:              q,
		ProviderSubscriptionID: "sub_" + types.GenerateUUID(),
		CustomerID:             "cus_" + types.GenerateUUID(),
		ItemID:                 "si_" + types.GenerateUUID(),
	}

	sub := subscription.NewSubscription(ctx, owner.ID, fixture.ProviderSubscriptionID, q.ID, site.Category(), monthlyCost)
	s.Require().NoError(s.stores.SubscriptionRepo.Create(ctx, sub))
	fixture.Subscription = sub

	amount, err := types.ToMinorUnits(monthlyCost)
	s.Require().NoError(err)
	price := billing.Price{
		UnitAmount: amount,
		Currency:   s.config.Stripe.Currency,
		Interval:   s.config.Stripe.Interval,
		ProductID:  s.config.Stripe.RecurringProductID,
		Active:     true,
	}
	if tagged {
		price.Metadata = map[string]string{billing.MetadataSubscriptionID: sub.ID}
	}
	fixture.PriceID = s.provider.AddPrice(price)
	s.provider.AddSubscription(fixture.ProviderSubscriptionID, fixture.CustomerID, fixture.ItemID, fixture.PriceID)

	return fixture
}

// AddTracking appends a status event to a subscription's history
func (s *BaseServiceTestSuite) AddTracking(subscriptionID, status string, at time.Time) *tracking.Tracking {
	t := tracking.NewTracking(s.GetContext(), subscriptionID, status, "")
	t.CreatedAt = at
	s.Require().NoError(s.stores.TrackingRepo.Create(s.GetContext(), t))
	return t
}
