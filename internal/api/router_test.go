package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	v1 "github.com/sitequote/billing/internal/api/v1"
	"github.com/sitequote/billing/internal/domain/events"
	"github.com/sitequote/billing/internal/domain/quotation"
	"github.com/sitequote/billing/internal/locker"
	"github.com/sitequote/billing/internal/publisher"
	"github.com/sitequote/billing/internal/pubsub"
	"github.com/sitequote/billing/internal/pubsub/memory"
	"github.com/sitequote/billing/internal/service"
	"github.com/sitequote/billing/internal/testutil"
	"github.com/sitequote/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router  *gin.Engine
	pubSub  pubsub.PubSub
	fixture *testutil.SubscriptionFixture
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	s.pubSub = memory.NewPubSub(s.GetConfig(), s.GetLogger())
	eventPublisher := publisher.NewEventPublisher(s.pubSub, s.GetConfig(), s.GetLogger())

	stores := s.GetStores()
	params := service.NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		nil,
		s.GetCache(),
		locker.NewMemoryLocker(5*time.Second),
		stores.SubscriptionRepo,
		stores.UserRepo,
		stores.TrackingRepo,
		stores.NotificationRepo,
		s.GetProvider(),
		eventPublisher,
	)
	resolver, err := service.NewQuotationResolver(stores.QuotationRepositories(), s.GetCache(), s.GetLogger())
	s.Require().NoError(err)
	notifier := service.NewChangeNotifier(params)

	s.router = NewRouter(Handlers{
		Health: v1.NewHealthHandler(nil, s.GetLogger()),
		Subscription: v1.NewSubscriptionHandler(
			service.NewSubscriptionDetailService(params, resolver),
			service.NewBillingSyncService(params, resolver, notifier),
			service.NewServiceFeeService(params),
			s.GetLogger(),
		),
		Notification: v1.NewNotificationHandler(s.pubSub, s.GetConfig(), s.GetLogger()),
	}, s.GetConfig(), s.GetLogger())

	s.fixture = s.SeedSubscription(quotation.PersonalOrBusinessSite{
		BusinessName: "Corner Bakery",
		SiteKind:     "storefront",
		Headcount:    8,
	}, decimal.NewFromInt(300))
}

func (s *RouterSuite) TearDownTest() {
	s.Require().NoError(s.pubSub.Close())
	s.BaseServiceTestSuite.TearDownTest()
}

func (s *RouterSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(types.HeaderRequestID, "req-test")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder) envelope {
	var env envelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func (s *RouterSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *RouterSuite) TestRequestIDIsEchoed() {
	rec := s.do(http.MethodGet, "/health", nil)
	s.Equal("req-test", rec.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestGetSubscriptionDetail() {
	rec := s.do(http.MethodGet, "/v1/subscriptions/"+s.fixture.Subscription.ID+"/detail", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	env := s.decode(rec)
	s.True(env.Success)

	var data struct {
		Subscription struct {
			ID   string `json:"id"`
			User struct {
				Email string `json:"email"`
			} `json:"user"`
		} `json:"subscription"`
		Quotation struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"quotation"`
		Tracking []json.RawMessage `json:"tracking"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &data))
	s.Equal(s.fixture.Subscription.ID, data.Subscription.ID)
	s.Equal(s.fixture.User.Email, data.Subscription.User.Email)
	s.Equal(s.fixture.Quotation.ID, data.Quotation.ID)
	s.Equal(string(types.QuotationTypePersonalOrBusiness), data.Quotation.Type)
	s.NotNil(data.Tracking)
}

func (s *RouterSuite) TestGetSubscriptionDetailNotFound() {
	rec := s.do(http.MethodGet, "/v1/subscriptions/subs_missing/detail", nil)
	s.Equal(http.StatusNotFound, rec.Code)

	env := s.decode(rec)
	s.False(env.Success)
	s.NotEmpty(env.Error.Message)
}

func (s *RouterSuite) TestUpdateCost() {
	rec := s.do(http.MethodPut, "/v1/subscriptions/"+s.fixture.Subscription.ID+"/cost", map[string]any{
		"cost_details": map[string]any{
			"items": []map[string]any{
				{"description": "Standard unit", "quantity": "2", "unit_cost": "175", "amount": "350"},
			},
		},
		"updated_cost": "350",
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.True(s.decode(rec).Success)

	bound, ok := s.GetProvider().BoundPrice(s.fixture.ProviderSubscriptionID)
	s.Require().True(ok)
	s.Equal(int64(35000), bound.UnitAmount)
}

func (s *RouterSuite) TestUpdateCostRejectsNonPositiveAmount() {
	rec := s.do(http.MethodPut, "/v1/subscriptions/"+s.fixture.Subscription.ID+"/cost", map[string]any{
		"cost_details": map[string]any{"items": []map[string]any{}},
		"updated_cost": "-1",
	})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.False(s.decode(rec).Success)
	s.Equal(0, s.GetProvider().Calls(testutil.OpGetSubscription))
}

func (s *RouterSuite) TestUpdateCostMalformedBody() {
	req := httptest.NewRequest(http.MethodPut, "/v1/subscriptions/"+s.fixture.Subscription.ID+"/cost", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Invalid request format", s.decode(rec).Error.Message)
}

func (s *RouterSuite) TestChargeServiceFee() {
	s.GetProvider().SetUpcomingInvoice(s.fixture.CustomerID, s.fixture.ProviderSubscriptionID, "in_upcoming")

	rec := s.do(http.MethodPost, "/v1/subscriptions/"+s.fixture.Subscription.ID+"/service-fee", map[string]any{
		"upgrade_amount": "25.50",
		"description":    "Weekend cleaning",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var receipt struct {
		InvoiceID   string `json:"invoice_id"`
		Description string `json:"description"`
	}
	s.Require().NoError(json.Unmarshal(s.decode(rec).Data, &receipt))
	s.Equal("in_upcoming", receipt.InvoiceID)
	s.Equal("Service Fee - Weekend cleaning", receipt.Description)
}

func (s *RouterSuite) TestChargeServiceFeeWithoutUpcomingInvoice() {
	rec := s.do(http.MethodPost, "/v1/subscriptions/"+s.fixture.Subscription.ID+"/service-fee", map[string]any{
		"upgrade_amount": "25.50",
		"description":    "Weekend cleaning",
	})
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *RouterSuite) TestNotificationStream() {
	server := httptest.NewServer(s.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// the stream only sees events published after it subscribed, so keep
	// publishing until the client reads one
	eventPublisher := publisher.NewEventPublisher(s.pubSub, s.GetConfig(), s.GetLogger())
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.publishQuoteUpdate(ctx, eventPublisher, "someone_else")
				s.publishQuoteUpdate(ctx, eventPublisher, s.fixture.User.ID)
			}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/v1/notifications/stream?user_id="+s.fixture.User.ID, nil)
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal("text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var eventLine, dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event:") {
			eventLine = strings.TrimPrefix(line, "event:")
		}
		if strings.HasPrefix(line, "data:") {
			dataLine = strings.TrimPrefix(line, "data:")
			break
		}
	}
	cancel()

	s.Equal(types.EventUpdateQuote, strings.TrimSpace(eventLine))
	var event struct {
		UserID string `json:"user_id"`
	}
	s.Require().NoError(json.Unmarshal([]byte(dataLine), &event))
	s.Equal(s.fixture.User.ID, event.UserID)
}

func (s *RouterSuite) publishQuoteUpdate(ctx context.Context, pub publisher.EventPublisher, userID string) {
	event, err := events.NewEvent(types.EventUpdateQuote, userID, map[string]string{"quotation": "q"})
	if err != nil {
		return
	}
	_ = pub.Publish(ctx, event)
}
