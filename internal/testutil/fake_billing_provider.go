package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/sitequote/billing/internal/domain/billing"
	ierr "github.com/sitequote/billing/internal/errors"
)

// Operation names accepted by FakeBillingProvider.Fail and Calls
const (
	OpGetSubscription      = "GetSubscription"
	OpCreatePrice          = "CreatePrice"
	OpSwapSubscriptionItem = "SwapSubscriptionItemPrice"
	OpDeactivatePrice      = "DeactivatePrice"
	OpListActivePrices     = "ListActivePrices"
	OpGetUpcomingInvoice   = "GetUpcomingInvoice"
	OpCreateInvoiceItem    = "CreateInvoiceItem"
)

var _ billing.Provider = (*FakeBillingProvider)(nil)

type fakeSubscription struct {
	id         string
	customerID string
	status     string
	itemID     string
	priceID    string
}

// FakeBillingProvider is an in-memory billing provider. Prices are immutable
// except for Active, and CreatePrice honours idempotency keys the way the
// real provider does.
type FakeBillingProvider struct {
	mu            sync.Mutex
	seq           int
	subscriptions map[string]*fakeSubscription
	prices        map[string]*billing.Price
	priceOrder    []string
	idempotency   map[string]string
	invoices      map[string]*billing.Invoice
	invoiceItems  []*billing.InvoiceItem
	failures      map[string]error
	calls         map[string]int

	// OnGetSubscription runs after a subscription snapshot is taken and
	// before it is returned. Tests use it to hold callers at a barrier.
	OnGetSubscription func(ctx context.Context, sub *billing.Subscription)
}

func NewFakeBillingProvider() *FakeBillingProvider {
	return &FakeBillingProvider{
		subscriptions: make(map[string]*fakeSubscription),
		prices:        make(map[string]*billing.Price),
		idempotency:   make(map[string]string),
		invoices:      make(map[string]*billing.Invoice),
		failures:      make(map[string]error),
		calls:         make(map[string]int),
	}
}

// AddPrice seeds a price and returns its id
func (f *FakeBillingProvider) AddPrice(p billing.Price) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p.ID == "" {
		p.ID = f.nextID("price")
	}
	p.Metadata = lo.Assign(map[string]string{}, p.Metadata)
	f.prices[p.ID] = &p
	f.priceOrder = append(f.priceOrder, p.ID)
	return p.ID
}

// AddSubscription seeds a provider subscription with one billed item
func (f *FakeBillingProvider) AddSubscription(id, customerID, itemID, priceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subscriptions[id] = &fakeSubscription{
		id:         id,
		customerID: customerID,
		status:     "active",
		itemID:     itemID,
		priceID:    priceID,
	}
}

// SetUpcomingInvoice gives a customer a next invoice. An empty invoiceID
// models a preview that does not exist yet.
func (f *FakeBillingProvider) SetUpcomingInvoice(customerID, subscriptionID, invoiceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.invoices[customerID] = &billing.Invoice{
		ID:             invoiceID,
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		Currency:       "cad",
	}
}

// Fail makes every following call of op return err. Pass nil to recover.
func (f *FakeBillingProvider) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns how many times op was invoked, failed calls included
func (f *FakeBillingProvider) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Price returns a snapshot of a stored price
func (f *FakeBillingProvider) Price(id string) (*billing.Price, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.prices[id]
	if !ok {
		return nil, false
	}
	return copyPrice(p), true
}

// PriceCount returns the number of prices ever created or seeded
func (f *FakeBillingProvider) PriceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.priceOrder)
}

// BoundPrice returns the price currently bound to the subscription's item
func (f *FakeBillingProvider) BoundPrice(subscriptionID string) (*billing.Price, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, ok := f.subscriptions[subscriptionID]
	if !ok {
		return nil, false
	}
	p, ok := f.prices[sub.priceID]
	if !ok {
		return nil, false
	}
	return copyPrice(p), true
}

// ActivePricesTagged returns the active prices whose metadata names the
// given local subscription id
func (f *FakeBillingProvider) ActivePricesTagged(localSubscriptionID string) []*billing.Price {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]*billing.Price, 0)
	for _, id := range f.priceOrder {
		p := f.prices[id]
		if p.Active && p.Metadata[billing.MetadataSubscriptionID] == localSubscriptionID {
			result = append(result, copyPrice(p))
		}
	}
	return result
}

// InvoiceItems returns every invoice item created so far
func (f *FakeBillingProvider) InvoiceItems() []*billing.InvoiceItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]*billing.InvoiceItem, len(f.invoiceItems))
	copy(result, f.invoiceItems)
	return result
}

func (f *FakeBillingProvider) GetSubscription(ctx context.Context, id string) (*billing.Subscription, error) {
	f.mu.Lock()
	if err := f.enter(OpGetSubscription); err != nil {
		f.mu.Unlock()
		return nil, err
	}

	sub, ok := f.subscriptions[id]
	if !ok {
		f.mu.Unlock()
		return nil, ierr.NewErrorf("no such subscription: %s", id).
			WithHint("Billing provider rejected the request").
			Mark(ierr.ErrProvider)
	}

	snapshot := &billing.Subscription{
		ID:         sub.id,
		CustomerID: sub.customerID,
		Status:     sub.status,
		Items: []billing.SubscriptionItem{
			{ID: sub.itemID, Price: copyPrice(f.prices[sub.priceID])},
		},
	}
	hook := f.OnGetSubscription
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, snapshot)
	}
	return snapshot, nil
}

func (f *FakeBillingProvider) CreatePrice(ctx context.Context, in billing.CreatePriceInput) (*billing.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.enter(OpCreatePrice); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		if id, ok := f.idempotency[in.IdempotencyKey]; ok {
			return copyPrice(f.prices[id]), nil
		}
	}

	p := &billing.Price{
		ID:         f.nextID("price"),
		UnitAmount: in.UnitAmount,
		Currency:   in.Currency,
		Interval:   in.Interval,
		ProductID:  in.ProductID,
		Active:     true,
		Metadata:   lo.Assign(map[string]string{}, in.Metadata),
	}
	f.prices[p.ID] = p
	f.priceOrder = append(f.priceOrder, p.ID)
	if in.IdempotencyKey != "" {
		f.idempotency[in.IdempotencyKey] = p.ID
	}
	return copyPrice(p), nil
}

func (f *FakeBillingProvider) SwapSubscriptionItemPrice(ctx context.Context, itemID, priceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.enter(OpSwapSubscriptionItem); err != nil {
		return err
	}

	p, ok := f.prices[priceID]
	if !ok || !p.Active {
		return ierr.NewErrorf("price %s is not usable", priceID).
			WithHint("Billing provider rejected the request").
			Mark(ierr.ErrProvider)
	}

	for _, sub := range f.subscriptions {
		if sub.itemID == itemID {
			sub.priceID = priceID
			return nil
		}
	}
	return ierr.NewErrorf("no such subscription item: %s", itemID).
		WithHint("Billing provider rejected the request").
		Mark(ierr.ErrProvider)
}

func (f *FakeBillingProvider) DeactivatePrice(ctx context.Context, priceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.enter(OpDeactivatePrice); err != nil {
		return err
	}

	p, ok := f.prices[priceID]
	if !ok {
		return ierr.NewErrorf("no such price: %s", priceID).
			WithHint("Billing provider rejected the request").
			Mark(ierr.ErrProvider)
	}
	p.Active = false
	return nil
}

func (f *FakeBillingProvider) ListActivePrices(ctx context.Context, productID string) ([]*billing.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.enter(OpListActivePrices); err != nil {
		return nil, err
	}

	result := make([]*billing.Price, 0)
	for _, id := range f.priceOrder {
		p := f.prices[id]
		if p.Active && p.ProductID == productID {
			result = append(result, copyPrice(p))
		}
	}
	return result, nil
}

func (f *FakeBillingProvider) GetUpcomingInvoice(ctx context.Context, customerID, subscriptionID string) (*billing.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.enter(OpGetUpcomingInvoice); err != nil {
		return nil, err
	}

	inv, ok := f.invoices[customerID]
	if !ok {
		return nil, ierr.NewErrorf("customer %s has no upcoming invoice", customerID).
			WithHint("There is no upcoming invoice to add the charge to").
			Mark(ierr.ErrNoUpcomingInvoice)
	}
	c := *inv
	return &c, nil
}

func (f *FakeBillingProvider) CreateInvoiceItem(ctx context.Context, in billing.CreateInvoiceItemInput) (*billing.InvoiceItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.enter(OpCreateInvoiceItem); err != nil {
		return nil, err
	}

	if in.InvoiceID == "" && in.SubscriptionID == "" {
		return nil, ierr.NewError("invoice item needs an invoice or a subscription").
			Mark(ierr.ErrProvider)
	}

	item := &billing.InvoiceItem{
		ID:          f.nextID("ii"),
		InvoiceID:   in.InvoiceID,
		Amount:      in.UnitAmount,
		Currency:    in.Currency,
		Description: in.Description,
	}
	f.invoiceItems = append(f.invoiceItems, item)
	return item, nil
}

// enter records a call and returns the injected failure, if any.
// Callers hold f.mu.
func (f *FakeBillingProvider) enter(op string) error {
	f.calls[op]++
	return f.failures[op]
}

func (f *FakeBillingProvider) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_fake_%d", prefix, f.seq)
}

func copyPrice(p *billing.Price) *billing.Price {
	if p == nil {
		return nil
	}
	c := *p
	c.Metadata = lo.Assign(map[string]string{}, p.Metadata)
	return &c
}
