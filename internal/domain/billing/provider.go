package billing

import (
	"context"
)

// Price metadata written on every price created for a subscription
const (
	// MetadataSubscriptionID names the local subscription the price was
	// created for
	MetadataSubscriptionID = "subscription_id"
	// MetadataReplacesPriceID names the price this one was created to replace
	MetadataReplacesPriceID = "replaces_price_id"
	// MetadataOriginPriceID names the untagged price the subscription was
	// first bound to, carried forward across revisions
	MetadataOriginPriceID = "origin_price_id"
)

// Provider is the port to the external billing provider. Amounts are integer
// minor units. Prices are immutable once created; only Active can change.
type Provider interface {
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	CreatePrice(ctx context.Context, in CreatePriceInput) (*Price, error)
	// SwapSubscriptionItemPrice rebinds a billed item without proration
	SwapSubscriptionItemPrice(ctx context.Context, itemID, priceID string) error
	DeactivatePrice(ctx context.Context, priceID string) error
	ListActivePrices(ctx context.Context, productID string) ([]*Price, error)
	// GetUpcomingInvoice fails with ErrNoUpcomingInvoice when the customer
	// has nothing to be billed next
	GetUpcomingInvoice(ctx context.Context, customerID, subscriptionID string) (*Invoice, error)
	CreateInvoiceItem(ctx context.Context, in CreateInvoiceItemInput) (*InvoiceItem, error)
}

type Subscription struct {
	ID         string
	CustomerID string
	Status     string
	Items      []SubscriptionItem
}

type SubscriptionItem struct {
	ID    string
	Price *Price
}

// BilledItem returns the single recurring item the quotation cost is bound to
func (s *Subscription) BilledItem() (*SubscriptionItem, bool) {
	if len(s.Items) == 0 {
		return nil, false
	}
	return &s.Items[0], true
}

type Price struct {
	ID         string
	UnitAmount int64
	Currency   string
	Interval   string
	ProductID  string
	Active     bool
	Metadata   map[string]string
}

type CreatePriceInput struct {
	UnitAmount     int64
	Currency       string
	Interval       string
	ProductID      string
	Metadata       map[string]string
	IdempotencyKey string
}

// Invoice is the customer's next invoice. ID is empty when the next invoice
// is a preview that does not exist yet; items then attach to the
// subscription and are pulled in when the invoice is finalized.
type Invoice struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	AmountDue      int64
	Currency       string
}

type CreateInvoiceItemInput struct {
	CustomerID     string
	InvoiceID      string
	SubscriptionID string
	ProductID      string
	UnitAmount     int64
	Currency       string
	Description    string
	Metadata       map[string]string
}

type InvoiceItem struct {
	ID          string
	InvoiceID   string
	Amount      int64
	Currency    string
	Description string
}
