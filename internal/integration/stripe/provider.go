package stripe

import (
	"context"

	"github.com/samber/lo"
	"github.com/sitequote/billing/internal/domain/billing"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/stripe/stripe-go/v82"
)

// Provider implements billing.Provider on the Stripe API
type Provider struct {
	client *Client
}

func NewProvider(client *Client) billing.Provider {
	return &Provider{client: client}
}

func (p *Provider) GetSubscription(ctx context.Context, id string) (*billing.Subscription, error) {
	var sub *stripe.Subscription
	err := p.client.call(ctx, "subscriptions.retrieve", func(ctx context.Context) error {
		var err error
		sub, err = p.client.stripe.V1Subscriptions.Retrieve(ctx, id, &stripe.SubscriptionRetrieveParams{})
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &billing.Subscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		result.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			result.Items = append(result.Items, billing.SubscriptionItem{
				ID:    item.ID,
				Price: toPrice(item.Price),
			})
		}
	}
	return result, nil
}

func (p *Provider) CreatePrice(ctx context.Context, in billing.CreatePriceInput) (*billing.Price, error) {
	params := &stripe.PriceCreateParams{
		Currency:   stripe.String(in.Currency),
		UnitAmount: stripe.Int64(in.UnitAmount),
		Recurring: &stripe.PriceCreateRecurringParams{
			Interval: stripe.String(in.Interval),
		},
		Product: stripe.String(in.ProductID),
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	var price *stripe.Price
	err := p.client.call(ctx, "prices.create", func(ctx context.Context) error {
		var err error
		price, err = p.client.stripe.V1Prices.Create(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toPrice(price), nil
}

func (p *Provider) SwapSubscriptionItemPrice(ctx context.Context, itemID, priceID string) error {
	params := &stripe.SubscriptionItemUpdateParams{
		Price:             stripe.String(priceID),
		ProrationBehavior: stripe.String("none"),
	}
	return p.client.call(ctx, "subscription_items.update", func(ctx context.Context) error {
		_, err := p.client.stripe.V1SubscriptionItems.Update(ctx, itemID, params)
		return err
	})
}

func (p *Provider) DeactivatePrice(ctx context.Context, priceID string) error {
	params := &stripe.PriceUpdateParams{
		Active: stripe.Bool(false),
	}
	return p.client.call(ctx, "prices.update", func(ctx context.Context) error {
		_, err := p.client.stripe.V1Prices.Update(ctx, priceID, params)
		return err
	})
}

func (p *Provider) ListActivePrices(ctx context.Context, productID string) ([]*billing.Price, error) {
	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}

	var prices []*billing.Price
	err := p.client.call(ctx, "prices.list", func(ctx context.Context) error {
		for price, err := range p.client.stripe.V1Prices.List(ctx, params) {
			if err != nil {
				return err
			}
			prices = append(prices, toPrice(price))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prices, nil
}

// GetUpcomingInvoice returns the subscription's open draft invoice when one
// exists, otherwise the preview of the next invoice
func (p *Provider) GetUpcomingInvoice(ctx context.Context, customerID, subscriptionID string) (*billing.Invoice, error) {
	listParams := &stripe.InvoiceListParams{
		Customer:     stripe.String(customerID),
		Subscription: stripe.String(subscriptionID),
		Status:       stripe.String(string(stripe.InvoiceStatusDraft)),
	}

	var draft *stripe.Invoice
	err := p.client.call(ctx, "invoices.list", func(ctx context.Context) error {
		for inv, err := range p.client.stripe.V1Invoices.List(ctx, listParams) {
			if err != nil {
				return err
			}
			draft = inv
			break
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if draft != nil {
		return toInvoice(draft, customerID, subscriptionID), nil
	}

	var preview *stripe.Invoice
	err = p.client.call(ctx, "invoices.create_preview", func(ctx context.Context) error {
		var err error
		preview, err = p.client.stripe.V1Invoices.CreatePreview(ctx, &stripe.InvoiceCreatePreviewParams{
			Customer:     stripe.String(customerID),
			Subscription: stripe.String(subscriptionID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if preview == nil {
		return nil, ierr.NewError("no upcoming invoice").
			WithHint("The customer has no upcoming invoice to add the charge to").
			Mark(ierr.ErrNoUpcomingInvoice)
	}

	invoice := toInvoice(preview, customerID, subscriptionID)
	// previews are not addressable
	invoice.ID = ""
	return invoice, nil
}

func (p *Provider) CreateInvoiceItem(ctx context.Context, in billing.CreateInvoiceItemInput) (*billing.InvoiceItem, error) {
	params := &stripe.InvoiceItemCreateParams{
		Customer: stripe.String(in.CustomerID),
		PriceData: &stripe.InvoiceItemCreatePriceDataParams{
			Currency:   stripe.String(in.Currency),
			Product:    stripe.String(in.ProductID),
			UnitAmount: stripe.Int64(in.UnitAmount),
		},
		Quantity:    stripe.Int64(1),
		Description: stripe.String(in.Description),
	}
	if in.InvoiceID != "" {
		params.Invoice = stripe.String(in.InvoiceID)
	} else {
		params.Subscription = stripe.String(in.SubscriptionID)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	var item *stripe.InvoiceItem
	err := p.client.call(ctx, "invoice_items.create", func(ctx context.Context) error {
		var err error
		item, err = p.client.stripe.V1InvoiceItems.Create(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &billing.InvoiceItem{
		ID:          item.ID,
		InvoiceID:   in.InvoiceID,
		Amount:      item.Amount,
		Currency:    string(item.Currency),
		Description: item.Description,
	}
	if item.Invoice != nil {
		result.InvoiceID = item.Invoice.ID
	}
	return result, nil
}

func toPrice(price *stripe.Price) *billing.Price {
	if price == nil {
		return nil
	}

	result := &billing.Price{
		ID:         price.ID,
		UnitAmount: price.UnitAmount,
		Currency:   string(price.Currency),
		Active:     price.Active,
		Metadata:   lo.Assign(map[string]string{}, price.Metadata),
	}
	if price.Recurring != nil {
		result.Interval = string(price.Recurring.Interval)
	}
	if price.Product != nil {
		result.ProductID = price.Product.ID
	}
	return result
}

func toInvoice(inv *stripe.Invoice, customerID, subscriptionID string) *billing.Invoice {
	return &billing.Invoice{
		ID:             inv.ID,
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		AmountDue:      inv.AmountDue,
		Currency:       string(inv.Currency),
	}
}
