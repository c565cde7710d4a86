package testutil

import (
	"context"
	"sync"

	"github.com/sitequote/billing/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil)

type txMarker struct{}

// MockPostgresClient runs transactional functions inline. The in-memory
// stores have no rollback, so tests assert on what ran rather than on
// atomicity.
type MockPostgresClient struct {
	mu      sync.Mutex
	txCount int
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient() *MockPostgresClient {
	return &MockPostgresClient{}
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// If we're already in a transaction, reuse it
	if _, ok := ctx.Value(txMarker{}).(bool); ok {
		return fn(ctx)
	}

	c.mu.Lock()
	c.txCount++
	c.mu.Unlock()

	return fn(context.WithValue(ctx, txMarker{}, true))
}

// TxCount returns the number of outermost transactions started
func (c *MockPostgresClient) TxCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txCount
}
