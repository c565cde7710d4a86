package testutil

import (
	"context"

	"github.com/sitequote/billing/internal/locker"
)

var _ locker.Locker = NoopLocker{}

// NoopLocker never blocks. Tests use it to show what the real lockers
// prevent.
type NoopLocker struct{}

func (NoopLocker) Lock(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}
