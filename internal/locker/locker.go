package locker

import (
	"context"

	"github.com/sitequote/billing/internal/config"
	ierr "github.com/sitequote/billing/internal/errors"
	"github.com/sitequote/billing/internal/logger"
	"github.com/sitequote/billing/internal/types"
)

// Locker serializes work on a key across callers. Lock blocks until the key
// is free, the wait timeout elapses or ctx is done. The returned unlock is
// idempotent.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NewLocker builds the backend selected by locker.backend
func NewLocker(cfg *config.Configuration, logger *logger.Logger) (Locker, error) {
	switch cfg.Locker.Backend {
	case types.LockerBackendRedis:
		return NewRedisLocker(cfg, logger)
	case types.LockerBackendMemory, "":
		return NewMemoryLocker(cfg.Locker.WaitTimeout), nil
	default:
		return nil, ierr.NewErrorf("unknown locker backend %q", cfg.Locker.Backend).
			WithHint("locker.backend must be memory or redis").
			Mark(ierr.ErrValidation)
	}
}

func lockNotAcquired(key string, err error) error {
	return ierr.WithError(err).
		WithHintf("Another operation is in progress for %s, retry shortly", key).
		WithReportableDetails(map[string]interface{}{
			"key": key,
		}).
		Mark(ierr.ErrLockNotAcquired)
}
