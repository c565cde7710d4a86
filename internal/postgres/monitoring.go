package postgres

import (
	"context"
)

// startSpan opens a Sentry span for a database operation when monitoring is
// wired. The returned finish func is always safe to call.
func (db *DB) startSpan(ctx context.Context, operation string) (context.Context, func()) {
	if db.sentry == nil {
		return ctx, func() {}
	}

	span, spanCtx := db.sentry.StartDBSpan(ctx, operation, map[string]interface{}{
		"operation": operation,
	})
	if span == nil {
		return ctx, func() {}
	}
	return spanCtx, span.Finish
}
