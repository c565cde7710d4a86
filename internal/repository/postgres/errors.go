package postgres

import (
	"database/sql"
	"errors"

	ierr "github.com/sitequote/billing/internal/errors"
)

func notFound(entity, id string) error {
	return ierr.NewErrorf("%s %s not found", entity, id).
		WithHintf("%s not found", entity).
		WithReportableDetails(map[string]any{
			"entity": entity,
			"id":     id,
		}).
		Mark(ierr.ErrNotFound)
}

// wrapQueryError maps sql.ErrNoRows to a not found error and everything else
// to a database error
func wrapQueryError(err error, entity, id, hint string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(entity, id)
	}
	return ierr.WithError(err).
		WithHint(hint).
		WithReportableDetails(map[string]any{
			"entity": entity,
			"id":     id,
		}).
		Mark(ierr.ErrDatabase)
}
