package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

type scanner interface {
	Scan(dest ...any) error
}

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// dateParam sends the calendar date of t as written in t's own location, so a
// DATE column never shifts with the session timezone.
func dateParam(t time.Time) string {
	return t.Format(time.DateOnly)
}

func nullDateParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dateParam(*t)
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
