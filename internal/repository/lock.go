package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// TryAdvisoryXactLock takes a transaction-scoped advisory lock on key without
// waiting. The lock is released when tx commits or rolls back.
func TryAdvisoryXactLock(ctx context.Context, tx *sql.Tx, key string) (bool, error) {
	var ok bool
	err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, key).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("TryAdvisoryXactLock: %w", err)
	}
	return ok, nil
}

// AdvisoryLocker hands out run-scoped advisory locks. Each lock pins one pooled
// connection inside an open transaction until it is released.
type AdvisoryLocker struct {
	db *sql.DB
}

func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

// TryLock reports ok=false without waiting when another session holds key.
// The returned release must be called once the guarded work is done.
func (l *AdvisoryLocker) TryLock(ctx context.Context, key string) (release func() error, ok bool, err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("TryLock: begin tx: %w", err)
	}

	ok, err = TryAdvisoryXactLock(ctx, tx, key)
	if err != nil || !ok {
		tx.Rollback()
		if err != nil {
			return nil, false, fmt.Errorf("TryLock: %w", err)
		}
		return nil, false, nil
	}

	return tx.Commit, true, nil
}
