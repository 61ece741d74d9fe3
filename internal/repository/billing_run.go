package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/josh-kwaku/isp-billing/internal/domain"
)

type BillingRunRepository struct {
	db *sql.DB
}

func NewBillingRunRepository(db *sql.DB) *BillingRunRepository {
	return &BillingRunRepository{db: db}
}

func (r *BillingRunRepository) Create(ctx context.Context, run *domain.BillingRun) error {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("Create: marshal results: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO billing_runs (
			id, billing_anchor, run_date,
			total_services, processed, successful, failed, skipped,
			results, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.Anchor.Day(), dateParam(run.RunDate),
		run.Summary.TotalServices, run.Summary.Processed, run.Summary.Successful,
		run.Summary.Failed, run.Summary.Skipped,
		results, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Latest returns the most recent run recorded for the anchor.
func (r *BillingRunRepository) Latest(ctx context.Context, anchor domain.BillingAnchor) (*domain.BillingRun, error) {
	var (
		run     domain.BillingRun
		day     int
		results []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, billing_anchor, run_date,
			total_services, processed, successful, failed, skipped,
			results, started_at, completed_at
		FROM billing_runs
		WHERE billing_anchor = $1
		ORDER BY run_date DESC, completed_at DESC
		LIMIT 1`,
		anchor.Day(),
	).Scan(
		&run.ID, &day, &run.RunDate,
		&run.Summary.TotalServices, &run.Summary.Processed, &run.Summary.Successful,
		&run.Summary.Failed, &run.Summary.Skipped,
		&results, &run.StartedAt, &run.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Latest: anchor %d: %w", anchor, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Latest: %w", err)
	}

	if run.Anchor, err = domain.ParseBillingAnchor(day); err != nil {
		return nil, fmt.Errorf("Latest: %w", err)
	}
	if err := json.Unmarshal(results, &run.Results); err != nil {
		return nil, fmt.Errorf("Latest: unmarshal results: %w", err)
	}
	return &run, nil
}
