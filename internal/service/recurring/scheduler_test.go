package recurring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/isp-billing/internal/billing"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	opts []RunOptions
	err  map[domain.BillingAnchor]error
	// unrecorded anchors complete but fail to persist.
	unrecorded map[domain.BillingAnchor]bool
}

func (r *recordingRunner) Run(_ context.Context, opts RunOptions) (*domain.BillingRun, error) {
	r.opts = append(r.opts, opts)
	if err := r.err[opts.Anchor]; err != nil {
		return nil, err
	}
	run := &domain.BillingRun{Anchor: opts.Anchor, RunDate: opts.RunDate}
	if r.unrecorded[opts.Anchor] {
		return run, domain.NewPersistenceError("Run: record run", errors.New("insert failed"))
	}
	return run, nil
}

func TestScheduler_RunDue(t *testing.T) {
	tests := []struct {
		name        string
		day         time.Time
		wantAnchors []domain.BillingAnchor
	}{
		{name: "first of month", day: day(2025, 3, 1), wantAnchors: []domain.BillingAnchor{domain.BillingAnchor1}},
		{name: "fifth", day: day(2025, 3, 5), wantAnchors: []domain.BillingAnchor{domain.BillingAnchor5}},
		{name: "last day of February", day: day(2025, 2, 28), wantAnchors: []domain.BillingAnchor{domain.BillingAnchor30}},
		{name: "leap year February 28", day: day(2024, 2, 28)},
		{name: "thirty first", day: day(2025, 1, 31)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := &recordingRunner{}
			s, err := NewScheduler(runner, billing.NewEngine(time.UTC), "0 2 * * *")
			require.NoError(t, err)

			runs, err := s.RunDue(context.Background(), tc.day)
			require.NoError(t, err)
			require.Len(t, runs, len(tc.wantAnchors))

			var got []domain.BillingAnchor
			for _, o := range runner.opts {
				got = append(got, o.Anchor)
				assert.Equal(t, tc.day, o.RunDate)
				assert.False(t, o.DryRun)
			}
			assert.Equal(t, tc.wantAnchors, got)
		})
	}
}

func TestScheduler_RunDueReportsErrors(t *testing.T) {
	runner := &recordingRunner{err: map[domain.BillingAnchor]error{domain.BillingAnchor25: domain.ErrRunInProgress}}
	s, err := NewScheduler(runner, billing.NewEngine(time.UTC), "0 2 * * *")
	require.NoError(t, err)

	runs, err := s.RunDue(context.Background(), day(2025, 12, 25))
	require.ErrorIs(t, err, domain.ErrRunInProgress)
	assert.Empty(t, runs)
}

func TestScheduler_RunDueKeepsUnrecordedRun(t *testing.T) {
	runner := &recordingRunner{unrecorded: map[domain.BillingAnchor]bool{domain.BillingAnchor1: true}}
	s, err := NewScheduler(runner, billing.NewEngine(time.UTC), "0 2 * * *")
	require.NoError(t, err)

	runs, err := s.RunDue(context.Background(), day(2025, 12, 1))
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorContains(t, err, "anchor 1")
	require.Len(t, runs, 1)
	assert.Equal(t, domain.BillingAnchor1, runs[0].Anchor)
}

func TestScheduler_RunDueWithCarriesOptions(t *testing.T) {
	runner := &recordingRunner{}
	s, err := NewScheduler(runner, billing.NewEngine(time.UTC), "0 2 * * *")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 2, 29, 2, 0, 0, 0, time.UTC) }

	customerID := uuid.New()
	runs, err := s.RunDueWith(context.Background(), RunOptions{
		Anchor:     domain.BillingAnchor5,
		CustomerID: &customerID,
		DryRun:     true,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	require.Len(t, runner.opts, 1)
	got := runner.opts[0]
	assert.Equal(t, domain.BillingAnchor30, got.Anchor)
	assert.True(t, got.DryRun)
	assert.Equal(t, &customerID, got.CustomerID)
	assert.Equal(t, s.now(), got.RunDate)
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler(&recordingRunner{}, billing.NewEngine(time.UTC), "every day at two")
	require.Error(t, err)
}

func TestScheduler_StartStopsOnCancel(t *testing.T) {
	s, err := NewScheduler(&recordingRunner{}, billing.NewEngine(time.UTC), "0 2 * * *")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

