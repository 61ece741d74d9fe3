package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/josh-kwaku/isp-billing/internal/billing"
	"github.com/josh-kwaku/isp-billing/internal/domain"
	"github.com/josh-kwaku/isp-billing/internal/logging"
	"github.com/robfig/cron/v3"
)

type anchorRunner interface {
	Run(ctx context.Context, opts RunOptions) (*domain.BillingRun, error)
}

// Scheduler triggers the recurring runs from a cron expression evaluated in
// the billing location.
type Scheduler struct {
	cron   *cron.Cron
	runner anchorRunner
	engine *billing.Engine
	spec   string
	now    func() time.Time
}

func NewScheduler(runner anchorRunner, engine *billing.Engine, spec string) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("NewScheduler: schedule %q: %w", spec, err)
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(engine.Location())),
		runner: runner,
		engine: engine,
		spec:   spec,
		now:    time.Now,
	}, nil
}

// Start runs the schedule until ctx is cancelled, then waits for an in-flight
// run to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	log := logging.FromContext(ctx)
	jobCtx := context.WithoutCancel(ctx)

	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunDue(jobCtx, s.now()); err != nil {
			log.Error("scheduled billing failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("Start: %w", err)
	}

	s.cron.Start()
	log.Info("billing scheduler started", "schedule", s.spec, "timezone", s.engine.Location().String())

	<-ctx.Done()
	log.Info("billing scheduler stopping")
	<-s.cron.Stop().Done()
	return nil
}

// RunDue runs every anchor whose billing day is the calendar day of day. On
// the last day of a short month that includes anchor 30.
func (s *Scheduler) RunDue(ctx context.Context, day time.Time) ([]*domain.BillingRun, error) {
	return s.RunDueWith(ctx, RunOptions{RunDate: day})
}

// RunDueWith is RunDue with the remaining run options applied to every
// anchor. Any Anchor in opts is ignored and a zero RunDate means now.
func (s *Scheduler) RunDueWith(ctx context.Context, opts RunOptions) ([]*domain.BillingRun, error) {
	log := logging.FromContext(ctx)

	if opts.RunDate.IsZero() {
		opts.RunDate = s.now()
	}

	anchors := s.engine.AnchorsDueOn(opts.RunDate)
	if len(anchors) == 0 {
		log.Debug("no billing anchors due", "date", s.engine.StartOfDay(opts.RunDate).Format(time.DateOnly))
		return nil, nil
	}

	var (
		runs []*domain.BillingRun
		errs []error
	)
	for _, anchor := range anchors {
		opts.Anchor = anchor
		run, err := s.runner.Run(ctx, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("anchor %d: %w", anchor.Day(), err))
		}
		if run != nil {
			runs = append(runs, run)
		}
	}
	return runs, errors.Join(errs...)
}
