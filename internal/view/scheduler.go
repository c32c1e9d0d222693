package view

import (
	"context"
	"errors"
	"time"

	"github.com/openclinic/patient-portal/pkg/logging"
)

const defaultPollInterval = 30 * time.Second

// Scheduler owns the refresh timer. There is exactly one timer handle: it is
// re-armed only after the current load (periodic or manual) completes, so a
// manual refresh supersedes the pending tick instead of racing it.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *logging.Logger
	manual   chan struct{}
}

// NewScheduler creates a scheduler over the engine.
func NewScheduler(engine *Engine, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		engine:   engine,
		interval: defaultPollInterval,
		logger:   logger,
		manual:   make(chan struct{}, 1),
	}
}

// WithInterval overrides the poll interval.
func (s *Scheduler) WithInterval(d time.Duration) *Scheduler {
	if d > 0 {
		s.interval = d
	}
	return s
}

// Refresh requests a manual refresh. Requests arriving while one is already
// queued collapse into it; only the latest matters.
func (s *Scheduler) Refresh() {
	select {
	case s.manual <- struct{}{}:
	default:
	}
}

// Run performs the initial load and then drives the poll loop until ctx is
// cancelled. On return no background work remains.
func (s *Scheduler) Run(ctx context.Context) {
	s.dispatch(ctx, true, "initial")

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.dispatch(ctx, false, "poll")
		case <-s.manual:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			s.dispatch(ctx, false, "manual")
		}
		// The interval restarts from the completion of whichever load ran
		// last, not from the original schedule.
		timer.Reset(s.interval)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, initial bool, trigger string) {
	err := s.engine.load(ctx, initial, trigger)
	switch {
	case err == nil:
	case errors.Is(err, ErrRefreshInFlight):
		s.logger.Debug("scheduler: refresh skipped, one already in flight", "trigger", trigger)
	default:
		s.logger.Warn("scheduler: refresh failed", "trigger", trigger, "error", err)
	}
}
