// Package scheduler runs the nightly reminder reconciliation sweep.
package scheduler

import (
	"context"
	"sync"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// cronTickerInterval is the interval at which the scheduler checks the clock
const cronTickerInterval = time.Minute

// JobStatus represents the outcome of a sweep run
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// SweepRunner runs one reconciliation pass over all tenants
type SweepRunner interface {
	Run(ctx context.Context) (appinvoicing.SweepReport, error)
}

// SweepRecorder receives the outcome of each run
type SweepRecorder interface {
	RecordSweep(ctx context.Context, elapsed time.Duration, repaired int, err error)
}

// JobRun describes the last sweep execution
type JobRun struct {
	Status      JobStatus
	Trigger     string
	StartedAt   time.Time
	CompletedAt *time.Time
	Report      appinvoicing.SweepReport
	Error       string
}

// ReconciliationScheduler triggers the reconciliation sweep once a day
type ReconciliationScheduler struct {
	hour       int
	minute     int
	jobTimeout time.Duration
	tickEvery  time.Duration

	runner   SweepRunner
	recorder SweepRecorder
	logger   *zap.Logger
	now      func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	sweeping  bool

	lastRunDate string
	lastRun     *JobRun
	nextRunAt   time.Time
}

// NewReconciliationScheduler creates a scheduler from the scheduler config section.
// A dry-run config should be paired with a dry-run runner by the caller.
func NewReconciliationScheduler(
	cfg config.SchedulerConfig,
	runner SweepRunner,
	recorder SweepRecorder,
	logger *zap.Logger,
) (*ReconciliationScheduler, error) {
	hour, minute, err := ParseCronSchedule(cfg.ReconcileSchedule)
	if err != nil {
		return nil, err
	}

	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	return &ReconciliationScheduler{
		hour:       hour,
		minute:     minute,
		jobTimeout: timeout,
		tickEvery:  cronTickerInterval,
		runner:     runner,
		recorder:   recorder,
		logger:     logger.Named("reconciliation_scheduler"),
		now:        time.Now,
	}, nil
}

// Start starts the cron loop
func (s *ReconciliationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.nextRunAt = nextRunAfter(s.now(), s.hour, s.minute)
	next := s.nextRunAt
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.cronLoop(ctx)

	s.logger.Info("Reconciliation scheduler started",
		zap.Int("cron_hour", s.hour),
		zap.Int("cron_minute", s.minute),
		zap.Time("next_run_at", next),
	)
	return nil
}

// Stop stops the cron loop and waits for a running sweep to finish
func (s *ReconciliationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reconciliation scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reconciliation scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *ReconciliationScheduler) cronLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.shouldRun(s.now()) {
				_, _ = s.run(ctx, "cron")
			}
		}
	}
}

// shouldRun reports whether now is the scheduled minute of a day not yet run
func (s *ReconciliationScheduler) shouldRun(now time.Time) bool {
	if now.Hour() != s.hour || now.Minute() != s.minute {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	today := now.Format("2006-01-02")
	if s.lastRunDate == today {
		return false
	}
	s.lastRunDate = today
	return true
}

// Trigger runs the sweep immediately. It fails with ErrSweepInProgress when a
// sweep is already running.
func (s *ReconciliationScheduler) Trigger(ctx context.Context) (appinvoicing.SweepReport, error) {
	return s.run(ctx, "manual")
}

func (s *ReconciliationScheduler) run(ctx context.Context, trigger string) (appinvoicing.SweepReport, error) {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		s.logger.Warn("Skipping reconciliation, previous sweep still running", zap.String("trigger", trigger))
		return appinvoicing.SweepReport{}, ErrSweepInProgress
	}
	s.sweeping = true
	job := &JobRun{Status: JobStatusRunning, Trigger: trigger, StartedAt: s.now()}
	s.lastRun = job
	s.mu.Unlock()

	s.logger.Info("Reconciliation sweep triggered", zap.String("trigger", trigger))

	jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	report, err := s.runner.Run(jobCtx)
	elapsed := time.Since(start)

	if s.recorder != nil {
		s.recorder.RecordSweep(ctx, elapsed, report.Repaired, err)
	}

	s.mu.Lock()
	completed := s.now()
	job.CompletedAt = &completed
	job.Report = report
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = JobStatusSuccess
	}
	s.sweeping = false
	s.nextRunAt = nextRunAfter(completed, s.hour, s.minute)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Reconciliation sweep failed",
			zap.String("trigger", trigger),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return report, err
	}

	s.logger.Info("Reconciliation sweep finished",
		zap.String("trigger", trigger),
		zap.Duration("elapsed", elapsed),
		zap.Int("scanned", report.Scanned),
		zap.Int("repaired", report.Repaired))
	return report, nil
}

// LastRun returns a copy of the most recent run, or nil before the first run
func (s *ReconciliationScheduler) LastRun() *JobRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return nil
	}
	run := *s.lastRun
	return &run
}

// NextRunAt returns the next scheduled run time
func (s *ReconciliationScheduler) NextRunAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}
