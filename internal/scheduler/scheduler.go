// Package scheduler drives the monitoring jobs: a single ticker loop
// dispatches due jobs onto their own goroutines, with at most one invocation
// of a given job in flight at any time.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dungeun/e-market-monitor/internal/config"
	"github.com/dungeun/e-market-monitor/internal/domain"
	"github.com/dungeun/e-market-monitor/internal/notify"
	"github.com/dungeun/e-market-monitor/internal/store"
	"github.com/dungeun/e-market-monitor/pkg/logger"
)

const statusKey = "cron:status"

// Job is a scheduled unit of work. Critical jobs escalate failures to a
// critical alert in addition to the failure log.
type Job struct {
	Name     string
	Interval time.Duration
	Critical bool
	Task     func(ctx context.Context) error
}

// jobState carries the runtime state the scheduler owns. lastRun is touched
// only on the dispatch goroutine; running is shared with the completion
// goroutine and therefore atomic.
type jobState struct {
	job     Job
	lastRun time.Time
	running atomic.Bool
}

type Scheduler struct {
	jobs     []*jobState
	store    store.Store
	notifier *notify.Notifier
	logger   *logger.Logger
	cfg      config.SchedulerConfig

	stopOnce sync.Once
	stopCh   chan struct{}
	draining atomic.Bool
	inFlight atomic.Int64
}

// New builds a scheduler over a fixed job set; jobs cannot be added or removed
// once the scheduler exists.
func New(cfg config.SchedulerConfig, s store.Store, notifier *notify.Notifier, log *logger.Logger, jobs ...Job) (*Scheduler, error) {
	if len(jobs) == 0 {
		return nil, domain.ErrNoJobs
	}

	seen := make(map[string]struct{}, len(jobs))
	states := make([]*jobState, 0, len(jobs))
	for _, job := range jobs {
		if _, dup := seen[job.Name]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateJob, job.Name)
		}
		seen[job.Name] = struct{}{}
		states = append(states, &jobState{job: job})
	}

	return &Scheduler{
		jobs:     states,
		store:    s,
		notifier: notifier,
		logger:   log,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}, nil
}

// Run blocks on the tick loop until the context is cancelled or Shutdown is
// called.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info(ctx, "scheduler started", map[string]interface{}{
		"jobs": len(s.jobs),
		"tick": s.cfg.Tick.String(),
	})

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.dispatch(ctx, now)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, now time.Time) {
	if s.draining.Load() {
		return
	}
	for _, js := range s.jobs {
		if js.running.Load() {
			continue
		}
		if now.Sub(js.lastRun) < js.job.Interval {
			continue
		}
		// lastRun advances before the task runs so a slow task cannot cause
		// immediate re-entry the moment it settles.
		js.lastRun = now
		js.running.Store(true)
		s.inFlight.Add(1)
		go s.runJob(ctx, js)
	}
}

func (s *Scheduler) runJob(ctx context.Context, js *jobState) {
	defer func() {
		js.running.Store(false)
		s.inFlight.Add(-1)
	}()

	jobCtx := logger.WithJob(ctx, js.job.Name)
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panic: %v", r)
			}
		}()
		return js.job.Task(jobCtx)
	}()

	status := domain.JobStatus{
		Name:       js.job.Name,
		Status:     domain.JobSuccess,
		DurationMS: domain.Round2(float64(time.Since(start)) / float64(time.Millisecond)),
		Timestamp:  time.Now(),
	}

	if err != nil {
		status.Status = domain.JobFailed
		status.Error = err.Error()
		s.logger.Error(jobCtx, "job failed", map[string]interface{}{
			"error":       err.Error(),
			"duration_ms": status.DurationMS,
		})
		if nerr := s.notifier.JobFailure(jobCtx, js.job.Name, err, js.job.Critical); nerr != nil {
			s.logger.Warn(jobCtx, "job failure notification failed", map[string]interface{}{
				"error": nerr.Error(),
			})
		}
	} else {
		s.logger.Debug(jobCtx, "job completed", map[string]interface{}{
			"duration_ms": status.DurationMS,
		})
	}

	s.recordStatus(jobCtx, status)
}

func (s *Scheduler) recordStatus(ctx context.Context, status domain.JobStatus) {
	payload, err := json.Marshal(status)
	if err != nil {
		s.logger.Warn(ctx, "job status marshal failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if err := s.store.HSet(ctx, statusKey, status.Name, string(payload)); err != nil {
		s.logger.Warn(ctx, "job status persist failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Status returns the last recorded outcome for a job name, or nil when the
// job has not settled yet.
func (s *Scheduler) Status(ctx context.Context, name string) (*domain.JobStatus, error) {
	raw, err := s.store.HGet(ctx, statusKey, name)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read job status %s: %w", name, err)
	}
	var status domain.JobStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("decode job status %s: %w", name, err)
	}
	return &status, nil
}

// Shutdown stops scheduling new runs and waits, polling, for in-flight jobs
// to settle. The wait is bounded: once DrainWait elapses it returns
// ErrDrainTimeout and the caller proceeds with resource teardown regardless.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	s.stopOnce.Do(func() { close(s.stopCh) })

	deadline := time.Now().Add(s.cfg.DrainWait)
	for s.inFlight.Load() > 0 {
		if !time.Now().Before(deadline) {
			s.logger.Warn(ctx, "shutdown drain timed out", map[string]interface{}{
				"in_flight": s.inFlight.Load(),
			})
			return domain.ErrDrainTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.DrainPoll):
		}
	}

	s.logger.Info(ctx, "scheduler drained", nil)
	return nil
}
