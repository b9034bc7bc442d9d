package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/channel-insights/backend/internal/logger"
	"github.com/onnwee/channel-insights/backend/internal/metrics"
	"github.com/onnwee/channel-insights/backend/internal/tracing"
)

var (
	// ErrJobPanicked wraps a panic recovered from a job.
	ErrJobPanicked = errors.New("job panicked")
	// ErrDuplicateJob is returned when a job name is registered twice.
	ErrDuplicateJob = errors.New("job already registered")
	// ErrInvalidJob is returned for a job that could never run.
	ErrInvalidJob = errors.New("invalid job")
)

// JobFunc is a unit of scheduled work. ctx is cancelled when the scheduler stops.
type JobFunc func(ctx context.Context) error

// State is the scheduler lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Config holds scheduler configuration
type Config struct {
	PollInterval time.Duration // How often due jobs are checked
	StopTimeout  time.Duration // How long Stop waits for the worker
	// OnError is called after a job fails, from the worker goroutine.
	OnError func(job string, err error)
}

// JobInfo is a snapshot of one registered job.
type JobInfo struct {
	Name           string        `json:"name"`
	Interval       time.Duration `json:"interval"`
	RunImmediately bool          `json:"run_immediately"`
	LastRun        time.Time     `json:"last_run,omitempty"`
	NextRun        time.Time     `json:"next_run,omitempty"`
	Runs           uint64        `json:"runs"`
	Failures       uint64        `json:"failures"`
	LastError      string        `json:"last_error,omitempty"`
	LastDuration   time.Duration `json:"last_duration"`
}

type job struct {
	name           string
	fn             JobFunc
	interval       time.Duration
	runImmediately bool

	// guarded by Scheduler.mu
	immediatePending bool
	baseline         time.Time // periodic runs are due at baseline+interval
	lastRun          time.Time
	runs, failures   uint64
	lastErr          string
	lastDuration     time.Duration
}

// Scheduler runs registered jobs at fixed intervals on a single background
// worker.
type Scheduler struct {
	mu     sync.Mutex
	jobs   []*job
	state  State
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}
	now    func() time.Time
	log    *slog.Logger
}

// New creates a stopped scheduler.
func New(cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	return &Scheduler{
		cfg:  cfg,
		wake: make(chan struct{}, 1),
		now:  time.Now,
		log:  logger.WithComponent("scheduler"),
	}
}

// AddJob registers fn to run every interval. With runImmediately the job also
// runs once as soon as the worker is up, independent of its periodic schedule.
// A non-positive interval registers a run-once job. Jobs may be added before
// or after Start.
func (s *Scheduler) AddJob(name string, fn JobFunc, interval time.Duration, runImmediately bool) error {
	if fn == nil {
		return fmt.Errorf("%w: %s has no function", ErrInvalidJob, name)
	}
	if interval <= 0 && !runImmediately {
		return fmt.Errorf("%w: %s has no interval and does not run immediately", ErrInvalidJob, name)
	}

	s.mu.Lock()
	for _, j := range s.jobs {
		if j.name == name {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
		}
	}
	s.jobs = append(s.jobs, &job{
		name:             name,
		fn:               fn,
		interval:         interval,
		runImmediately:   runImmediately,
		immediatePending: runImmediately,
		baseline:         s.now(),
	})
	active := s.state == StateStarting || s.state == StateRunning
	s.mu.Unlock()

	s.log.Info("Scheduled job registered", "job", name, "interval", interval.String(), "run_immediately", runImmediately)

	if runImmediately && active {
		s.nudge()
	}
	return nil
}

// Start launches the worker. It is a no-op while a worker is alive.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.state != StateStopped {
		state := s.state
		s.mu.Unlock()
		if state == StateStopping {
			s.log.Warn("Scheduler start ignored: previous worker still stopping")
		}
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.state = StateStarting
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(ctx, done)
	s.log.Info("Task scheduler started", "poll_interval", s.cfg.PollInterval.String())
}

// Stop cancels the worker and waits up to StopTimeout for it to exit. It
// reports whether the worker exited in time; a job that ignores cancellation
// is abandoned, not killed.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if s.state != StateStarting && s.state != StateRunning {
		s.mu.Unlock()
		return true
	}
	s.state = StateStopping
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		s.log.Info("Task scheduler stopped")
		return true
	case <-timer.C:
		s.log.Warn("Task scheduler stop timed out; abandoning in-flight job", "timeout", s.cfg.StopTimeout.String())
		return false
	}
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether the worker is running.
func (s *Scheduler) Running() bool {
	return s.State() == StateRunning
}

// Jobs returns a snapshot of registered jobs in registration order.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		info := JobInfo{
			Name:           j.name,
			Interval:       j.interval,
			RunImmediately: j.runImmediately,
			LastRun:        j.lastRun,
			Runs:           j.runs,
			Failures:       j.failures,
			LastError:      j.lastErr,
			LastDuration:   j.lastDuration,
		}
		if j.interval > 0 {
			info.NextRun = j.baseline.Add(j.interval)
		}
		out = append(out, info)
	}
	return out
}

func (s *Scheduler) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		metrics.SchedulerRunning.Set(0)
	}()

	s.mu.Lock()
	if s.state != StateStarting {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.mu.Unlock()
	metrics.SchedulerRunning.Set(1)

	// run_immediately jobs first
	s.sweepWithBackoff(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepWithBackoff(ctx)
		case <-s.wake:
			s.sweepWithBackoff(ctx)
		}
	}
}

func (s *Scheduler) sweepWithBackoff(ctx context.Context) {
	if err := s.sweep(ctx); err != nil {
		s.log.Error("Error in scheduler loop", "error", err)
		backoff := time.NewTimer(s.cfg.PollInterval)
		defer backoff.Stop()
		select {
		case <-ctx.Done():
		case <-backoff.C:
		}
	}
}

// sweep runs pending immediate jobs and every periodic job that is due. A
// fault outside a job's own function is reported after the rest of the batch
// has run.
func (s *Scheduler) sweep(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler sweep panicked: %v", r)
		}
	}()

	for _, d := range s.dueJobs(s.now()) {
		if ctx.Err() != nil {
			return err
		}
		if runErr := s.executeIsolated(ctx, d); runErr != nil && err == nil {
			err = runErr
		}
	}
	return err
}

func (s *Scheduler) executeIsolated(ctx context.Context, d dueJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler panicked around job %s: %v", d.job.name, r)
		}
	}()
	s.execute(ctx, d.job, d.periodic)
	return nil
}

type dueJob struct {
	job      *job
	periodic bool
}

func (s *Scheduler) dueJobs(now time.Time) []dueJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []dueJob
	for _, j := range s.jobs {
		if j.immediatePending {
			j.immediatePending = false
			due = append(due, dueJob{job: j})
			continue
		}
		if j.interval > 0 && now.Sub(j.baseline) >= j.interval {
			due = append(due, dueJob{job: j, periodic: true})
		}
	}
	return due
}

func (s *Scheduler) execute(ctx context.Context, j *job, periodic bool) {
	jctx := logger.ContextWithJob(ctx, j.name)
	jctx, span := tracing.StartSpan(jctx, "scheduler.job",
		trace.WithAttributes(attribute.String("job.name", j.name), attribute.Bool("job.periodic", periodic)))
	defer span.End()

	start := s.now()
	err := runSafely(jctx, j.fn)
	finished := s.now()
	elapsed := finished.Sub(start)

	s.mu.Lock()
	j.runs++
	j.lastRun = finished
	j.lastDuration = elapsed
	if periodic {
		j.baseline = finished
	}
	if err != nil {
		j.failures++
		j.lastErr = err.Error()
	} else {
		j.lastErr = ""
	}
	s.mu.Unlock()

	metrics.SchedulerJobDuration.WithLabelValues(j.name).Observe(elapsed.Seconds())
	if err != nil {
		metrics.SchedulerJobRuns.WithLabelValues(j.name, "failed").Inc()
		tracing.Fail(span, err)
		logger.ErrorContext(jctx, "Scheduled job failed", "error", err, "duration", elapsed.String())
		if s.cfg.OnError != nil {
			s.cfg.OnError(j.name, err)
		}
		return
	}
	metrics.SchedulerJobRuns.WithLabelValues(j.name, "success").Inc()
	logger.FromContext(jctx).Debug("Scheduled job finished", "duration", elapsed.String())
}

func runSafely(ctx context.Context, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return fn(ctx)
}
