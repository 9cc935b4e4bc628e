// Package scheduler runs the gateway's periodic maintenance jobs on a cron
// schedule. Each run is wrapped in a named lock so a fleet of instances
// executes a job once per tick.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/locks"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

type entry struct {
	name    string
	spec    string
	timeout time.Duration
	job     Job
	id      cron.EntryID
}

// Scheduler wraps robfig/cron with lock-guarded job execution.
type Scheduler struct {
	cron   *cron.Cron
	locker locks.Locker
	logger logging.Logger

	mu      sync.Mutex
	entries map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
}

func New(locker locks.Locker) *Scheduler {
	if locker == nil {
		locker = locks.NewMemoryLocker()
	}
	logger := logging.Component("scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.Recover(cronLogger{logger})),
		),
		locker:  locker,
		logger:  logger,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under name. spec accepts cron expressions with an
// optional seconds field and descriptors such as "@every 30s". timeout
// bounds one run and doubles as the lock expiry.
func (s *Scheduler) Add(name, spec string, timeout time.Duration, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return errors.ConflictError(fmt.Sprintf("job %q already registered", name))
	}
	if timeout <= 0 {
		timeout = time.Minute
	}

	e := &entry{name: name, spec: spec, timeout: timeout, job: job}
	id, err := s.cron.AddFunc(spec, func() { s.run(e) })
	if err != nil {
		return errors.ConfigurationError(fmt.Sprintf("invalid schedule for job %q", name)).WithCause(err)
	}
	e.id = id
	s.entries[name] = e
	return nil
}

// RunNow executes a registered job immediately under its lock. It reports
// whether the job ran.
func (s *Scheduler) RunNow(name string) (bool, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return false, errors.NotFoundError("job")
	}
	return s.execute(e)
}

// Next returns the next scheduled run of name, zero before Start.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(e.id).Next
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", logging.Field{Key: "jobs", Value: len(s.entries)})
	s.cron.Start()
}

// Stop halts scheduling and cancels running jobs, waiting for them to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return errors.TimeoutError("scheduler shutdown")
	}
}

func (s *Scheduler) run(e *entry) {
	if _, err := s.execute(e); err != nil {
		s.logger.Error("Scheduled job failed", err, logging.Field{Key: "job", Value: e.name})
	}
}

func (s *Scheduler) execute(e *entry) (bool, error) {
	ctx, cancel := context.WithTimeout(s.ctx, e.timeout)
	defer cancel()

	start := time.Now()
	ran, err := s.locker.TryRun(ctx, e.name, e.timeout, e.job)
	if !ran {
		if err == nil {
			s.logger.Debug("Skipping job held by another runner", logging.Field{Key: "job", Value: e.name})
		}
		return false, err
	}

	s.logger.Debug("Job finished",
		logging.Field{Key: "job", Value: e.name},
		logging.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
	)
	return true, err
}

// cronLogger adapts the gateway logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, err, pairs(keysAndValues)...)
}

func pairs(kv []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return fields
}
