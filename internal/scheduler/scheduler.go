// Package scheduler runs the pipeline jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"swing-trader/internal/logging"
	"swing-trader/internal/models"
)

// Job is a named unit of work with a standard 5-field cron expression.
type Job struct {
	Name models.JobName
	Spec string
	Run  func(ctx context.Context) error
}

// Entry describes a registered job.
type Entry struct {
	Name models.JobName
	Spec string
	Next time.Time
	Prev time.Time
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	logger zerolog.Logger

	mu   sync.Mutex
	jobs map[models.JobName]registered
}

type registered struct {
	job Job
	id  cron.EntryID
}

// New creates a scheduler evaluating expressions in loc. Jobs receive ctx.
func New(ctx context.Context, loc *time.Location, logger zerolog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:    ctx,
		logger: logger,
		jobs:   make(map[models.JobName]registered),
	}
}

// Register adds a job. Registering the same name twice is an error.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	id, err := s.cron.AddFunc(job.Spec, func() { s.execute(job) })
	if err != nil {
		return fmt.Errorf("register %s job: %w", job.Name, err)
	}
	s.jobs[job.Name] = registered{job: job, id: id}
	return nil
}

// Start starts the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop stops scheduling and returns a context that is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	done := s.cron.Stop()
	s.logger.Info().Msg("Scheduler stopped")
	return done
}

// RunNow executes a registered job immediately on the calling goroutine.
func (s *Scheduler) RunNow(name models.JobName) error {
	s.mu.Lock()
	r, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.execute(r.job)
}

// Entries lists the registered jobs ordered by next run.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.jobs))
	for _, r := range s.jobs {
		e := s.cron.Entry(r.id)
		next := e.Next
		if next.IsZero() {
			// Not started yet: compute from the schedule directly.
			next = e.Schedule.Next(time.Now().In(s.cron.Location()))
		}
		entries = append(entries, Entry{Name: r.job.Name, Spec: r.job.Spec, Next: next, Prev: e.Prev})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Next.Before(entries[j].Next) })
	return entries
}

func (s *Scheduler) execute(job Job) error {
	logger := logging.WithJob(s.logger, job.Name)
	start := time.Now()
	logger.Info().Msg("Scheduled job starting")

	err := job.Run(logging.WithLogger(s.ctx, logger))
	if err != nil {
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Scheduled job failed")
		return err
	}
	logger.Info().Dur("duration", time.Since(start)).Msg("Scheduled job finished")
	return nil
}

// NextRun returns the first activation of spec after from, evaluated in loc.
func NextRun(spec string, loc *time.Location, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from.In(loc)), nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
