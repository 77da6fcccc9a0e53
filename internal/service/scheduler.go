package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/taskmate/internal/security"
	"github.com/robfig/cron/v3"
)

// Job is a named unit of background work run on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler runs Jobs with robfig/cron. A job still running when its next
// tick arrives is skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	names  []string
}

// NewScheduler creates an idle scheduler.
func NewScheduler() *Scheduler {
	logger := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a job. Jobs with an empty schedule are ignored.
func (s *Scheduler) Add(job Job) error {
	if job.Schedule == "" {
		log.Info("Scheduler job disabled", "job", job.Name)
		return nil
	}
	_, err := s.cron.AddFunc(job.Schedule, func() {
		s.run(job)
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name, job.Schedule, err)
	}
	s.names = append(s.names, job.Name)
	return nil
}

func (s *Scheduler) run(job Job) {
	s.wg.Add(1)
	defer s.wg.Done()
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job.Run(s.ctx); err != nil {
		security.CountSchedulerRun(job.Name, "error")
		log.Error("Scheduler job failed", "job", job.Name, "err", err)
		return
	}
	security.CountSchedulerRun(job.Name, "ok")
	log.Debug("Scheduler job finished", "job", job.Name, "took", time.Since(start))
}

// Jobs returns the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.names...)
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info("Scheduler started", "jobs", s.names)
}

// Stop stops scheduling, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
	s.wg.Wait()
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
