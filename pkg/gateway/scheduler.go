package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduler runs the gateway's maintenance jobs on cron schedules.
type scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
	jobs    map[string]cron.EntryID
}

func newScheduler(logger *slog.Logger) *scheduler {
	return &scheduler{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

// add registers job under name. An empty spec disables the job.
//
// Common expressions:
//   - "@every 30s"  - every 30 seconds
//   - "0 3 * * *"   - daily at 3 AM
//   - "0 */6 * * *" - every 6 hours
func (s *scheduler) add(ctx context.Context, name, spec string, job func(context.Context)) error {
	if spec == "" {
		s.logger.Info("maintenance job not scheduled", "job", name)
		return nil
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q for %s: %w", spec, name, err)
	}

	id, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		job(ctx)
		s.logger.Debug("maintenance job finished",
			"job", name,
			"duration", time.Since(start),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = id
	s.mu.Unlock()
	return nil
}

func (s *scheduler) start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || len(s.jobs) == 0 {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("maintenance scheduler started", "jobs", len(s.jobs))
}

// stop stops the scheduler and waits for running jobs to complete.
func (s *scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("maintenance scheduler stopped")
}

// next returns the next run time of the named job.
func (s *scheduler) next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	entry := s.cron.Entry(id)
	if !entry.Valid() || entry.Next.IsZero() {
		return time.Time{}, false
	}
	return entry.Next, true
}
