package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"englearn/internal/queue"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

// Scheduler runs in the API process and only enqueues; the worker does the work.
type Scheduler struct {
	cron         *cron.Cron
	queue        Enqueuer
	cleanupSpec  string
	log          zerolog.Logger
	enqueueLimit time.Duration
}

func NewScheduler(queue Enqueuer, cleanupSpec string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithSeconds()),
		queue:        queue,
		cleanupSpec:  cleanupSpec,
		log:          log,
		enqueueLimit: 5 * time.Second,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cleanupSpec, s.enqueueCleanup); err != nil {
		return fmt.Errorf("schedule reset token cleanup %q: %w", s.cleanupSpec, err)
	}

	s.cron.Start()
	s.log.Info().Str("cleanup_spec", s.cleanupSpec).Msg("scheduler started")
	return nil
}

// Stop waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueueCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.enqueueLimit)
	defer cancel()

	if _, err := s.queue.Enqueue(ctx, queue.Task{Type: queue.TaskCleanupResetTokens}); err != nil {
		s.log.Error().Err(err).Msg("enqueue reset token cleanup failed")
	}
}
