package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Job defines the interface for any periodic task that can be scheduled.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Scheduler manages the registration and execution of periodic jobs. Each job
// runs on its own goroutine, so a slow job never delays another and is never
// re-entered.
type Scheduler struct {
	jobs []Job
	wg   sync.WaitGroup
}

// NewScheduler creates and returns a new Scheduler instance.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// RegisterJob adds a job to the scheduler's list. Jobs with a non-positive
// interval are rejected.
func (s *Scheduler) RegisterJob(j Job) {
	if j.Interval() <= 0 {
		log.Error().Str("job", j.Name()).Dur("interval", j.Interval()).Msg("Invalid interval for job, skipping.")
		return
	}
	s.jobs = append(s.jobs, j)
	log.Info().Msgf("Job '%s' registered.", j.Name())
}

// Start launches every registered job. Each runs once immediately, then on
// its interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("Scheduler starting...")

	for _, j := range s.jobs {
		log.Info().Msgf("Starting job '%s' with interval %s", j.Name(), j.Interval())
		s.wg.Add(1)
		go s.runJob(ctx, j)
	}

	log.Info().Msg("All jobs started.")
}

// Wait blocks until every job goroutine has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, j Job) {
	defer s.wg.Done()

	// Run immediately on start
	log.Debug().Msgf("Running job '%s' for the first time.", j.Name())
	s.execute(ctx, j)

	ticker := time.NewTicker(j.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Debug().Msgf("Running job '%s'.", j.Name())
			s.execute(ctx, j)
		case <-ctx.Done():
			log.Info().Msgf("Job '%s' received shutdown signal.", j.Name())
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, j Job) {
	if ctx.Err() != nil {
		return
	}
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Str("job", j.Name()).Msg("Job run failed.")
	}
}
