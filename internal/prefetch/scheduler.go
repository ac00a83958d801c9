// Package prefetch runs speculative guidance computations off the request
// path on a bounded worker pool.
package prefetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hperssn/chefmentor/internal/log"
	"github.com/hperssn/chefmentor/internal/metrics"
)

// Job asks for guidance of StepIndex to be computed for SessionID.
type Job struct {
	SessionID string
	StepIndex int
}

// Handler executes one job. Errors are logged and dropped.
type Handler func(ctx context.Context, job Job) error

type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   256,
		TaskTimeout: 30 * time.Second,
	}
}

// Scheduler is a fire-and-forget job queue. Schedule never blocks: a full
// queue drops the job, and a job equal to one already queued or running is
// ignored.
type Scheduler struct {
	cfg    Config
	logger zerolog.Logger

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	inflightMu sync.Mutex
	inflight   map[Job]struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewScheduler(cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:      cfg,
		logger:   log.WithComponent("prefetch"),
		jobs:     make(chan Job, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[Job]struct{}),
	}
}

// Start launches the workers. Jobs scheduled before Start wait in the queue.
func (s *Scheduler) Start(handle Handler) {
	s.startOnce.Do(func() {
		for i := 0; i < s.cfg.Workers; i++ {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				for job := range s.jobs {
					metrics.SetPrefetchQueueDepth(len(s.jobs))
					s.run(handle, job)
				}
			}()
		}
		s.logger.Info().
			Int("workers", s.cfg.Workers).
			Int("queue_size", s.cfg.QueueSize).
			Msg("prefetch workers started")
	})
}

func (s *Scheduler) run(handle Handler, job Job) {
	defer s.release(job)

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.TaskTimeout)
	defer cancel()

	if err := handle(ctx, job); err != nil {
		s.logger.Debug().
			Err(err).
			Str(log.FieldSessionID, job.SessionID).
			Int(log.FieldStepIndex, job.StepIndex).
			Msg("prefetch job failed")
	}
}

// Schedule enqueues job and reports whether it was accepted.
func (s *Scheduler) Schedule(job Job) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return false
	}

	s.inflightMu.Lock()
	if _, dup := s.inflight[job]; dup {
		s.inflightMu.Unlock()
		metrics.RecordPrefetch("deduped")
		return true
	}
	s.inflight[job] = struct{}{}
	s.inflightMu.Unlock()

	select {
	case s.jobs <- job:
		metrics.SetPrefetchQueueDepth(len(s.jobs))
		return true
	default:
		s.release(job)
		metrics.RecordPrefetch("dropped")
		s.logger.Warn().
			Str(log.FieldSessionID, job.SessionID).
			Int(log.FieldStepIndex, job.StepIndex).
			Msg("prefetch queue full, job dropped")
		return false
	}
}

func (s *Scheduler) release(job Job) {
	s.inflightMu.Lock()
	delete(s.inflight, job)
	s.inflightMu.Unlock()
}

// Stop refuses new jobs and waits for queued ones to finish. If ctx expires
// first, running jobs are cancelled and ctx.Err() is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		close(s.jobs)
		s.mu.Unlock()

		// Workers that were never started cannot drain the queue.
		s.startOnce.Do(func() {})

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
			s.cancel()
			<-done
		}
		s.cancel()
	})
	return err
}
