package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mosli/threadloom/internal/config"
	"github.com/mosli/threadloom/internal/models"
	"github.com/mosli/threadloom/internal/store"
)

// HandlerFunc executes one scheduled job. Handlers decode their own payload;
// any returned error is captured on the job, never propagated to the pass.
type HandlerFunc func(job *models.ScheduledJob) error

// JobExecution is the outcome of one job within a scheduler pass.
type JobExecution struct {
	Job     models.ScheduledJob `json:"job"`
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
}

// Scheduler owns the job lifecycle: it registers named handlers, enqueues
// durable jobs, and advances due jobs through pending -> running ->
// completed/failed. One pass runs jobs strictly sequentially; the caller (or
// the built-in ticker) decides when passes happen.
type Scheduler struct {
	config     *config.SchedulerConfig
	repository store.JobRepository
	activity   ActivityRecorder
	logger     *zap.Logger
	handlers   map[string]HandlerFunc
	mu         sync.RWMutex
	ticker     *time.Ticker
	stopCh     chan struct{}
}

func NewScheduler(cfg *config.SchedulerConfig, repository store.JobRepository, activity ActivityRecorder, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		config:     cfg,
		repository: repository,
		activity:   activity,
		logger:     logger,
		handlers:   make(map[string]HandlerFunc),
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) recordOutcome(job *models.ScheduledJob, message string) {
	if s.activity != nil {
		s.activity.Record("job", job.JobID, message)
	}
}

// RegisterHandler stores or overwrites the handler for name.
func (s *Scheduler) RegisterHandler(name string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
}

func (s *Scheduler) handler(name string) (HandlerFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	handler, ok := s.handlers[name]
	return handler, ok
}

// Enqueue persists a new pending job for name. The handler must already be
// registered; the pre-check catches typos at submission time instead of at
// run time. A nil runAt means immediate eligibility.
func (s *Scheduler) Enqueue(name string, payload models.JSONMap, runAt *time.Time) (*models.ScheduledJob, error) {
	if _, ok := s.handler(name); !ok {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownHandler, name)
	}

	at := time.Now().UTC()
	if runAt != nil {
		at = runAt.UTC()
	}
	job := models.NewScheduledJob(name, payload, at)
	if err := s.repository.Enqueue(job); err != nil {
		return nil, err
	}

	s.logger.Info("Job enqueued",
		zap.String("job_id", job.JobID),
		zap.String("name", name),
		zap.Time("run_at", job.RunAt))
	return job, nil
}

// RunPending executes every due job, earliest run_at first, and returns the
// per-job outcomes in execution order. Handler failures are converted into
// failed jobs; one job's failure never aborts the pass.
func (s *Scheduler) RunPending(now time.Time) ([]JobExecution, error) {
	due, err := s.dueJobs(now)
	if err != nil {
		return nil, err
	}

	results := make([]JobExecution, 0, len(due))
	for i := range due {
		job := &due[i]

		// Persist the transition before executing, so a crash mid-handler
		// leaves a visible running job instead of a silently lost one.
		job.MarkRunning()
		if err := s.repository.Update(job); err != nil {
			return results, err
		}

		handler, ok := s.handler(job.Name)
		if !ok {
			job.MarkFailed("Handler not registered")
			if err := s.repository.Update(job); err != nil {
				return results, err
			}
			s.logger.Error("Missing handler for job",
				zap.String("job_id", job.JobID),
				zap.String("name", job.Name))
			s.recordOutcome(job, fmt.Sprintf("Job %s failed: handler not registered", job.Name))
			results = append(results, JobExecution{Job: *job, Success: false, Error: *job.LastError})
			continue
		}

		start := time.Now()
		if err := s.execute(handler, job); err != nil {
			job.MarkFailed(err.Error())
			if updateErr := s.repository.Update(job); updateErr != nil {
				return results, updateErr
			}
			s.logger.Error("Job failed",
				zap.String("job_id", job.JobID),
				zap.String("name", job.Name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			s.recordOutcome(job, fmt.Sprintf("Job %s failed: %s", job.Name, err.Error()))
			results = append(results, JobExecution{Job: *job, Success: false, Error: err.Error()})
			continue
		}

		job.MarkCompleted()
		if err := s.repository.Update(job); err != nil {
			return results, err
		}
		s.logger.Info("Job completed",
			zap.String("job_id", job.JobID),
			zap.String("name", job.Name),
			zap.Duration("duration", time.Since(start)))
		s.recordOutcome(job, fmt.Sprintf("Job %s completed", job.Name))
		results = append(results, JobExecution{Job: *job, Success: true})
	}
	return results, nil
}

func (s *Scheduler) execute(handler HandlerFunc, job *models.ScheduledJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(job)
}

func (s *Scheduler) dueJobs(now time.Time) ([]models.ScheduledJob, error) {
	jobs, err := s.repository.ListPending()
	if err != nil {
		return nil, err
	}

	due := make([]models.ScheduledJob, 0, len(jobs))
	for _, job := range jobs {
		if job.Status != models.JobStatusPending && job.Status != models.JobStatusFailed {
			continue
		}
		if job.RunAt.After(now) {
			continue
		}
		due = append(due, job)
	}
	// Earliest due first; stable sort keeps insertion order for run_at ties
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].RunAt.Before(due[j].RunAt)
	})
	return due, nil
}

// Start launches the periodic pass loop when the scheduler is enabled. The
// caller owns pass timing otherwise, via RunPending.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.PassInterval)
	if err != nil {
		s.logger.Error("Invalid pass interval", zap.String("interval", s.config.PassInterval), zap.Error(err))
		return err
	}

	s.logger.Info("Starting scheduler", zap.String("pass_interval", s.config.PassInterval))

	s.ticker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.runPass()
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Scheduler shutdown completed")
}

func (s *Scheduler) runPass() {
	start := time.Now()
	results, err := s.RunPending(time.Now().UTC())
	if err != nil {
		s.logger.Error("Scheduler pass failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}
	if len(results) == 0 {
		return
	}

	succeeded := 0
	for _, result := range results {
		if result.Success {
			succeeded++
		}
	}
	s.logger.Info("Scheduler pass completed",
		zap.Int("executed", len(results)),
		zap.Int("succeeded", succeeded),
		zap.Duration("duration", time.Since(start)))
}
