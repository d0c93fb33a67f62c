package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Submit when the work channel is saturated and
// the scheduler is configured to reject rather than block.
var ErrQueueFull = errors.New("job queue full")

// ProgressFunc reports incremental progress for a running job. Implementations
// are idempotent; a lost update is acceptable.
type ProgressFunc func(percent int, message string)

// WorkerFunc executes one job attempt. It must check ctx between stages
// (loading data, building the model, solving, extracting results) and return
// ctx.Err() promptly once cancellation is observed; the solve step itself is
// not preemptible. On success it returns a result reference and summary; on
// failure it returns a non-nil error.
type WorkerFunc func(ctx context.Context, job Job, progress ProgressFunc) (resultRef string, resultSummary json.RawMessage, err error)

type SchedulerOption func(*Scheduler)

// WithDefaultRetryPolicy sets the retry defaults used when a job does not
// carry its own retry policy.
func WithDefaultRetryPolicy(policy RetryPolicy) SchedulerOption {
	return func(s *Scheduler) {
		s.defaultRetryPolicy = policy
	}
}

// WithLifecycleObserver wires lifecycle event notifications for job transitions.
func WithLifecycleObserver(observer LifecycleObserver) SchedulerOption {
	return func(s *Scheduler) {
		if observer == nil {
			s.lifecycleObserver = noopLifecycleObserver{}
			return
		}
		s.lifecycleObserver = observer
	}
}

// WithBlockingSubmit makes Submit block until a worker slot is available
// instead of returning ErrQueueFull.
func WithBlockingSubmit() SchedulerOption {
	return func(s *Scheduler) {
		s.blockingSubmit = true
	}
}

// Scheduler is the job queue's bounded worker pool. It dispatches pending
// jobs, tracks progress, enforces the job status state machine via Store, and
// observes cooperative per-job cancellation.
type Scheduler struct {
	store  *Store
	work   WorkerFunc
	logger *zap.Logger

	poolSize int
	queue    chan string

	mu                 sync.Mutex
	cancelByJob        map[string]context.CancelFunc
	pendingRetryCancel map[string]context.CancelFunc
	defaultRetryPolicy RetryPolicy
	lifecycleObserver  LifecycleObserver
	blockingSubmit     bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a bounded worker pool of poolSize workers with a work
// channel of the given capacity.
func NewScheduler(store *Store, work WorkerFunc, poolSize, queueCapacity int, logger *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if poolSize <= 0 {
		poolSize = 1
	}
	if queueCapacity <= 0 {
		queueCapacity = 1
	}
	s := &Scheduler{
		store:              store,
		work:               work,
		logger:             logger,
		poolSize:           poolSize,
		queue:              make(chan string, queueCapacity),
		cancelByJob:        make(map[string]context.CancelFunc),
		pendingRetryCancel: make(map[string]context.CancelFunc),
		defaultRetryPolicy: RetryPolicy{},
		lifecycleObserver:  noopLifecycleObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start recovers any jobs left running from a prior crash, re-enqueues
// persisted pending jobs, and launches the worker pool.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.runCtx != nil {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.cancel = cancel
	s.mu.Unlock()

	recovered, err := s.store.RecoverCrashedJobs()
	if err != nil {
		return fmt.Errorf("recover crashed jobs: %w", err)
	}
	for _, job := range recovered {
		s.logger.Warn("recovered crashed job as failed", zap.String("job_id", job.ID))
		s.emitLifecycleEvent(LifecycleEvent{Type: EventJobRecoveredAsFailed, Actor: "scheduler", JobID: job.ID, JobType: job.Type, Reason: "restart"})
	}

	pending, err := s.store.ListPending()
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}

	for i := 0; i < s.poolSize; i++ {
		s.wg.Add(1)
		go s.workerLoop(runCtx)
	}

	for _, job := range pending {
		s.enqueue(job.ID)
	}

	return nil
}

// Stop cancels all in-flight jobs' contexts, stops accepting new work, and
// waits for workers to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel = nil
	s.runCtx = nil
	for jobID, cancelJob := range s.cancelByJob {
		cancelJob()
		delete(s.cancelByJob, jobID)
	}
	for jobID, cancelRetry := range s.pendingRetryCancel {
		cancelRetry()
		delete(s.pendingRetryCancel, jobID)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Submit persists a new pending job and enqueues it for dispatch.
func (s *Scheduler) Submit(job Job) (*Job, error) {
	created, err := s.store.Submit(job)
	if err != nil {
		return nil, err
	}
	s.emitLifecycleEvent(LifecycleEvent{Type: EventJobSubmitted, Actor: "client", JobID: created.ID, JobType: created.Type})

	if !s.enqueue(created.ID) {
		return created, ErrQueueFull
	}
	return created, nil
}

func (s *Scheduler) enqueue(jobID string) bool {
	if s.blockingSubmit {
		select {
		case s.queue <- jobID:
			return true
		case <-s.runCtx.Done():
			return false
		}
	}
	select {
	case s.queue <- jobID:
		return true
	default:
		return false
	}
}

// Cancel requests cancellation of a job. Pending jobs are cancelled
// immediately; running jobs have their cancellation flag signalled and are
// expected to observe it between stages.
func (s *Scheduler) Cancel(jobID string) error {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return err
	}

	if job.Status == StatusPending {
		if err := s.store.Cancel(jobID); err != nil {
			return err
		}
		s.cancelScheduledRetry(jobID)
		s.emitLifecycleEvent(LifecycleEvent{Type: EventJobCancelled, Actor: "client", JobID: jobID, JobType: job.Type})
		return nil
	}

	s.mu.Lock()
	cancelJob, ok := s.cancelByJob[jobID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job is not cancellable in status %s", ErrInvalidJobTransition, job.Status)
	}
	cancelJob()
	return nil
}

// Status returns the full job record.
func (s *Scheduler) Status(jobID string) (*Job, error) {
	return s.store.GetJob(jobID)
}

func (s *Scheduler) workerLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-s.queue:
			if !ok {
				return
			}
			s.runJob(ctx, jobID)
		}
	}
}

func (s *Scheduler) runJob(parent context.Context, jobID string) {
	job, err := s.store.MarkRunning(jobID)
	if err != nil {
		if !IsInvalidJobTransition(err) {
			s.logger.Warn("mark job running failed", zap.String("job_id", jobID), zap.Error(err))
		}
		return
	}

	s.emitLifecycleEvent(LifecycleEvent{Type: EventJobStarted, Actor: "scheduler", JobID: job.ID, JobType: job.Type, Attempt: job.Attempt, MaxAttempts: job.MaxAttempts})

	jobCtx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.cancelByJob[jobID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancelByJob, jobID)
		s.mu.Unlock()
		cancel()
	}()

	progress := func(percent int, message string) {
		if err := s.store.UpdateProgress(jobID, percent, message); err != nil && !IsNotFound(err) {
			s.logger.Debug("progress update dropped", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	resultRef, resultSummary, workErr := s.work(jobCtx, *job, progress)

	if workErr != nil {
		if errors.Is(jobCtx.Err(), context.Canceled) {
			if err := s.store.Cancel(jobID); err != nil && !IsInvalidJobTransition(err) {
				s.logger.Warn("cancel job failed", zap.String("job_id", jobID), zap.Error(err))
			}
			s.emitLifecycleEvent(LifecycleEvent{Type: EventJobCancelled, Actor: "scheduler", JobID: job.ID, JobType: job.Type})
			return
		}

		policy, polErr := resolveRetryPolicy(job.RetryPolicy, s.defaultRetryPolicy)
		errPayload, _ := json.Marshal(map[string]string{"message": workErr.Error()})

		if polErr == nil && job.Attempt < policy.MaxAttempts {
			delay := policy.nextRetryDelay(job.Attempt)
			retryAt := time.Now().UTC().Add(delay)
			if err := s.store.CompleteFailed(jobID, errPayload, &retryAt); err != nil {
				s.logger.Warn("schedule retry failed", zap.String("job_id", jobID), zap.Error(err))
				return
			}
			s.emitLifecycleEvent(LifecycleEvent{Type: EventJobRetryScheduled, Actor: "scheduler", JobID: job.ID, JobType: job.Type, Attempt: job.Attempt + 1, MaxAttempts: policy.MaxAttempts})
			s.scheduleRetry(jobID, delay)
			return
		}

		if err := s.store.CompleteFailed(jobID, errPayload, nil); err != nil {
			s.logger.Warn("complete failed job failed", zap.String("job_id", jobID), zap.Error(err))
			return
		}
		s.emitLifecycleEvent(LifecycleEvent{Type: EventJobFailed, Actor: "scheduler", JobID: job.ID, JobType: job.Type, Reason: workErr.Error()})
		return
	}

	if err := s.store.CompleteSuccess(jobID, resultRef, resultSummary); err != nil {
		s.logger.Warn("complete success job failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	s.emitLifecycleEvent(LifecycleEvent{Type: EventJobSucceeded, Actor: "scheduler", JobID: job.ID, JobType: job.Type})
}

func (s *Scheduler) scheduleRetry(jobID string, delay time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if existing := s.pendingRetryCancel[jobID]; existing != nil {
		existing()
	}
	s.pendingRetryCancel[jobID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.mu.Lock()
		delete(s.pendingRetryCancel, jobID)
		s.mu.Unlock()

		s.enqueue(jobID)
	}()
}

func (s *Scheduler) cancelScheduledRetry(jobID string) {
	s.mu.Lock()
	cancel, ok := s.pendingRetryCancel[jobID]
	if ok {
		delete(s.pendingRetryCancel, jobID)
	}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Scheduler) emitLifecycleEvent(evt LifecycleEvent) {
	if s == nil || s.lifecycleObserver == nil {
		return
	}
	s.lifecycleObserver.ObserveJobLifecycleEvent(evt.normalize())
}
