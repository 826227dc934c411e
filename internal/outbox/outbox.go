// Package outbox runs side-channel deliveries (webhooks) on background workers
// with an explicit retry policy, so request handlers never wait on or fail
// because of an external system.
package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Ealanisln/alanis-backend/prometheus"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when no buffer slot is free
	ErrQueueFull = errors.New("outbox queue is full")
	// ErrQueueClosed is returned by Enqueue after Shutdown
	ErrQueueClosed = errors.New("outbox queue is closed")
)

// Job is a unit of delivery work. Run may be called several times.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// RetryPolicy controls how failed jobs are retried
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is used when Options leaves the policy empty
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   time.Second,
	MaxDelay:    time.Minute,
}

// Backoff returns the delay after the given failed attempt (1-based):
// BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Options configures a Queue
type Options struct {
	Workers   int
	QueueSize int
	Policy    RetryPolicy
}

// Queue is a bounded in-process job queue drained by a fixed worker pool
type Queue struct {
	jobs    chan Job
	workers int
	policy  RetryPolicy
	log     *zap.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup

	runCtx context.Context
	cancel context.CancelFunc
}

// New creates a queue. Workers are not running until Start is called.
func New(opts Options, log *zap.Logger) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy = DefaultRetryPolicy
	}
	if log == nil {
		log = zap.NewNop()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Queue{
		jobs:    make(chan Job, opts.QueueSize),
		workers: opts.Workers,
		policy:  opts.Policy,
		log:     log.Named("outbox"),
		runCtx:  runCtx,
		cancel:  cancel,
	}
}

// Policy returns the retry policy in effect
func (q *Queue) Policy() RetryPolicy {
	return q.policy
}

// Enqueue adds a job without blocking
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		prometheus.SetOutboxQueueDepth(len(q.jobs))
		return nil
	default:
		prometheus.RecordWebhookDelivery(job.Name, "dropped")
		return ErrQueueFull
	}
}

// Start launches the worker pool. Calling it more than once has no effect.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.log.Info("Outbox workers started", zap.Int("workers", q.workers))
}

// Shutdown stops accepting jobs and waits for queued jobs to finish. When ctx
// expires first, pending retries are abandoned and ctx.Err() is returned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	started := q.started
	q.mu.Unlock()

	if !started {
		q.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.log.Info("Outbox drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		q.log.Warn("Outbox shutdown deadline exceeded, pending jobs abandoned")
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		prometheus.SetOutboxQueueDepth(len(q.jobs))
		_ = q.Process(q.runCtx, job)
	}
}

// Process runs job under the retry policy and returns the last error, if any.
// Workers call it for every dequeued job.
func (q *Queue) Process(ctx context.Context, job Job) error {
	var err error
	for attempt := 1; attempt <= q.policy.MaxAttempts; attempt++ {
		err = job.Run(ctx)
		if err == nil {
			prometheus.RecordWebhookDelivery(job.Name, "success")
			if attempt > 1 {
				q.log.Info("Job delivered after retry", zap.String("job", job.Name), zap.Int("attempt", attempt))
			}
			return nil
		}

		if IsPermanent(err) {
			prometheus.RecordWebhookDelivery(job.Name, "failed")
			q.log.Warn("Job failed permanently", zap.String("job", job.Name), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if attempt == q.policy.MaxAttempts {
			break
		}

		delay := q.policy.Backoff(attempt)
		q.log.Debug("Job failed, retrying",
			zap.String("job", job.Name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		prometheus.RecordWebhookDelivery(job.Name, "retry")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			prometheus.RecordWebhookDelivery(job.Name, "abandoned")
			return ctx.Err()
		case <-timer.C:
		}
	}

	prometheus.RecordWebhookDelivery(job.Name, "exhausted")
	q.log.Warn("Job dropped after exhausting retries",
		zap.String("job", job.Name),
		zap.Int("attempts", q.policy.MaxAttempts),
		zap.Error(err))
	return err
}
