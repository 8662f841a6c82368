package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/wealth-tracker/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures a Queue. Zero values fall back to defaults.
type Options struct {
	// Workers is the number of concurrent job handlers. Default 5.
	Workers int

	// BufferSize is how many jobs can wait before PublishRefreshPrice
	// blocks. Default 100.
	BufferSize int

	// Backoff is the delay per retry attempt: attempt n waits n*Backoff.
	// Default 1s.
	Backoff time.Duration
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
type Queue struct {
	jobChan   chan *jobs.RefreshPriceJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers int
	backoff time.Duration
	log     zerolog.Logger

	// pending counts published jobs that have not reached a terminal status.
	pendingMu sync.Mutex
	pending   int
	idle      chan struct{}
}

// NewQueue creates a new in-memory job queue. store may be nil.
func NewQueue(opts Options, store jobs.JobStore, log zerolog.Logger) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 100
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}

	return &Queue{
		jobChan:   make(chan *jobs.RefreshPriceJob, opts.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   opts.Workers,
		backoff:   opts.Backoff,
		log:       log.With().Str("component", "jobs").Logger(),
		idle:      make(chan struct{}),
	}
}

// PublishRefreshPrice implements the Publisher interface.
func (q *Queue) PublishRefreshPrice(ctx context.Context, job *jobs.RefreshPriceJob) error {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	q.track(1)
	if err := q.enqueue(ctx, job); err != nil {
		q.track(-1)
		return fmt.Errorf("PublishRefreshPrice: %w", err)
	}
	return nil
}

func (q *Queue) enqueue(ctx context.Context, job *jobs.RefreshPriceJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()

	if closed {
		return fmt.Errorf("queue is closed")
	}

	q.save(ctx, job)

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("Start: queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	q.log.Debug().Int("workers", q.workers).Msg("queue started")

	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.RefreshPriceJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now().UTC()
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		q.track(-1)
		return
	}

	job.Error = err.Error()
	log := q.log.With().Str("job_id", job.JobID).Str("ticker", job.Ticker).Logger()

	if job.RetryCount >= job.MaxRetries || ctx.Err() != nil {
		job.Status = jobs.JobStatusFailed
		q.save(ctx, job)
		log.Error().Err(err).Int("retry_count", job.RetryCount).Msg("job failed")
		q.track(-1)
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	q.save(ctx, job)

	backoff := time.Duration(job.RetryCount) * q.backoff
	log.Warn().Err(err).Int("retry_count", job.RetryCount).Dur("backoff", backoff).Msg("job failed, retrying")

	// The job is owned by the timer from here on.
	time.AfterFunc(backoff, func() {
		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.enqueue(ctx, job); err != nil {
			job.Status = jobs.JobStatusFailed
			job.Error = fmt.Sprintf("re-enqueue: %v", err)
			q.save(context.Background(), job)
			q.track(-1)
		}
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.RefreshPriceJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("saving job state")
	}
}

func (q *Queue) track(delta int) {
	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()

	q.pending += delta
	if q.pending == 0 {
		close(q.idle)
		q.idle = make(chan struct{})
	}
}

// Wait blocks until every published job has completed or failed for good,
// or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.pendingMu.Lock()
	if q.pending == 0 {
		q.pendingMu.Unlock()
		return nil
	}
	idle := q.idle
	q.pendingMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for in-flight jobs to complete. Jobs still
// buffered are marked failed and no longer count towards Wait.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.drain()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain fails every job left in the buffer once the workers are gone.
func (q *Queue) drain() {
	for {
		select {
		case job := <-q.jobChan:
			job.Status = jobs.JobStatusFailed
			job.Error = "queue stopped"
			q.save(context.Background(), job)
			q.track(-1)
		default:
			return
		}
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
