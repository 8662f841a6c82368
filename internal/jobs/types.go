// Package jobs defines the background work the worker and the refresh
// command hand to a queue: refreshing the cached price of one asset.
package jobs

import (
	"context"
	"time"
)

// JobType names what a job does.
type JobType string

const (
	JobTypeRefreshPrice JobType = "refresh_price"
)

// JobStatus is where a job is in its lifecycle.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed" // no retries left
	JobStatusRetrying  JobStatus = "retrying"
)

// Terminal reports whether no further processing will happen for the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DefaultMaxRetries is applied to jobs published without MaxRetries.
const DefaultMaxRetries = 3

// RefreshPriceJob refreshes the cached market price of one asset.
type RefreshPriceJob struct {
	JobID   string    `json:"job_id"` // assigned on publish when empty
	AssetID string    `json:"asset_id"`
	Ticker  string    `json:"ticker"`
	Status  JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error is the last handler failure.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is what a JobHandler receives.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *RefreshPriceJob) GetID() string {
	return j.JobID
}

func (j *RefreshPriceJob) GetType() JobType {
	return JobTypeRefreshPrice
}

func (j *RefreshPriceJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher hands jobs to a queue.
type Publisher interface {
	PublishRefreshPrice(ctx context.Context, job *RefreshPriceJob) error
	Close() error
}

// Consumer runs a handler for every queued job.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error

	// Stop waits for in-flight jobs.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error schedules a retry while
// attempts remain.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state so callers can report on finished refreshes.
type JobStore interface {
	SaveJob(ctx context.Context, job *RefreshPriceJob) error
	GetJob(ctx context.Context, jobID string) (*RefreshPriceJob, error)

	// ListJobs returns matching jobs oldest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*RefreshPriceJob, error)
}

// JobFilter selects jobs. Zero values match everything.
type JobFilter struct {
	Ticker string
	Status JobStatus
	Limit  int
	Offset int
}
