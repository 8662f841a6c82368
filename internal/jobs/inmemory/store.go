package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dvloznov/wealth-tracker/internal/jobs"
)

// Store keeps refresh jobs in memory, oldest first. It is safe for
// concurrent use. Data is lost when the process exits.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*jobs.RefreshPriceJob
	order []string
	limit int
}

// NewStore returns a store that keeps every job it is given.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.RefreshPriceJob)}
}

// WithLimit caps the store at n jobs. Once over the cap the oldest finished
// jobs are forgotten; pending and running jobs are always kept.
func (s *Store) WithLimit(n int) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.limit = n
	s.evict()
	return s
}

// Len returns the number of jobs held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// SaveJob stores a copy of job, replacing an earlier state with the same ID.
func (s *Store) SaveJob(ctx context.Context, job *jobs.RefreshPriceJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.jobs[job.JobID]; !seen {
		s.order = append(s.order, job.JobID)
	}
	saved := *job
	s.jobs[job.JobID] = &saved
	s.evict()
	return nil
}

// evict drops the oldest terminal jobs while the store is over its limit.
// Callers hold s.mu.
func (s *Store) evict() {
	if s.limit <= 0 {
		return
	}
	for len(s.order) > s.limit {
		i := slices.IndexFunc(s.order, func(id string) bool {
			return s.jobs[id].Status.Terminal()
		})
		if i < 0 {
			return
		}
		delete(s.jobs, s.order[i])
		s.order = slices.Delete(s.order, i, i+1)
	}
}

// GetJob returns a copy of the job with the given ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.RefreshPriceJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: job not found: %s", jobID)
	}
	found := *job
	return &found, nil
}

// ListJobs returns copies of the matching jobs in the order they were first
// saved.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.RefreshPriceJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*jobs.RefreshPriceJob
	for _, id := range s.order {
		job := s.jobs[id]
		if filter.Ticker != "" && job.Ticker != filter.Ticker {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		found := *job
		matched = append(matched, &found)
	}

	if filter.Offset >= len(matched) {
		return []*jobs.RefreshPriceJob{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = slices.Clip(matched[:filter.Limit])
	}
	return matched, nil
}

var _ jobs.JobStore = (*Store)(nil)
