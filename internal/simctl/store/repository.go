package store

import (
	"context"
	"encoding/json"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/simulationcontrol/simctl/internal/simctl/domain"
	"github.com/simulationcontrol/simctl/pkg/errors"
	"github.com/simulationcontrol/simctl/pkg/logger"
)

// Repository provides CRUD over persisted Job records. Each job is one key
// (the job id), so single-job writes are atomic from the caller's view;
// multi-job reads are not atomic as a whole. Read failures degrade to "not
// found"; write failures propagate.
type Repository struct {
	store  Store
	logger *logger.Logger
}

// NewRepository creates a job repository over the given store
func NewRepository(s Store, log *logger.Logger) *Repository {
	if log == nil {
		log = logger.WithField("component", "job-repository")
	}
	return &Repository{store: s, logger: log}
}

// SaveJob upserts the record by id. Last write wins; merge decisions belong
// to the caller.
func (r *Repository) SaveJob(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return errors.WrapJobError(job.ID, "save", err)
	}
	data, err := json.Marshal(job)
	if err != nil {
		return errors.WrapJobError(job.ID, "save", err)
	}
	if err := r.store.Set(ctx, job.ID, data); err != nil {
		return errors.WrapJobError(job.ID, "save", err)
	}
	return nil
}

// GetJobByID returns the stored record, or nil when absent. Storage read
// errors and undecodable records are logged and reported as absent.
func (r *Repository) GetJobByID(ctx context.Context, id string) (*domain.Job, error) {
	data, ok, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.IsContextError(err) {
			return nil, err
		}
		r.logger.Warn("storage read failed, treating job as absent", "jobId", id, "error", err)
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	job, ok := decodeJob(data)
	if !ok {
		r.logger.Warn("undecodable job record", "jobId", id)
		return nil, nil
	}
	return job, nil
}

// GetJobSummaries lists every stored job as its summary projection. Records
// are fetched concurrently; any that fail to load or decode are silently
// dropped (the settings record shares the key space and is skipped the same
// way). Results are ordered by creation time, newest first.
func (r *Repository) GetJobSummaries(ctx context.Context) ([]domain.JobSummary, error) {
	keys, err := r.store.Keys(ctx)
	if err != nil {
		if errors.IsContextError(err) {
			return nil, err
		}
		r.logger.Warn("storage keys listing failed", "error", err)
		return nil, nil
	}

	results := make([]*domain.Job, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			data, ok, err := r.store.Get(gctx, key)
			if err != nil || !ok {
				return nil
			}
			if job, ok := decodeJob(data); ok {
				results[i] = job
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaries := make([]domain.JobSummary, 0, len(results))
	for _, job := range results {
		if job != nil {
			summaries = append(summaries, job.Summary())
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt > summaries[j].CreatedAt
	})
	return summaries, nil
}

// DeleteJobByID removes the record; deleting an absent job is not an error
func (r *Repository) DeleteJobByID(ctx context.Context, id string) error {
	if err := r.store.Remove(ctx, id); err != nil {
		return errors.WrapJobError(id, "delete", err)
	}
	return nil
}

// ClearAllJobs removes every record from the store
func (r *Repository) ClearAllJobs(ctx context.Context) error {
	if err := r.store.Clear(ctx); err != nil {
		return errors.WrapStorageError("", "clear", err)
	}
	return nil
}

// decodeJob parses a stored value as a Job, rejecting records that do not
// carry a valid job shape (the settings record, corrupt entries).
func decodeJob(data []byte) (*domain.Job, bool) {
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, false
	}
	if err := job.Validate(); err != nil {
		return nil, false
	}
	return &job, true
}
