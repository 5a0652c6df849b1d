// Package sync coordinates the three sources of job state: the persisted
// record, HTTP polling and the live stream. Every state observation flows
// through Coordinator.Merge, which is the only writer of job records after
// creation.
package sync

import (
	"context"
	"io"
	sysync "sync"
	"time"

	"github.com/simulationcontrol/simctl/internal/simctl/api"
	"github.com/simulationcontrol/simctl/internal/simctl/domain"
	"github.com/simulationcontrol/simctl/internal/simctl/poller"
	"github.com/simulationcontrol/simctl/internal/simctl/store"
	"github.com/simulationcontrol/simctl/internal/simctl/stream"
	"github.com/simulationcontrol/simctl/pkg/errors"
	"github.com/simulationcontrol/simctl/pkg/logger"
)

// MetricsHandler receives live training metrics during Watch
type MetricsHandler func(domain.TrainingMetrics)

// Coordinator owns the job lifecycle on the client side. It is constructed
// once and shared; all consumers go through it rather than talking to the
// repository or transports directly.
type Coordinator struct {
	repo      *store.Repository
	client    *api.Client
	channel   *stream.Channel
	scheduler *poller.Scheduler
	logger    *logger.Logger

	// serializes merges so poll and stream observations for the same job
	// cannot interleave between load and save
	mergeMu sysync.Mutex
}

func NewCoordinator(repo *store.Repository, client *api.Client, channel *stream.Channel, scheduler *poller.Scheduler, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.WithField("component", "sync-coordinator")
	}
	c := &Coordinator{
		repo:      repo,
		client:    client,
		channel:   channel,
		scheduler: scheduler,
		logger:    log,
	}
	scheduler.SetMerger(c)
	return c
}

// Launch submits a training job and persists it in WAIT before any polling
// or streaming starts, so a crash right after submission still leaves a
// trackable record.
func (c *Coordinator) Launch(ctx context.Context, worldName string, zipReader io.Reader, size int64, hp domain.Hyperparameters) (*domain.Job, error) {
	created, err := c.client.CreateJob(ctx, worldName, zipReader, size, hp)
	if err != nil {
		return nil, err
	}

	job := domain.NewJob(created.JobID, worldName, hp)
	if err := c.repo.SaveJob(ctx, job); err != nil {
		// the backend owns the job now; surface the storage failure but
		// keep polling so state is not lost entirely
		c.logger.Error("failed to persist launched job", "jobId", job.ID, "error", err)
		c.scheduler.Track(job)
		return job, err
	}

	c.logger.Info("job launched", "jobId", job.ID, "world", worldName, "algorithm", hp.Model)
	c.scheduler.Track(job)
	return job, nil
}

// Merge applies one observed backend state to the stored record. Stale or
// regressive observations are dropped: a terminal record never returns to a
// non-terminal state, and only the backend-driven READY/ERROR to TERMINATED
// transition moves between terminal states. The post-merge state re-arms or
// retires the poll timer.
func (c *Coordinator) Merge(ctx context.Context, jobID string, obs domain.StateObservation) (*domain.Job, error) {
	c.mergeMu.Lock()
	defer c.mergeMu.Unlock()

	job, err := c.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errors.WrapJobError(jobID, "merge", errors.ErrJobNotFound)
	}

	if obs.State != job.State && !job.State.CanTransitionTo(obs.State) {
		c.logger.Debug("dropping stale state observation",
			"jobId", jobID, "stored", job.State, "observed", obs.State, "source", obs.Source)
		return job, nil
	}

	job.State = obs.State
	if obs.InitTimestamp != "" {
		job.InitTimestamp = obs.InitTimestamp
	}
	if obs.EndTimestamp != "" {
		job.EndTimestamp = obs.EndTimestamp
	}
	if len(obs.Errors) > 0 {
		job.Errors = obs.Errors
	}
	job.Revision++
	job.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	if err := c.repo.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	c.scheduler.Track(job)
	if job.State.IsTerminal() && c.channel.JobID() == jobID {
		c.channel.Disconnect()
	}
	c.logger.Debug("merged state observation",
		"jobId", jobID, "state", job.State, "source", obs.Source, "revision", job.Revision)
	return job, nil
}

// Watch connects the live stream for a job. Metrics frames go to onMetrics;
// status frames are persisted through Merge. The returned function ends the
// watch and disconnects the stream.
func (c *Coordinator) Watch(ctx context.Context, jobID string, onMetrics MetricsHandler) (func(), error) {
	job, err := c.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errors.WrapJobError(jobID, "watch", errors.ErrJobNotFound)
	}

	unsubscribe := c.channel.OnMessage(func(msg stream.Message) {
		switch msg.Kind {
		case stream.MessageMetrics:
			if onMetrics != nil {
				onMetrics(*msg.Metrics)
			}
		case stream.MessageJobStatus:
			obs := domain.StateObservation{
				State:  msg.Status.State,
				Source: domain.SourceStream,
			}
			// the frame's message is the only failure detail the stream
			// carries, so keep it on ERROR transitions
			if msg.Status.State == domain.StateError && msg.Status.Message != "" {
				obs.Errors = []string{msg.Status.Message}
			}
			_, err := c.Merge(context.Background(), jobID, obs)
			if err != nil {
				c.logger.Warn("stream status merge failed", "jobId", jobID, "error", err)
			}
		}
	})

	if err := c.channel.Connect(ctx, jobID); err != nil {
		// the channel retries on its own; the subscription stays valid
		c.logger.Warn("initial stream connect failed", "jobId", jobID, "error", err)
	}

	return func() {
		unsubscribe()
		c.channel.Disconnect()
	}, nil
}

// StopJob requests cancellation and optimistically records CANCELLED. The
// authoritative terminal state still arrives via poll or stream and may
// overwrite it (CANCELLED to TERMINATED).
func (c *Coordinator) StopJob(ctx context.Context, jobID string) (*domain.Job, error) {
	if err := c.client.StopJob(ctx, jobID); err != nil {
		return nil, err
	}
	return c.Merge(ctx, jobID, domain.StateObservation{
		State:  domain.StateCancelled,
		Source: domain.SourceStopCall,
	})
}

// Refresh runs one immediate poll+merge cycle and returns the merged record
func (c *Coordinator) Refresh(ctx context.Context, jobID string) (*domain.Job, error) {
	status, err := c.client.GetJobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return c.Merge(ctx, jobID, domain.StateObservation{
		State:         status.State,
		InitTimestamp: status.InitTimestamp,
		EndTimestamp:  status.EndTimestamp,
		Errors:        status.Errors,
		Source:        domain.SourcePoll,
	})
}

// DeleteJob removes the local record and stops tracking it. The backend job
// is untouched; use StopJob first to cancel a live run.
func (c *Coordinator) DeleteJob(ctx context.Context, jobID string) error {
	c.scheduler.Untrack(jobID)
	if c.channel.JobID() == jobID {
		c.channel.Disconnect()
	}
	return c.repo.DeleteJobByID(ctx, jobID)
}

// ClearJobs wipes all local records and stops all tracking
func (c *Coordinator) ClearJobs(ctx context.Context) error {
	c.scheduler.Stop()
	c.channel.Disconnect()
	return c.repo.ClearAllJobs(ctx)
}

// ResumeTracking re-arms poll timers for every non-terminal stored job,
// typically at process start.
func (c *Coordinator) ResumeTracking(ctx context.Context) error {
	summaries, err := c.repo.GetJobSummaries(ctx)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		if s.State.IsTerminal() {
			continue
		}
		job, err := c.repo.GetJobByID(ctx, s.ID)
		if err != nil || job == nil {
			continue
		}
		c.scheduler.Track(job)
	}
	return nil
}

// Job returns the stored record for a job, nil when unknown
func (c *Coordinator) Job(ctx context.Context, jobID string) (*domain.Job, error) {
	return c.repo.GetJobByID(ctx, jobID)
}

// Jobs returns summaries of every stored job, newest first
func (c *Coordinator) Jobs(ctx context.Context) ([]domain.JobSummary, error) {
	return c.repo.GetJobSummaries(ctx)
}
