// Package poller drives periodic status fetches for tracked jobs. Polling is
// the fallback transport behind the live stream, so intervals are long and
// adapt to the job's state: queued jobs are checked frequently, running jobs
// rarely, finished jobs never.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/simulationcontrol/simctl/internal/simctl/api"
	"github.com/simulationcontrol/simctl/internal/simctl/domain"
	"github.com/simulationcontrol/simctl/pkg/config"
	"github.com/simulationcontrol/simctl/pkg/logger"
)

// StatusFetcher fetches a job's current backend state
type StatusFetcher interface {
	GetJobStatus(ctx context.Context, jobID string) (*api.StatusResponse, error)
}

// Merger applies an observed state to the stored record. The merger decides
// what sticks and re-tracks or un-tracks the job with the scheduler.
type Merger interface {
	Merge(ctx context.Context, jobID string, obs domain.StateObservation) (*domain.Job, error)
}

// Scheduler arms one timer per tracked job. A fired timer runs exactly one
// fetch+merge; the next timer is armed only after that cycle completes, so a
// slow backend cannot stack requests for the same job.
type Scheduler struct {
	cfg     config.PollingConfig
	fetcher StatusFetcher
	merger  Merger
	logger  *logger.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewScheduler(cfg config.PollingConfig, fetcher StatusFetcher, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.WithField("component", "poll-scheduler")
	}
	return &Scheduler{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  log,
		timers:  make(map[string]*time.Timer),
	}
}

// SetMerger wires the merge sink. The scheduler and the coordinator
// reference each other, so the merger arrives after construction.
func (s *Scheduler) SetMerger(m Merger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merger = m
}

// Track arms (or re-arms) the poll timer for a job. Terminal jobs are
// un-tracked instead; a replaced timer is cancelled first.
func (s *Scheduler) Track(job *domain.Job) {
	if job.State.IsTerminal() {
		s.Untrack(job.ID)
		return
	}
	interval := s.interval(job.State)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.timers[job.ID]; ok {
		prev.Stop()
	}
	jobID := job.ID
	state := job.State
	s.timers[jobID] = time.AfterFunc(interval, func() {
		s.poll(jobID, state)
	})
	s.logger.Debug("poll scheduled", "jobId", jobID, "state", state, "interval", interval)
}

// Untrack cancels and forgets the job's timer
func (s *Scheduler) Untrack(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[jobID]; ok {
		timer.Stop()
		delete(s.timers, jobID)
	}
}

// Tracked reports whether a poll timer is currently armed for the job
func (s *Scheduler) Tracked(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[jobID]
	return ok
}

// Stop cancels every timer and refuses further tracking
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) interval(state domain.JobState) time.Duration {
	if state == domain.StateWait {
		return s.cfg.WaitInterval
	}
	return s.cfg.ActiveInterval
}

// poll runs one fetch+merge cycle. On success the merger re-arms or retires
// the timer from the post-merge state; on failure the last known state keeps
// the cadence.
func (s *Scheduler) poll(jobID string, lastState domain.JobState) {
	s.mu.Lock()
	delete(s.timers, jobID)
	merger := s.merger
	stopped := s.stopped
	s.mu.Unlock()
	if stopped || merger == nil {
		return
	}

	status, err := s.fetcher.GetJobStatus(context.Background(), jobID)
	if err != nil {
		s.logger.Warn("poll fetch failed", "jobId", jobID, "error", err)
		s.Track(&domain.Job{ID: jobID, State: lastState})
		return
	}

	_, err = merger.Merge(context.Background(), jobID, domain.StateObservation{
		State:         status.State,
		InitTimestamp: status.InitTimestamp,
		EndTimestamp:  status.EndTimestamp,
		Errors:        status.Errors,
		Source:        domain.SourcePoll,
	})
	if err != nil {
		s.logger.Warn("poll merge failed", "jobId", jobID, "error", err)
		s.Track(&domain.Job{ID: jobID, State: lastState})
	}
}
