package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulationcontrol/simctl/internal/simctl/api"
	"github.com/simulationcontrol/simctl/internal/simctl/domain"
	"github.com/simulationcontrol/simctl/internal/simctl/poller"
	"github.com/simulationcontrol/simctl/internal/simctl/store"
	"github.com/simulationcontrol/simctl/internal/simctl/stream"
	"github.com/simulationcontrol/simctl/pkg/config"
	"github.com/simulationcontrol/simctl/pkg/errors"
)

type fixture struct {
	coordinator *Coordinator
	repo        *store.Repository
	scheduler   *poller.Scheduler
	backend     *httptest.Server
	stops       *atomic.Int32
	status      atomic.Value // *api.StatusResponse
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{stops: &atomic.Int32{}}
	f.status.Store(&api.StatusResponse{State: domain.StateWait})

	f.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/jobs":
			json.NewEncoder(w).Encode(api.CreateJobResponse{JobID: "job-1", Status: "WAIT"})
		case r.Method == http.MethodDelete:
			f.stops.Add(1)
			w.WriteHeader(http.StatusAccepted)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/state/"):
			json.NewEncoder(w).Encode(f.status.Load().(*api.StatusResponse))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.backend.Close)

	kv := store.NewMemStore()
	f.repo = store.NewRepository(kv, nil)
	client := api.NewClient(config.APIConfig{
		BaseURL:       f.backend.URL,
		Timeout:       5 * time.Second,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}, nil)
	channel := stream.NewChannel(config.StreamConfig{
		BaseURL:           "ws://127.0.0.1:1/SimulationControlApi/ws/v1",
		ReconnectAttempts: 1,
		ReconnectDelay:    time.Millisecond,
		HeartbeatInterval: time.Minute,
	}, nil)
	// intervals long enough that no timer fires during a test
	f.scheduler = poller.NewScheduler(config.PollingConfig{
		WaitInterval:   time.Hour,
		ActiveInterval: time.Hour,
	}, client, nil)
	t.Cleanup(f.scheduler.Stop)

	f.coordinator = NewCoordinator(f.repo, client, channel, f.scheduler, nil)
	return f
}

func testHyperparameters(t *testing.T) domain.Hyperparameters {
	t.Helper()
	params, err := domain.DefaultModelParams(domain.AlgorithmPPO)
	require.NoError(t, err)
	return domain.Hyperparameters{
		DefRobot:    "rover",
		Model:       domain.AlgorithmPPO,
		Policy:      domain.PolicyMlp,
		Timesteps:   100000,
		ModelParams: params,
	}
}

func (f *fixture) seedJob(t *testing.T, state domain.JobState) *domain.Job {
	t.Helper()
	job := domain.NewJob("job-1", "maze.zip", testHyperparameters(t))
	job.State = state
	require.NoError(t, f.repo.SaveJob(context.Background(), job))
	return job
}

func TestCoordinator_Launch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	zip := bytes.NewReader([]byte("PK\x03\x04fake"))
	job, err := f.coordinator.Launch(ctx, "maze.zip", zip, 10, testHyperparameters(t))
	require.NoError(t, err)

	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, domain.StateWait, job.State)

	stored, err := f.repo.GetJobByID(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StateWait, stored.State)
	assert.True(t, f.scheduler.Tracked("job-1"))
}

func TestCoordinator_Merge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedJob(t, domain.StateWait)

	merged, err := f.coordinator.Merge(ctx, "job-1", domain.StateObservation{
		State:         domain.StateRunning,
		InitTimestamp: "2026-08-30T10:00:00Z",
		Source:        domain.SourcePoll,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StateRunning, merged.State)
	assert.Equal(t, "2026-08-30T10:00:00Z", merged.InitTimestamp)
	assert.Equal(t, uint64(1), merged.Revision)
	assert.NotEqual(t, seeded.LastUpdated, "")
	assert.True(t, f.scheduler.Tracked("job-1"))

	stored, err := f.repo.GetJobByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateRunning, stored.State)
}

func TestCoordinator_MergeDropsRegressiveObservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedJob(t, domain.StateRunning)

	// stream reports READY
	merged, err := f.coordinator.Merge(ctx, "job-1", domain.StateObservation{
		State:  domain.StateReady,
		Source: domain.SourceStream,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateReady, merged.State)
	assert.Equal(t, uint64(1), merged.Revision)
	assert.False(t, f.scheduler.Tracked("job-1"))

	// a poll that raced the stream still reports RUNNING; it must not win
	after, err := f.coordinator.Merge(ctx, "job-1", domain.StateObservation{
		State:  domain.StateRunning,
		Source: domain.SourcePoll,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateReady, after.State)
	assert.Equal(t, uint64(1), after.Revision, "dropped observation must not bump the revision")
	assert.False(t, f.scheduler.Tracked("job-1"))
}

func TestCoordinator_MergeAllowsGracePeriodTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedJob(t, domain.StateReady)

	merged, err := f.coordinator.Merge(ctx, "job-1", domain.StateObservation{
		State:        domain.StateTerminated,
		EndTimestamp: "2026-08-30T12:00:00Z",
		Source:       domain.SourcePoll,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateTerminated, merged.State)
	assert.Equal(t, "2026-08-30T12:00:00Z", merged.EndTimestamp)
}

func TestCoordinator_MergeSameStateStillRecordsDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedJob(t, domain.StateRunning)

	merged, err := f.coordinator.Merge(ctx, "job-1", domain.StateObservation{
		State:         domain.StateRunning,
		InitTimestamp: "2026-08-30T10:00:00Z",
		Source:        domain.SourcePoll,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), merged.Revision)
	assert.Equal(t, "2026-08-30T10:00:00Z", merged.InitTimestamp)
}

func TestCoordinator_MergeUnknownJob(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Merge(context.Background(), "ghost", domain.StateObservation{
		State: domain.StateRunning,
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestCoordinator_MergeRecordsErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedJob(t, domain.StateRunning)

	merged, err := f.coordinator.Merge(ctx, "job-1", domain.StateObservation{
		State:  domain.StateError,
		Errors: []string{"trainer crashed", "exit code 137"},
		Source: domain.SourceStream,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateError, merged.State)
	assert.Equal(t, []string{"trainer crashed", "exit code 137"}, merged.Errors)
}

func TestCoordinator_WatchPersistsStreamFailureMessage(t *testing.T) {
	ctx := context.Background()

	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 1)
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	defer ws.Close()

	repo := store.NewRepository(store.NewMemStore(), nil)
	client := api.NewClient(config.APIConfig{
		BaseURL:       "http://127.0.0.1:1",
		Timeout:       time.Second,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}, nil)
	channel := stream.NewChannel(config.StreamConfig{
		BaseURL:           "ws" + strings.TrimPrefix(ws.URL, "http"),
		ReconnectAttempts: 1,
		ReconnectDelay:    time.Millisecond,
		HeartbeatInterval: time.Minute,
	}, nil)
	scheduler := poller.NewScheduler(config.PollingConfig{
		WaitInterval:   time.Hour,
		ActiveInterval: time.Hour,
	}, client, nil)
	defer scheduler.Stop()
	coordinator := NewCoordinator(repo, client, channel, scheduler, nil)

	job := domain.NewJob("job-9", "maze.zip", testHyperparameters(t))
	job.State = domain.StateRunning
	require.NoError(t, repo.SaveJob(ctx, job))

	stop, err := coordinator.Watch(ctx, "job-9", nil)
	require.NoError(t, err)
	defer stop()

	var conn *websocket.Conn
	select {
	case conn = <-conns:
	case <-time.After(3 * time.Second):
		t.Fatal("stream never connected")
	}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(
		`{"type": "status", "state": "ERROR", "message": "out of memory on worker"}`)))

	deadline := time.Now().Add(3 * time.Second)
	for {
		stored, err := repo.GetJobByID(ctx, "job-9")
		require.NoError(t, err)
		if stored != nil && stored.State == domain.StateError {
			assert.Contains(t, stored.Errors, "out of memory on worker")
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("status frame never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCoordinator_StopJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedJob(t, domain.StateRunning)
	f.scheduler.Track(&domain.Job{ID: "job-1", State: domain.StateRunning})

	job, err := f.coordinator.StopJob(ctx, "job-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.stops.Load())
	assert.Equal(t, domain.StateCancelled, job.State)
	assert.False(t, f.scheduler.Tracked("job-1"))

	// the backend's authoritative grace-period transition still lands
	after, err := f.coordinator.Merge(ctx, "job-1", domain.StateObservation{
		State:  domain.StateTerminated,
		Source: domain.SourcePoll,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateTerminated, after.State)
}

func TestCoordinator_Refresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedJob(t, domain.StateWait)

	f.status.Store(&api.StatusResponse{
		State:         domain.StateRunning,
		InitTimestamp: "2026-08-30T10:00:00Z",
	})

	job, err := f.coordinator.Refresh(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateRunning, job.State)
	assert.Equal(t, "2026-08-30T10:00:00Z", job.InitTimestamp)
}

func TestCoordinator_DeleteJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedJob(t, domain.StateReady)
	f.scheduler.Track(&domain.Job{ID: "job-1", State: domain.StateWait})

	require.NoError(t, f.coordinator.DeleteJob(ctx, "job-1"))
	assert.False(t, f.scheduler.Tracked("job-1"))

	job, err := f.repo.GetJobByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestCoordinator_ResumeTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := domain.NewJob("job-active", "a.zip", testHyperparameters(t))
	active.State = domain.StateRunning
	done := domain.NewJob("job-done", "b.zip", testHyperparameters(t))
	done.State = domain.StateReady
	require.NoError(t, f.repo.SaveJob(ctx, active))
	require.NoError(t, f.repo.SaveJob(ctx, done))

	require.NoError(t, f.coordinator.ResumeTracking(ctx))
	assert.True(t, f.scheduler.Tracked("job-active"))
	assert.False(t, f.scheduler.Tracked("job-done"))
}

func TestCoordinator_JobsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older := domain.NewJob("job-old", "a.zip", testHyperparameters(t))
	older.CreatedAt = "2026-08-01T00:00:00Z"
	newer := domain.NewJob("job-new", "b.zip", testHyperparameters(t))
	newer.CreatedAt = "2026-08-20T00:00:00Z"
	require.NoError(t, f.repo.SaveJob(ctx, older))
	require.NoError(t, f.repo.SaveJob(ctx, newer))

	summaries, err := f.coordinator.Jobs(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "job-new", summaries[0].ID)
	assert.Equal(t, "job-old", summaries[1].ID)
}
