package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
	"studio/internal/lifecycle"
	"studio/internal/materialize"
	"studio/internal/storage"
)

type scriptedAdapter struct {
	name  string
	kind  domain.JobKind
	snaps []domain.Snapshot
	calls int
}

func (s *scriptedAdapter) Provider() string     { return s.name }
func (s *scriptedAdapter) Kind() domain.JobKind { return s.kind }

func (s *scriptedAdapter) Submit(ctx context.Context, params json.RawMessage) (string, error) {
	return "task-1", nil
}

func (s *scriptedAdapter) Check(ctx context.Context, providerJobID string) (domain.Snapshot, error) {
	idx := s.calls
	if idx >= len(s.snaps) {
		idx = len(s.snaps) - 1
	}
	s.calls++
	return s.snaps[idx], nil
}

type memJobRepo struct {
	mu        sync.Mutex
	jobs      map[string]*domain.GenerationJob
	snaps     []domain.Snapshot
	lastLease time.Duration
	released  []string
}

func newMemJobRepo(jobs ...*domain.GenerationJob) *memJobRepo {
	m := &memJobRepo{jobs: make(map[string]*domain.GenerationJob)}
	for _, job := range jobs {
		copied := *job
		m.jobs[job.ID] = &copied
	}
	return m
}

func (m *memJobRepo) Create(ctx context.Context, job *domain.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memJobRepo) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, domain.NewError(domain.ErrKindNotFound, "job not found")
}

func (m *memJobRepo) GetForUser(ctx context.Context, jobID, userID string) (*domain.GenerationJob, error) {
	return m.GetByID(ctx, jobID)
}

func (m *memJobRepo) UpdateSnapshot(ctx context.Context, jobID string, snap domain.Snapshot, attempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.NewError(domain.ErrKindNotFound, "job not found")
	}
	m.snaps = append(m.snaps, snap)
	job.Status = snap.Status
	if snap.Progress > job.Progress {
		job.Progress = snap.Progress
	}
	job.Attempts = attempts
	if snap.ResultRef != "" {
		job.ResultRef = snap.ResultRef
	}
	job.ErrorMessage = snap.Message
	return nil
}

func (m *memJobRepo) ClaimRunnable(ctx context.Context, lease time.Duration) (*domain.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLease = lease
	for _, job := range m.jobs {
		if !job.Status.Terminal() {
			copied := *job
			return &copied, nil
		}
	}
	return nil, domain.NewError(domain.ErrKindNotFound, "no runnable job")
}

func (m *memJobRepo) ReleaseLease(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, jobID)
	return nil
}

type memAssetRepo struct {
	mu     sync.Mutex
	assets []domain.Asset
}

func (m *memAssetRepo) Insert(ctx context.Context, asset *domain.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets = append(m.assets, *asset)
	return nil
}

func (m *memAssetRepo) ListByJob(ctx context.Context, jobID, userID string) ([]domain.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Asset(nil), m.assets...), nil
}

func newRunner(t *testing.T, jobs *memJobRepo, assets *memAssetRepo, adapter lifecycle.Adapter, mat *materialize.Materializer, store storage.Store) *Runner {
	t.Helper()
	runner, err := New(Options{
		Logger:          zerolog.Nop(),
		Jobs:            jobs,
		Assets:          assets,
		Adapters:        map[string]lifecycle.Adapter{adapter.Provider(): adapter},
		Materializer:    mat,
		Store:           store,
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 10,
	})
	require.NoError(t, err)
	return runner
}

func TestProcessPersistsReadyResult(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("mp4bytes"))
	}))
	defer upstream.Close()

	adapter := &scriptedAdapter{name: "kling-text2video", kind: domain.JobKindVideo, snaps: []domain.Snapshot{
		{Status: domain.JobStatusProcessing, Progress: 0.5},
		{Status: domain.JobStatusReady, Progress: 1, ResultRef: upstream.URL + "/result.mp4"},
	}}

	jobs := newMemJobRepo(&domain.GenerationJob{
		ID:            "job-1",
		UserID:        "user-1",
		Kind:          domain.JobKindVideo,
		Provider:      "kling-text2video",
		ProviderJobID: "task-1",
		Status:        domain.JobStatusPending,
	})
	assets := &memAssetRepo{}
	store, err := storage.NewFileStore(t.TempDir(), "http://localhost/static")
	require.NoError(t, err)

	runner := newRunner(t, jobs, assets, adapter, materialize.New(materialize.Options{}), store)
	job, err := jobs.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	runner.Process(context.Background(), job)

	final, err := jobs.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusReady, final.Status)
	require.Equal(t, upstream.URL+"/result.mp4", final.ResultRef)

	require.Len(t, assets.assets, 1)
	require.Equal(t, "video/mp4", assets.assets[0].MIME)
	require.Equal(t, int64(len("mp4bytes")), assets.assets[0].Bytes)
	require.Equal(t, "user-1/job-1.mp4", assets.assets[0].StorageKey)
}

func TestProcessKeepsResultRefWhenStorageFails(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer upstream.Close()

	adapter := &scriptedAdapter{name: "flux-inpaint", kind: domain.JobKindImage, snaps: []domain.Snapshot{
		{Status: domain.JobStatusReady, Progress: 1, ResultRef: upstream.URL + "/sample.png"},
	}}

	jobs := newMemJobRepo(&domain.GenerationJob{
		ID:            "job-2",
		UserID:        "user-1",
		Kind:          domain.JobKindImage,
		Provider:      "flux-inpaint",
		ProviderJobID: "task-1",
		Status:        domain.JobStatusPending,
	})
	assets := &memAssetRepo{}

	// nil store: artifact cannot be persisted.
	runner := newRunner(t, jobs, assets, adapter, materialize.New(materialize.Options{}), nil)
	job, err := jobs.GetByID(context.Background(), "job-2")
	require.NoError(t, err)
	runner.Process(context.Background(), job)

	final, err := jobs.GetByID(context.Background(), "job-2")
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusReady, final.Status)
	require.Equal(t, upstream.URL+"/sample.png", final.ResultRef, "provider reference must survive persistence failure")
	require.Empty(t, assets.assets)
}

func TestProcessFailsJobWithoutAdapter(t *testing.T) {
	adapter := &scriptedAdapter{name: "suno", kind: domain.JobKindAudio, snaps: []domain.Snapshot{
		{Status: domain.JobStatusReady, Progress: 1},
	}}
	jobs := newMemJobRepo(&domain.GenerationJob{
		ID:       "job-3",
		UserID:   "user-1",
		Kind:     domain.JobKindVideo,
		Provider: "kling-text2video",
		Status:   domain.JobStatusPending,
	})

	runner := newRunner(t, jobs, &memAssetRepo{}, adapter, nil, nil)
	job, err := jobs.GetByID(context.Background(), "job-3")
	require.NoError(t, err)
	runner.Process(context.Background(), job)

	final, err := jobs.GetByID(context.Background(), "job-3")
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusFailed, final.Status)
	require.Contains(t, final.ErrorMessage, "kling-text2video")
}

type cancelingAdapter struct {
	name   string
	cancel context.CancelFunc
}

func (c *cancelingAdapter) Provider() string     { return c.name }
func (c *cancelingAdapter) Kind() domain.JobKind { return domain.JobKindAudio }

func (c *cancelingAdapter) Submit(ctx context.Context, params json.RawMessage) (string, error) {
	return "task-1", nil
}

func (c *cancelingAdapter) Check(ctx context.Context, providerJobID string) (domain.Snapshot, error) {
	c.cancel()
	return domain.Snapshot{}, ctx.Err()
}

func TestRunLeasesClaimAndReleasesOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapter := &cancelingAdapter{name: "suno", cancel: cancel}

	jobs := newMemJobRepo(&domain.GenerationJob{
		ID:            "job-5",
		UserID:        "user-1",
		Kind:          domain.JobKindAudio,
		Provider:      "suno",
		ProviderJobID: "task-1",
		Status:        domain.JobStatusProcessing,
	})

	runner := newRunner(t, jobs, &memAssetRepo{}, adapter, nil, nil)
	err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.GreaterOrEqual(t, jobs.lastLease, 10*time.Millisecond,
		"the claim lease must cover the whole polling budget")
	require.Equal(t, []string{"job-5"}, jobs.released,
		"a shutdown mid-poll hands the job back immediately")

	final, gerr := jobs.GetByID(context.Background(), "job-5")
	require.NoError(t, gerr)
	require.Equal(t, domain.JobStatusProcessing, final.Status, "no terminal write on shutdown")
}

func TestProcessResumedJobKeepsProgressHighWater(t *testing.T) {
	adapter := &scriptedAdapter{name: "suno", kind: domain.JobKindAudio, snaps: []domain.Snapshot{
		{Status: domain.JobStatusProcessing, Progress: 0.3},
		{Status: domain.JobStatusReady, Progress: 1},
	}}
	jobs := newMemJobRepo(&domain.GenerationJob{
		ID:            "job-6",
		UserID:        "user-1",
		Kind:          domain.JobKindAudio,
		Provider:      "suno",
		ProviderJobID: "task-1",
		Status:        domain.JobStatusProcessing,
		Progress:      0.6,
		Attempts:      7,
	})

	runner := newRunner(t, jobs, &memAssetRepo{}, adapter, nil, nil)
	job, err := jobs.GetByID(context.Background(), "job-6")
	require.NoError(t, err)
	runner.Process(context.Background(), job)

	require.NotEmpty(t, jobs.snaps)
	for _, snap := range jobs.snaps {
		require.GreaterOrEqual(t, snap.Progress, 0.6,
			"a resumed job may not surface progress below what was already reported")
	}
}

func TestProcessResumesAttemptBudget(t *testing.T) {
	adapter := &scriptedAdapter{name: "suno", kind: domain.JobKindAudio, snaps: []domain.Snapshot{
		{Status: domain.JobStatusProcessing, Progress: 0.3},
	}}
	jobs := newMemJobRepo(&domain.GenerationJob{
		ID:            "job-4",
		UserID:        "user-1",
		Kind:          domain.JobKindAudio,
		Provider:      "suno",
		ProviderJobID: "task-1",
		Status:        domain.JobStatusProcessing,
		Attempts:      7,
	})

	runner := newRunner(t, jobs, &memAssetRepo{}, adapter, nil, nil)
	job, err := jobs.GetByID(context.Background(), "job-4")
	require.NoError(t, err)
	runner.Process(context.Background(), job)

	require.Equal(t, 3, adapter.calls, "only the remaining attempt budget may be consumed")

	final, err := jobs.GetByID(context.Background(), "job-4")
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusTimedOut, final.Status)
	require.Equal(t, 10, final.Attempts)
}
