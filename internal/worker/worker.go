// Package worker drives durable generation jobs to completion: it claims
// pending rows, polls the owning provider until a terminal status and
// materializes ready results into storage.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studio/internal/cache"
	"studio/internal/domain"
	"studio/internal/lifecycle"
	"studio/internal/materialize"
	"studio/internal/metrics"
	"studio/internal/storage"
)

// Options configures a Runner.
type Options struct {
	Logger       zerolog.Logger
	Jobs         domain.JobRepository
	Assets       domain.AssetRepository
	Cache        *cache.JobCache
	Metrics      *metrics.Metrics
	Adapters     map[string]lifecycle.Adapter
	Materializer *materialize.Materializer
	Store        storage.Store

	PollInterval    time.Duration
	PollMaxAttempts int
	// IdleWait is the pause between claim attempts when no job is runnable.
	IdleWait time.Duration
}

// Runner owns the claim-poll-materialize loop.
type Runner struct {
	log          zerolog.Logger
	jobs         domain.JobRepository
	assets       domain.AssetRepository
	cache        *cache.JobCache
	metrics      *metrics.Metrics
	adapters     map[string]lifecycle.Adapter
	materializer *materialize.Materializer
	store        storage.Store

	pollInterval    time.Duration
	pollMaxAttempts int
	idleWait        time.Duration
}

func New(opts Options) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("worker: job repository is required")
	}
	if len(opts.Adapters) == 0 {
		return nil, errors.New("worker: at least one provider adapter is required")
	}
	idle := opts.IdleWait
	if idle <= 0 {
		idle = 2 * time.Second
	}
	return &Runner{
		log:             opts.Logger,
		jobs:            opts.Jobs,
		assets:          opts.Assets,
		cache:           opts.Cache,
		metrics:         opts.Metrics,
		adapters:        opts.Adapters,
		materializer:    opts.Materializer,
		store:           opts.Store,
		pollInterval:    opts.PollInterval,
		pollMaxAttempts: opts.PollMaxAttempts,
		idleWait:        idle,
	}, nil
}

// Run claims and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		job, err := r.jobs.ClaimRunnable(ctx, r.leaseDuration())
		if err != nil {
			derr := domain.AsError(err)
			if derr.Kind != domain.ErrKindNotFound {
				r.log.Error().Err(err).Msg("claim runnable job")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.idleWait):
			}
			continue
		}
		r.Process(ctx, job)
	}
}

// leaseDuration sizes the claim lease to outlast the whole polling budget,
// so a healthy worker's job never looks abandoned to its peers.
func (r *Runner) leaseDuration() time.Duration {
	interval := r.pollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	attempts := r.pollMaxAttempts
	if attempts <= 0 {
		attempts = 40
	}
	return interval*time.Duration(attempts) + 30*time.Second
}

// Process polls one claimed job to a terminal status. The job row keeps its
// consumed attempt budget and progress, so a job claimed after a restart
// resumes instead of starting over.
func (r *Runner) Process(ctx context.Context, job *domain.GenerationJob) {
	log := r.log.With().Str("job_id", job.ID).Str("provider", job.Provider).Logger()

	adapter, ok := r.adapters[job.Provider]
	if !ok {
		log.Error().Msg("no adapter configured for provider")
		r.finish(ctx, job, domain.Snapshot{
			Status:  domain.JobStatusFailed,
			Message: fmt.Sprintf("no adapter configured for provider %q", job.Provider),
		}, job.Attempts)
		return
	}

	poller := lifecycle.New(lifecycle.Options{
		Interval:    r.pollInterval,
		MaxAttempts: r.pollMaxAttempts,
		Logger:      &log,
		OnTick: func(snap domain.Snapshot, attempts int) {
			if r.metrics != nil {
				r.metrics.PollAttempt()
			}
			if err := r.jobs.UpdateSnapshot(ctx, job.ID, snap, attempts); err != nil {
				log.Error().Err(err).Msg("persist snapshot")
			}
			if err := r.cache.Put(ctx, job.ID, snap, attempts); err != nil {
				log.Debug().Err(err).Msg("cache snapshot")
			}
		},
	})

	snap, attempts, err := poller.Poll(ctx, adapter, job.ProviderJobID, job.Attempts, job.Progress)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown mid-poll: hand the lease back so the next worker
			// does not have to wait it out.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if rerr := r.jobs.ReleaseLease(releaseCtx, job.ID); rerr != nil {
				log.Warn().Err(rerr).Msg("release job lease")
			}
			return
		}
		derr := domain.AsError(err)
		log.Warn().Err(err).Msg("polling failed")
		r.finish(ctx, job, domain.Snapshot{
			Status:   domain.JobStatusFailed,
			Progress: snap.Progress,
			Message:  derr.Message,
		}, attempts)
		return
	}

	if snap.Status == domain.JobStatusReady {
		r.materializeResult(ctx, job, &snap)
	}
	r.finish(ctx, job, snap, attempts)
}

// materializeResult fetches the result bytes and persists them as an asset.
// Persistence failures never discard the artifact: the provider reference
// stays on the job row so the client can still load it.
func (r *Runner) materializeResult(ctx context.Context, job *domain.GenerationJob, snap *domain.Snapshot) {
	if r.materializer == nil || snap.ResultRef == "" {
		return
	}
	log := r.log.With().Str("job_id", job.ID).Logger()

	artifact, err := r.materializer.Materialize(ctx, snap.ResultRef)
	if err != nil {
		log.Warn().Err(err).Msg("materialize result")
		return
	}
	if r.metrics != nil {
		r.metrics.Materialized(routeOf(artifact))
	}

	if r.store == nil || r.assets == nil || len(artifact.Data) == 0 {
		return
	}
	key := fmt.Sprintf("%s/%s%s", job.UserID, job.ID, extensionFor(artifact.MIME))
	if _, err := r.store.Write(ctx, key, artifact.MIME, artifact.Data); err != nil {
		log.Warn().Err(err).Msg("store artifact")
		return
	}
	asset := &domain.Asset{
		ID:         uuid.NewString(),
		JobID:      job.ID,
		UserID:     job.UserID,
		StorageKey: key,
		SourceURL:  snap.ResultRef,
		MIME:       artifact.MIME,
		Bytes:      int64(len(artifact.Data)),
	}
	if err := r.assets.Insert(ctx, asset); err != nil {
		log.Warn().Err(err).Msg("record asset")
	}
}

func (r *Runner) finish(ctx context.Context, job *domain.GenerationJob, snap domain.Snapshot, attempts int) {
	if err := r.jobs.UpdateSnapshot(ctx, job.ID, snap, attempts); err != nil {
		r.log.Error().Err(err).Str("job_id", job.ID).Msg("persist terminal snapshot")
	}
	if err := r.cache.Put(ctx, job.ID, snap, attempts); err != nil {
		r.log.Debug().Err(err).Str("job_id", job.ID).Msg("cache terminal snapshot")
	}
	if r.metrics != nil && snap.Status.Terminal() {
		r.metrics.JobCompleted(job.Kind, snap.Status)
	}
}

func routeOf(artifact *materialize.Artifact) string {
	switch {
	case artifact.Inline:
		return "inline"
	case strings.Contains(artifact.URL, "/proxy"):
		return "proxy"
	default:
		return "direct"
	}
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	default:
		return ".bin"
	}
}
