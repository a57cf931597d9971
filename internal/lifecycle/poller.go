// Package lifecycle drives the submit-then-poll protocol shared by every
// generation provider. One poller implementation is parameterized by a
// provider adapter instead of re-implementing the loop per media kind.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
)

// Adapter is the capability set a provider integration implements: create a
// job and check it. Check must normalize the provider vocabulary into the
// domain status set; normalization is total and deterministic.
type Adapter interface {
	Provider() string
	Kind() domain.JobKind
	Submit(ctx context.Context, params json.RawMessage) (string, error)
	Check(ctx context.Context, providerJobID string) (domain.Snapshot, error)
}

const (
	defaultInterval    = 3 * time.Second
	defaultMaxAttempts = 40
)

// Options configures a Poller.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	Logger      *zerolog.Logger
	// OnTick observes every snapshot as it is taken, before the loop decides
	// whether to continue. Used for write-through persistence and metrics.
	OnTick func(snap domain.Snapshot, attempts int)
	// Sleep is injectable for tests; the default honors ctx cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Poller runs the fixed-interval polling loop. Requests for one job are
// strictly sequential: the next round-trip is issued only after the previous
// one resolved. No backoff or jitter is applied; the attempt ceiling bounds
// the loop instead of a wall-clock deadline.
type Poller struct {
	interval    time.Duration
	maxAttempts int
	logger      zerolog.Logger
	onTick      func(domain.Snapshot, int)
	sleep       func(context.Context, time.Duration) error
}

// New constructs a Poller with defaults applied.
func New(opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Poller{
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
		onTick:      opts.OnTick,
		sleep:       sleep,
	}
}

// Poll drives adapter.Check until a terminal snapshot, an attempt-budget
// exhaustion (timed_out) or a classified check failure. startAttempts and
// startProgress carry what a previous process already consumed and surfaced,
// so a resumed job keeps its budget and never reports progress below what
// the caller has already shown. The returned attempt count is the total
// issued.
//
// Progress is advisory and coarse; the poller clamps it so successive
// snapshots never report a decrease.
func (p *Poller) Poll(ctx context.Context, adapter Adapter, providerJobID string, startAttempts int, startProgress float64) (domain.Snapshot, int, error) {
	attempts := startAttempts
	if attempts < 0 {
		attempts = 0
	}
	highWater := startProgress
	if highWater < 0 {
		highWater = 0
	}

	for attempts < p.maxAttempts {
		if err := ctx.Err(); err != nil {
			return domain.Snapshot{}, attempts, err
		}

		snap, err := adapter.Check(ctx, providerJobID)
		attempts++
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return domain.Snapshot{}, attempts, err
			}
			derr := domain.AsError(err)
			if derr.Kind == domain.ErrKindNotFound {
				snap = domain.Snapshot{Status: domain.JobStatusNotFound, Message: derr.Message}
				p.tick(snap, attempts)
				return snap, attempts, nil
			}
			p.logger.Error().Err(err).
				Str("provider", adapter.Provider()).
				Str("provider_job_id", providerJobID).
				Int("attempts", attempts).
				Msg("poll: check failed")
			return domain.Snapshot{}, attempts, derr
		}

		if snap.Progress < highWater {
			snap.Progress = highWater
		}
		highWater = snap.Progress

		p.tick(snap, attempts)
		p.logger.Debug().
			Str("provider", adapter.Provider()).
			Str("provider_job_id", providerJobID).
			Str("status", string(snap.Status)).
			Float64("progress", snap.Progress).
			Int("attempts", attempts).
			Msg("poll: tick")

		if snap.Status.Terminal() {
			return snap, attempts, nil
		}
		if attempts >= p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return domain.Snapshot{}, attempts, err
		}
	}

	snap := domain.Snapshot{
		Status:   domain.JobStatusTimedOut,
		Progress: highWater,
		Message:  "polling attempt budget exhausted",
	}
	p.tick(snap, attempts)
	return snap, attempts, nil
}

func (p *Poller) tick(snap domain.Snapshot, attempts int) {
	if p.onTick != nil {
		p.onTick(snap, attempts)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
