// Package worker polls for pending sources and drives the build and
// transform pipelines. Multiple processes can run pools against the same
// database; the store's claim transitions guarantee each source is handled
// exactly once.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beedev/dbnotebook/internal/index"
)

// Sources lists work awaiting a claimant.
type Sources interface {
	PendingBuilds(ctx context.Context, limit int) ([]uuid.UUID, error)
	PendingTransforms(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// BuildRunner runs one tree build. Satisfied by *builder.Builder.
type BuildRunner interface {
	Build(ctx context.Context, sourceID uuid.UUID) error
}

// TransformRunner runs one transformation. Satisfied by *transform.Pipeline.
type TransformRunner interface {
	Run(ctx context.Context, sourceID uuid.UUID) error
}

// Config tunes pool concurrency and polling.
type Config struct {
	// Workers is the number of concurrent job executors.
	Workers int

	// PollInterval is the idle delay between pending-source scans.
	PollInterval time.Duration

	// BatchSize caps sources fetched per scan per pipeline.
	BatchSize int
}

func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = 2
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10
	}
	return c
}

type jobKind int

const (
	jobBuild jobKind = iota
	jobTransform
)

type job struct {
	kind     jobKind
	sourceID uuid.UUID
}

// Pool owns the poll loop and worker goroutines.
type Pool struct {
	sources    Sources
	builds     BuildRunner
	transforms TransformRunner
	cfg        Config
	logger     *slog.Logger
}

// New creates a Pool. A nil logger falls back to slog.Default.
func New(sources Sources, builds BuildRunner, transforms TransformRunner, cfg Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		sources:    sources,
		builds:     builds,
		transforms: transforms,
		cfg:        cfg.withDefaults(),
		logger:     logger,
	}
}

// Run polls and executes until ctx is canceled, then drains and returns nil.
// Job errors are logged, never fatal: one bad source must not stop the pool.
func (p *Pool) Run(ctx context.Context) error {
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := range p.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(ctx, w, jobs)
		}()
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.logger.Info("worker pool started",
		"workers", p.cfg.Workers, "poll_interval", p.cfg.PollInterval)

	for {
		if err := p.dispatch(ctx, jobs); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("scan for pending sources failed", "error", err)
		}

		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			p.logger.Info("worker pool stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// dispatch scans both pipelines and hands the pending sources to workers.
func (p *Pool) dispatch(ctx context.Context, jobs chan<- job) error {
	builds, err := p.sources.PendingBuilds(ctx, p.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("listing pending builds: %w", err)
	}
	transforms, err := p.sources.PendingTransforms(ctx, p.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("listing pending transforms: %w", err)
	}

	queued := make([]job, 0, len(builds)+len(transforms))
	for _, id := range builds {
		queued = append(queued, job{kind: jobBuild, sourceID: id})
	}
	for _, id := range transforms {
		queued = append(queued, job{kind: jobTransform, sourceID: id})
	}

	for _, j := range queued {
		select {
		case jobs <- j:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *Pool) work(ctx context.Context, id int, jobs <-chan job) {
	for j := range jobs {
		var err error
		switch j.kind {
		case jobBuild:
			err = p.builds.Build(ctx, j.sourceID)
		case jobTransform:
			err = p.transforms.Run(ctx, j.sourceID)
		}

		switch {
		case err == nil:
		case errors.Is(err, index.ErrAlreadyClaimed):
			// Another worker or process got there first. Normal under
			// concurrent pools, not worth more than a debug line.
			p.logger.Debug("source already claimed", "worker", id, "source_id", j.sourceID)
		default:
			p.logger.Error("job failed",
				"worker", id, "source_id", j.sourceID, "kind", j.kind, "error", err)
		}
	}
}
