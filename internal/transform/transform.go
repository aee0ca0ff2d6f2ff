// Package transform derives per-source study artifacts: a dense summary,
// key insights, and reflection questions. The pipeline runs independently of
// tree building and tracks its own status column on the source.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/beedev/dbnotebook/internal/index"
)

// Store is the slice of the postgres store the pipeline depends on.
type Store interface {
	ClaimTransform(ctx context.Context, sourceID uuid.UUID) (bool, error)
	NodesByLevel(ctx context.Context, sourceID uuid.UUID, level int) ([]index.TreeNode, error)
	SaveArtifact(ctx context.Context, artifact index.TransformationArtifact) error
	FailTransform(ctx context.Context, sourceID uuid.UUID, reason string) error
}

// Config tunes the pipeline's failure budget.
type Config struct {
	// MaxRetries bounds attempts per generation call.
	MaxRetries int

	// Timeout is the wall-clock budget for one source's transformation.
	Timeout time.Duration

	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.RetryInitialInterval == 0 {
		c.RetryInitialInterval = 500 * time.Millisecond
	}
	if c.RetryMaxInterval == 0 {
		c.RetryMaxInterval = 10 * time.Second
	}
	return c
}

// Pipeline transforms one source at a time per claim; safe for concurrent
// use across sources.
type Pipeline struct {
	store       Store
	transformer index.Transformer
	cfg         Config
	logger      *slog.Logger
}

// New creates a Pipeline. A nil logger falls back to slog.Default.
func New(store Store, transformer index.Transformer, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:       store,
		transformer: transformer,
		cfg:         cfg.withDefaults(),
		logger:      logger,
	}
}

// Run claims the source and produces its artifact. Returns
// index.ErrAlreadyClaimed when another worker holds the claim. All three
// outputs must succeed; a partial artifact is never saved.
func (p *Pipeline) Run(ctx context.Context, sourceID uuid.UUID) error {
	claimed, err := p.store.ClaimTransform(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("claiming transform for source %s: %w", sourceID, err)
	}
	if !claimed {
		return fmt.Errorf("source %s: %w", sourceID, index.ErrAlreadyClaimed)
	}

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	artifact, err := p.produce(runCtx, sourceID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && runCtx.Err() != nil {
			err = fmt.Errorf("%w after %v: %v", index.ErrBuildTimeout, p.cfg.Timeout, err)
		}
		p.fail(sourceID, err)
		return err
	}

	if err := p.store.SaveArtifact(runCtx, artifact); err != nil {
		p.fail(sourceID, err)
		return fmt.Errorf("saving artifact for source %s: %w", sourceID, err)
	}

	p.logger.Info("transformation completed",
		"source_id", sourceID,
		"insights", len(artifact.KeyInsights),
		"questions", len(artifact.ReflectionQuestions))
	return nil
}

func (p *Pipeline) produce(ctx context.Context, sourceID uuid.UUID) (index.TransformationArtifact, error) {
	leaves, err := p.store.NodesByLevel(ctx, sourceID, 0)
	if err != nil {
		return index.TransformationArtifact{}, fmt.Errorf("loading content for source %s: %w", sourceID, err)
	}
	if len(leaves) == 0 {
		return index.TransformationArtifact{}, fmt.Errorf("source %s has no content to transform", sourceID)
	}

	parts := make([]string, len(leaves))
	for i, n := range leaves {
		parts[i] = n.Content
	}
	content := strings.Join(parts, "\n\n")

	rcfg := retryConfig{
		maxAttempts:     p.cfg.MaxRetries,
		initialInterval: p.cfg.RetryInitialInterval,
		maxInterval:     p.cfg.RetryMaxInterval,
	}

	var artifact index.TransformationArtifact
	artifact.SourceID = sourceID
	artifact.CreatedAt = time.Now().UTC()

	err = withRetry(ctx, p.logger, "dense summary", rcfg, func(ctx context.Context) error {
		var serr error
		artifact.DenseSummary, serr = p.transformer.DenseSummary(ctx, content)
		return serr
	})
	if err != nil {
		return index.TransformationArtifact{}, err
	}

	err = withRetry(ctx, p.logger, "key insights", rcfg, func(ctx context.Context) error {
		var serr error
		artifact.KeyInsights, serr = p.transformer.KeyInsights(ctx, content)
		return serr
	})
	if err != nil {
		return index.TransformationArtifact{}, err
	}

	err = withRetry(ctx, p.logger, "reflection questions", rcfg, func(ctx context.Context) error {
		var serr error
		artifact.ReflectionQuestions, serr = p.transformer.ReflectionQuestions(ctx, content)
		return serr
	})
	if err != nil {
		return index.TransformationArtifact{}, err
	}

	return artifact, nil
}

func (p *Pipeline) fail(sourceID uuid.UUID, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.store.FailTransform(ctx, sourceID, cause.Error()); err != nil {
		p.logger.Error("failed to record transform failure",
			"source_id", sourceID, "cause", cause, "error", err)
		return
	}
	p.logger.Warn("transformation failed", "source_id", sourceID, "error", cause)
}

// retryConfig and withRetry mirror the builder's policy minus the config
// mismatch short-circuit: transformation never writes embeddings.
type retryConfig struct {
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
}

func withRetry(ctx context.Context, logger *slog.Logger, op string, cfg retryConfig, fn func(context.Context) error) error {
	var lastErr error
	delay := cfg.initialInterval

	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == cfg.maxAttempts {
			break
		}

		logger.Debug("retrying after error", "op", op, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled during retry: %w", op, ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, cfg.maxInterval)
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, lastErr)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.maxAttempts, lastErr)
}
