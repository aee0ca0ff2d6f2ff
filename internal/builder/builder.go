// Package builder constructs the hierarchical summary tree for one source.
//
// Starting from the source's level-0 leaf nodes, each pass clusters the
// current level's vectors into bounded similarity groups, summarizes every
// group, embeds the summaries, and stages them as the next level. The loop
// ends when a level collapses to a single node or the depth cap is hit.
//
// The build is atomic at source granularity: nothing is persisted until
// every level of every group has succeeded, at which point the whole staged
// set commits in one transaction. Any failure - collaborator errors past the
// retry budget, a config mismatch, the wall-clock timeout - marks the source
// failed and commits nothing.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/beedev/dbnotebook/internal/cluster"
	"github.com/beedev/dbnotebook/internal/index"
)

// Store is the slice of the postgres store the builder depends on.
type Store interface {
	ClaimBuild(ctx context.Context, sourceID uuid.UUID) (bool, error)
	NodesByLevel(ctx context.Context, sourceID uuid.UUID, level int) ([]index.TreeNode, error)
	CommitBuild(ctx context.Context, sourceID uuid.UUID, nodes []index.TreeNode) error
	FailBuild(ctx context.Context, sourceID uuid.UUID, reason string) error
}

// WriteValidator checks freshly produced embeddings against the
// authoritative config. Satisfied by *guard.Guard.
type WriteValidator interface {
	ValidateWrite(ctx context.Context, emb index.Embedding) error
}

// Config tunes the tree shape and the build's failure budget.
type Config struct {
	// TargetClusterSize bounds members per similarity group.
	TargetClusterSize int

	// MinClusterSize is the remainder threshold below which a level's
	// leftover nodes form one final group.
	MinClusterSize int

	// MaxDepth caps the number of summary levels above the leaves.
	MaxDepth int

	// MaxRetries bounds attempts per summarize/embed call. Exhaustion
	// aborts the whole build.
	MaxRetries int

	// GroupParallelism bounds concurrent group tasks within one level.
	GroupParallelism int

	// SummaryTargetWords is the requested summary length per group.
	SummaryTargetWords int

	// Timeout is the wall-clock budget for one build.
	Timeout time.Duration

	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.TargetClusterSize == 0 {
		c.TargetClusterSize = 8
	}
	if c.MinClusterSize == 0 {
		c.MinClusterSize = 3
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = 5
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.GroupParallelism == 0 {
		c.GroupParallelism = 4
	}
	if c.SummaryTargetWords == 0 {
		c.SummaryTargetWords = 200
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Minute
	}
	if c.RetryInitialInterval == 0 {
		c.RetryInitialInterval = 500 * time.Millisecond
	}
	if c.RetryMaxInterval == 0 {
		c.RetryMaxInterval = 10 * time.Second
	}
	return c
}

// Builder builds summary trees. Safe for concurrent use across sources;
// per-source exclusion comes from the store's claim transition.
type Builder struct {
	store      Store
	embedder   index.Embedder
	summarizer index.Summarizer
	guard      WriteValidator
	cfg        Config
	logger     *slog.Logger
}

// New creates a Builder. A nil logger falls back to slog.Default.
func New(store Store, embedder index.Embedder, summarizer index.Summarizer, guard WriteValidator, cfg Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:      store,
		embedder:   embedder,
		summarizer: summarizer,
		guard:      guard,
		cfg:        cfg.withDefaults(),
		logger:     logger,
	}
}

// Build claims the source and builds its tree end to end. Returns
// index.ErrAlreadyClaimed when another worker holds the claim; callers skip
// the source in that case. Every other error path leaves the source marked
// failed with the triggering message persisted.
func (b *Builder) Build(ctx context.Context, sourceID uuid.UUID) error {
	claimed, err := b.store.ClaimBuild(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("claiming source %s: %w", sourceID, err)
	}
	if !claimed {
		return fmt.Errorf("source %s: %w", sourceID, index.ErrAlreadyClaimed)
	}

	buildCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	start := time.Now()
	staged, err := b.buildLevels(buildCtx, sourceID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && buildCtx.Err() != nil {
			err = fmt.Errorf("%w after %v: %v", index.ErrBuildTimeout, b.cfg.Timeout, err)
		}
		b.fail(sourceID, err)
		return err
	}

	if err := b.store.CommitBuild(buildCtx, sourceID, staged); err != nil {
		b.fail(sourceID, err)
		return fmt.Errorf("committing build for source %s: %w", sourceID, err)
	}

	b.logger.Info("tree build completed",
		"source_id", sourceID,
		"summary_nodes", len(staged),
		"elapsed", time.Since(start))
	return nil
}

// buildLevels runs the level loop and returns the full staged set of
// summary nodes. It persists nothing.
func (b *Builder) buildLevels(ctx context.Context, sourceID uuid.UUID) ([]index.TreeNode, error) {
	leaves, err := b.store.NodesByLevel(ctx, sourceID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading leaf nodes: %w", err)
	}
	if len(leaves) == 0 {
		return nil, fmt.Errorf("source %s has no leaf nodes", sourceID)
	}

	rootID := leaves[0].TreeRootID
	for _, leaf := range leaves {
		if leaf.TreeRootID != rootID {
			return nil, fmt.Errorf("leaf %s has root %s, expected %s", leaf.ID, leaf.TreeRootID, rootID)
		}
	}

	// A single-chunk document is its own gist; the tree is just the leaf.
	if len(leaves) == 1 {
		return nil, nil
	}

	current := leaves
	var staged []index.TreeNode

	for level := 1; level <= b.cfg.MaxDepth; level++ {
		vectors := make([][]float32, len(current))
		for i, n := range current {
			vectors[i] = n.Embedding
		}

		groups, err := cluster.Group(vectors, cluster.Config{
			TargetSize: b.cfg.TargetClusterSize,
			MinGroup:   b.cfg.MinClusterSize,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: level %d: %v", index.ErrClusteringFailed, level, err)
		}

		b.logger.Debug("clustered level",
			"source_id", sourceID, "level", level-1,
			"nodes", len(current), "groups", len(groups))

		next := make([]index.TreeNode, len(groups))
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(b.cfg.GroupParallelism)

		for gi, group := range groups {
			members := make([]index.TreeNode, len(group))
			for mi, idx := range group {
				members[mi] = current[idx]
			}
			eg.Go(func() error {
				node, err := b.summarizeGroup(egCtx, sourceID, rootID, level, gi, members)
				if err != nil {
					return err
				}
				next[gi] = node
				return nil
			})
		}

		// One failed group discards the whole level and everything staged
		// below it - the build either commits complete or not at all.
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		staged = append(staged, next...)
		if len(next) == 1 {
			break
		}
		current = next
	}

	return staged, nil
}

// summarizeGroup produces one level-L node from a cluster of level-(L-1)
// members: summarize, embed, validate against the authoritative config.
func (b *Builder) summarizeGroup(ctx context.Context, sourceID, rootID uuid.UUID, level, position int, members []index.TreeNode) (index.TreeNode, error) {
	texts := make([]string, len(members))
	for i, m := range members {
		texts[i] = m.Content
	}

	rcfg := retryConfig{
		maxAttempts:     b.cfg.MaxRetries,
		initialInterval: b.cfg.RetryInitialInterval,
		maxInterval:     b.cfg.RetryMaxInterval,
	}

	var summary string
	err := withRetry(ctx, b.logger, "summarize group", rcfg, func(ctx context.Context) error {
		var serr error
		summary, serr = b.summarizer.Summarize(ctx, texts, b.cfg.SummaryTargetWords)
		return serr
	})
	if err != nil {
		return index.TreeNode{}, fmt.Errorf("level %d group %d: %w", level, position, err)
	}

	var emb index.Embedding
	err = withRetry(ctx, b.logger, "embed summary", rcfg, func(ctx context.Context) error {
		var eerr error
		emb, eerr = b.embedder.Embed(ctx, summary)
		return eerr
	})
	if err != nil {
		return index.TreeNode{}, fmt.Errorf("level %d group %d: %w", level, position, err)
	}

	// Config mismatches are terminal, never retried: a switched model cannot
	// heal mid-build, the source needs a full re-embed.
	if err := b.guard.ValidateWrite(ctx, emb); err != nil {
		return index.TreeNode{}, fmt.Errorf("level %d group %d: %w", level, position, err)
	}

	return index.TreeNode{
		ID:         uuid.New(),
		SourceID:   sourceID,
		TreeLevel:  level,
		TreeRootID: rootID,
		Position:   position,
		Content:    summary,
		Embedding:  emb.Vector,
		Metadata: map[string]string{
			"member_count": strconv.Itoa(len(members)),
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// fail persists the terminal failed status. Uses a fresh context: the build
// context is usually already canceled or expired by the time we get here.
func (b *Builder) fail(sourceID uuid.UUID, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.store.FailBuild(ctx, sourceID, cause.Error()); err != nil {
		b.logger.Error("failed to record build failure",
			"source_id", sourceID, "cause", cause, "error", err)
		return
	}
	b.logger.Warn("tree build failed", "source_id", sourceID, "error", cause)
}
