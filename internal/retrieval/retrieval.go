// Package retrieval answers notebook queries against the hierarchical index.
package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/beedev/dbnotebook/internal/index"
)

// Strategy selects which tree levels are candidates for a query.
type Strategy string

const (
	// StrategyCollapsed pools all levels into one candidate set. The
	// default: leaf detail and summary abstraction compete on similarity.
	StrategyCollapsed Strategy = "collapsed"

	// StrategyLeafOnly restricts candidates to level-0 chunks.
	StrategyLeafOnly Strategy = "leaf_only"

	// StrategyLevelCapped pools levels up to a caller-chosen cap.
	StrategyLevelCapped Strategy = "level_capped"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyCollapsed, StrategyLeafOnly, StrategyLevelCapped:
		return true
	}
	return false
}

// NodeSearcher is the slice of the postgres store retrieval depends on.
type NodeSearcher interface {
	NearestNodes(ctx context.Context, q index.NearestQuery) ([]index.ScoredNode, error)
}

// QueryValidator checks the query embedding against the authoritative
// config before any vector comparison. Satisfied by *guard.Guard.
type QueryValidator interface {
	ValidateWrite(ctx context.Context, emb index.Embedding) error
}

// Config tunes candidate fetch and result sizing.
type Config struct {
	// OverFetch multiplies k for the candidate pool handed to the reranker.
	OverFetch int

	// DefaultK is the result count when the request leaves K zero.
	DefaultK int

	// Timeout bounds one retrieval end to end.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.OverFetch == 0 {
		c.OverFetch = 4
	}
	if c.DefaultK == 0 {
		c.DefaultK = 8
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Request is one retrieval call.
type Request struct {
	NotebookID uuid.UUID
	Query      string
	K          int
	Strategy   Strategy

	// MaxLevel applies to StrategyLevelCapped only.
	MaxLevel int
}

// Result is one ranked passage with provenance for citation rendering.
type Result struct {
	NodeID     uuid.UUID `json:"node_id"`
	SourceID   uuid.UUID `json:"source_id"`
	TreeLevel  int       `json:"tree_level"`
	Content    string    `json:"content"`
	Score      float32   `json:"score"`
	IsSummary  bool      `json:"is_summary"`
	TreeRootID uuid.UUID `json:"tree_root_id"`
}

// Orchestrator embeds queries, searches the index, and ranks results.
// Stateless and safe for concurrent use.
type Orchestrator struct {
	search   NodeSearcher
	embedder index.Embedder
	guard    QueryValidator
	reranker index.Reranker
	cfg      Config
	logger   *slog.Logger
}

// New creates an Orchestrator. The reranker may be nil; ranking then falls
// back to raw vector similarity.
func New(search NodeSearcher, embedder index.Embedder, guard QueryValidator, reranker index.Reranker, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		search:   search,
		embedder: embedder,
		guard:    guard,
		reranker: reranker,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Retrieve answers one query. An empty index yields an empty slice, not an
// error. A reranker failure degrades to similarity order with a warning;
// a config mismatch on the query embedding is a hard error.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) ([]Result, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if req.Strategy == "" {
		req.Strategy = StrategyCollapsed
	}
	if !req.Strategy.Valid() {
		return nil, fmt.Errorf("unknown retrieval strategy %q", req.Strategy)
	}
	if req.K <= 0 {
		req.K = o.cfg.DefaultK
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	emb, err := o.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if err := o.guard.ValidateWrite(ctx, emb); err != nil {
		return nil, fmt.Errorf("query embedding rejected: %w", err)
	}

	maxLevel := -1
	switch req.Strategy {
	case StrategyLeafOnly:
		maxLevel = 0
	case StrategyLevelCapped:
		if req.MaxLevel < 0 {
			return nil, fmt.Errorf("level_capped strategy requires a non-negative max level, got %d", req.MaxLevel)
		}
		maxLevel = req.MaxLevel
	}

	candidates, err := o.search.NearestNodes(ctx, index.NearestQuery{
		NotebookID: req.NotebookID,
		Vector:     emb.Vector,
		Limit:      req.K * o.cfg.OverFetch,
		MaxLevel:   maxLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("searching notebook %s: %w", req.NotebookID, err)
	}
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	ranked := o.rank(ctx, req.Query, candidates)

	sortRanked(ranked)
	if len(ranked) > req.K {
		ranked = ranked[:req.K]
	}

	results := make([]Result, len(ranked))
	for i, c := range ranked {
		results[i] = Result{
			NodeID:     c.Node.ID,
			SourceID:   c.Node.SourceID,
			TreeLevel:  c.Node.TreeLevel,
			Content:    c.Node.Content,
			Score:      c.Similarity,
			IsSummary:  c.Node.TreeLevel > 0,
			TreeRootID: c.Node.TreeRootID,
		}
	}

	o.logger.Debug("retrieval served",
		"notebook_id", req.NotebookID,
		"strategy", req.Strategy,
		"candidates", len(candidates),
		"results", len(results))
	return results, nil
}

// rank rescores candidates with the reranker when one is configured.
// Any reranker failure keeps the similarity scores.
func (o *Orchestrator) rank(ctx context.Context, query string, candidates []index.ScoredNode) []index.ScoredNode {
	if o.reranker == nil {
		return candidates
	}

	rcs := make([]index.RerankCandidate, len(candidates))
	for i, c := range candidates {
		rcs[i] = index.RerankCandidate{ID: c.Node.ID.String(), Text: c.Node.Content}
	}

	scores, err := o.reranker.Score(ctx, query, rcs)
	if err != nil {
		o.logger.Warn("reranker unavailable, serving similarity order", "error", err)
		return candidates
	}

	byID := make(map[string]float32, len(scores))
	for _, s := range scores {
		byID[s.ID] = s.Score
	}

	rescored := make([]index.ScoredNode, len(candidates))
	for i, c := range candidates {
		rescored[i] = c
		if score, ok := byID[c.Node.ID.String()]; ok {
			rescored[i].Similarity = score
		}
	}
	return rescored
}

// sortRanked orders by score descending with node ID as tiebreaker, so equal
// scores always serve in the same order.
func sortRanked(nodes []index.ScoredNode) {
	slices.SortStableFunc(nodes, func(a, b index.ScoredNode) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Node.ID.String(), b.Node.ID.String())
	})
}
