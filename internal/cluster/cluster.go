// Package cluster groups embedding vectors into bounded-size, similarity-
// coherent clusters for one level of a summary tree.
//
// The grouping is greedy and deterministic given input order: pick the first
// unassigned vector as a seed, attach its most similar unassigned neighbours
// up to the target size, repeat. Once the remaining count drops below the
// minimum threshold, the remainder becomes one final group. Determinism
// matters - two builds over the same leaves must produce the same tree.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Config bounds the shape of the grouping.
type Config struct {
	// TargetSize is the upper bound on members per group.
	TargetSize int

	// MinGroup is the threshold below which all remaining vectors are
	// collapsed into a single final group.
	MinGroup int
}

var (
	errNoVectors = errors.New("no vectors to cluster")
)

// Cosine computes cosine similarity between two vectors.
// Returns 0 for zero-norm vectors or mismatched lengths.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	na := float32(math.Sqrt(float64(normA)))
	nb := float32(math.Sqrt(float64(normB)))
	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (na * nb)
}

// Group partitions vectors into similarity-coherent groups of at most
// cfg.TargetSize members. Every input index appears in exactly one group.
// Returns the groups as index slices into vectors, in deterministic order.
func Group(vectors [][]float32, cfg Config) ([][]int, error) {
	if cfg.TargetSize < 2 {
		return nil, fmt.Errorf("target size must be at least 2, got %d", cfg.TargetSize)
	}
	if cfg.MinGroup < 1 {
		return nil, fmt.Errorf("min group must be at least 1, got %d", cfg.MinGroup)
	}

	n := len(vectors)
	if n == 0 {
		return nil, errNoVectors
	}

	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("vector %d is empty", i)
		}
		if len(v) != dims {
			return nil, fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), dims)
		}
	}

	assigned := make([]bool, n)
	remaining := n
	var groups [][]int

	for remaining > 0 {
		// Small tails are never split: semantically arbitrary singleton
		// groups would get summaries of nothing but themselves.
		if remaining <= cfg.MinGroup {
			final := make([]int, 0, remaining)
			for i := range n {
				if !assigned[i] {
					final = append(final, i)
				}
			}
			groups = append(groups, final)
			break
		}

		seed := -1
		for i := range n {
			if !assigned[i] {
				seed = i
				break
			}
		}

		type candidate struct {
			idx int
			sim float32
		}
		var cands []candidate
		for i := seed + 1; i < n; i++ {
			if !assigned[i] {
				cands = append(cands, candidate{idx: i, sim: Cosine(vectors[seed], vectors[i])})
			}
		}
		sort.SliceStable(cands, func(a, b int) bool {
			if cands[a].sim != cands[b].sim {
				return cands[a].sim > cands[b].sim
			}
			return cands[a].idx < cands[b].idx
		})

		take := cfg.TargetSize - 1
		if take > len(cands) {
			take = len(cands)
		}

		group := make([]int, 0, take+1)
		group = append(group, seed)
		assigned[seed] = true
		for _, c := range cands[:take] {
			group = append(group, c.idx)
			assigned[c.idx] = true
		}
		sort.Ints(group)

		groups = append(groups, group)
		remaining -= len(group)
	}

	return groups, nil
}
