package index

import "errors"

var (
	// ErrConfigMismatch indicates a vector or its declared model disagrees
	// with the authoritative embedding configuration. Never coerced: mixing
	// dimensions would silently corrupt similarity scores.
	ErrConfigMismatch = errors.New("embedding config mismatch")

	// ErrEmbeddingUnavailable indicates the upstream embedder failed.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrSummarizationFailed indicates the upstream summarizer failed.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrClusteringFailed indicates the similarity grouping of a level's
	// vectors could not be computed.
	ErrClusteringFailed = errors.New("clustering failed")

	// ErrBuildTimeout indicates a build or transformation exceeded its
	// wall-clock budget and was aborted.
	ErrBuildTimeout = errors.New("build timeout")

	// ErrPartialBuildDiscarded guards the atomicity invariant: a build that
	// produced some but not all levels must not commit any of them.
	ErrPartialBuildDiscarded = errors.New("partial build discarded")

	// ErrAlreadyClaimed indicates another worker holds the source's claim;
	// callers skip the source rather than treating this as a failure.
	ErrAlreadyClaimed = errors.New("source already claimed")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
)
