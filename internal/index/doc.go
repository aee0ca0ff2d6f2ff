// Package index defines the domain model for the hierarchical retrieval
// index: sources, tree nodes, the authoritative embedding configuration,
// transformation artifacts, and the contracts of the external collaborators
// (embedder, summarizer, reranker) the pipelines depend on.
//
// A source's index is a layered tree stored as flat TreeNode records keyed by
// (source_id, tree_level, tree_root_id). Level 0 holds the original chunks;
// every higher level holds one summary node per similarity cluster of the
// level below. Parent/child relationships are derivable from level-adjacent,
// root-scoped queries - no pointer graph is persisted.
//
// The package is import-free of storage and AI concerns on purpose: the
// builder, retrieval, transform, and worker packages all consume these types
// and define their own narrow store interfaces over them.
package index
