package index

import (
	"time"

	"github.com/google/uuid"
)

// BuildStatus tracks the lifecycle of a source's summary tree.
type BuildStatus string

// Tree build states. The only legal transitions are
// pending -> building -> completed|failed, and failed|completed -> pending
// via an external rebuild request.
const (
	BuildPending   BuildStatus = "pending"
	BuildBuilding  BuildStatus = "building"
	BuildCompleted BuildStatus = "completed"
	BuildFailed    BuildStatus = "failed"
)

// TransformStatus tracks the lifecycle of a source's transformation run.
// It is independent of the tree build: either pipeline may complete first.
type TransformStatus string

const (
	TransformPending    TransformStatus = "pending"
	TransformProcessing TransformStatus = "processing"
	TransformCompleted  TransformStatus = "completed"
	TransformFailed     TransformStatus = "failed"
)

// Source is one ingested document within a notebook.
//
// The raptor_* and transformation_* fields are mutated only by their
// respective pipelines; deleting a source cascades to its tree nodes and
// transformation artifact.
type Source struct {
	ID         uuid.UUID
	NotebookID uuid.UUID
	Title      string
	Active     bool // inactive sources are excluded from retrieval

	RaptorStatus  BuildStatus
	RaptorError   string
	RaptorBuiltAt *time.Time

	TransformationStatus TransformStatus
	TransformationError  string
	TransformedAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TreeNode is one node of a source's hierarchical index.
//
// TreeLevel 0 is an original chunk; level L > 0 is the summary of a cluster
// of level L-1 nodes. TreeRootID is constant across all levels of one tree.
// Position preserves ingestion order at level 0 and cluster order above it.
type TreeNode struct {
	ID         uuid.UUID
	SourceID   uuid.UUID
	TreeLevel  int
	TreeRootID uuid.UUID
	Position   int
	Content    string
	Embedding  []float32
	Metadata   map[string]string
	CreatedAt  time.Time
}

// EmbeddingConfig is the authoritative embedding model identity. Exactly one
// configuration is authoritative at any instant; a new row supersedes the
// prior one, and previously stored vectors are not migrated.
type EmbeddingConfig struct {
	ID         uuid.UUID
	Model      string
	Provider   string
	Dimensions int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TransformationArtifact holds the flat document-level outputs of the
// transformation pipeline. Written once on success; absent otherwise.
type TransformationArtifact struct {
	SourceID            uuid.UUID
	DenseSummary        string
	KeyInsights         []string
	ReflectionQuestions []string
	CreatedAt           time.Time
}

// Chunk is one pre-chunked text segment supplied by the external ingestion
// collaborator. The index never re-chunks.
type Chunk struct {
	ID   string
	Text string
}

// SourceStatus is the operator-facing progress view of one source.
type SourceStatus struct {
	Source      Source
	LevelCounts map[int]int // tree_level -> node count
}

// NearestQuery describes a vector similarity search over tree nodes.
type NearestQuery struct {
	NotebookID uuid.UUID
	Vector     []float32
	Limit      int
	// MaxLevel restricts candidates to tree_level <= MaxLevel.
	// A negative value pools every level (collapsed retrieval).
	MaxLevel int
}

// ScoredNode is a tree node with its cosine similarity to a query vector.
type ScoredNode struct {
	Node       TreeNode
	Similarity float32
}
