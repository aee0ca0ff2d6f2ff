package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/beedev/dbnotebook/internal/index"
)

const treeNodeColumns = `id, source_id, tree_level, tree_root_id, position, content, embedding, metadata, created_at`

const insertNodeSQL = `
	INSERT INTO tree_nodes (id, source_id, tree_level, tree_root_id, position, content, embedding, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func scanTreeNode(rows pgx.Rows) (index.TreeNode, error) {
	var (
		node         index.TreeNode
		embedding    pgvector.Vector
		metadataJSON []byte
	)
	err := rows.Scan(&node.ID, &node.SourceID, &node.TreeLevel, &node.TreeRootID,
		&node.Position, &node.Content, &embedding, &metadataJSON, &node.CreatedAt)
	if err != nil {
		return index.TreeNode{}, err
	}

	node.Embedding = embedding.Slice()
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &node.Metadata); err != nil {
			return index.TreeNode{}, fmt.Errorf("parsing metadata for node %s: %w", node.ID, err)
		}
	}
	return node, nil
}

// insertNodes queues one insert per node on a pgx batch inside tx.
func insertNodes(ctx context.Context, tx pgx.Tx, nodes []index.TreeNode) error {
	if len(nodes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range nodes {
		metadataJSON, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for node %s: %w", n.ID, err)
		}
		batch.Queue(insertNodeSQL, n.ID, n.SourceID, n.TreeLevel, n.TreeRootID,
			n.Position, n.Content, pgvector.NewVector(n.Embedding), metadataJSON, n.CreatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range nodes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting tree node: %w", err)
		}
	}
	return results.Close()
}

// CommitBuild atomically publishes a finished build: any leftover summary
// nodes are swapped out, the staged nodes inserted, and the source flipped
// to completed in one transaction. Nothing is visible to readers until the
// commit lands, which is what keeps partial trees unservable.
func (s *Store) CommitBuild(ctx context.Context, sourceID uuid.UUID, nodes []index.TreeNode) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning build commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `DELETE FROM tree_nodes WHERE source_id = $1 AND tree_level >= 1`, sourceID)
	if err != nil {
		return fmt.Errorf("clearing stale summary nodes for source %s: %w", sourceID, err)
	}

	if err := insertNodes(ctx, tx, nodes); err != nil {
		return fmt.Errorf("inserting summary nodes for source %s: %w", sourceID, err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE sources
		SET raptor_status = 'completed', raptor_error = NULL, raptor_built_at = now(), updated_at = now()
		WHERE id = $1 AND raptor_status = 'building'`, sourceID)
	if err != nil {
		return fmt.Errorf("completing build for source %s: %w", sourceID, err)
	}
	if tag.RowsAffected() == 0 {
		// Claim was lost (reset or concurrent interference); discard everything.
		return fmt.Errorf("source %s no longer in building state: %w", sourceID, index.ErrPartialBuildDiscarded)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing build for source %s: %w", sourceID, err)
	}

	s.logger.Info("build committed", "source_id", sourceID, "summary_nodes", len(nodes))
	return nil
}

// NodesByLevel returns a source's nodes at one tree level in position order.
func (s *Store) NodesByLevel(ctx context.Context, sourceID uuid.UUID, level int) ([]index.TreeNode, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+treeNodeColumns+`
		FROM tree_nodes
		WHERE source_id = $1 AND tree_level = $2
		ORDER BY position, id`, sourceID, level)
	if err != nil {
		return nil, fmt.Errorf("querying level %d nodes for source %s: %w", level, sourceID, err)
	}
	return collectNodes(rows)
}

// NodesByRoot returns every node of one tree across all levels, ordered by
// level then position.
func (s *Store) NodesByRoot(ctx context.Context, rootID uuid.UUID) ([]index.TreeNode, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+treeNodeColumns+`
		FROM tree_nodes
		WHERE tree_root_id = $1
		ORDER BY tree_level, position, id`, rootID)
	if err != nil {
		return nil, fmt.Errorf("querying nodes for root %s: %w", rootID, err)
	}
	return collectNodes(rows)
}

func collectNodes(rows pgx.Rows) ([]index.TreeNode, error) {
	defer rows.Close()

	var nodes []index.TreeNode
	for rows.Next() {
		node, err := scanTreeNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tree node: %w", err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tree nodes: %w", err)
	}
	return nodes, nil
}

// NearestNodes runs a cosine similarity search over the notebook's active
// sources. q.MaxLevel < 0 pools every level; otherwise candidates are
// restricted to tree_level <= q.MaxLevel.
func (s *Store) NearestNodes(ctx context.Context, q index.NearestQuery) ([]index.ScoredNode, error) {
	var maxLevel *int
	if q.MaxLevel >= 0 {
		maxLevel = &q.MaxLevel
	}

	rows, err := s.db.Query(ctx, `
		SELECT n.id, n.source_id, n.tree_level, n.tree_root_id, n.position,
		       n.content, n.embedding, n.metadata, n.created_at,
		       1 - (n.embedding <=> $1) AS similarity
		FROM tree_nodes n
		JOIN sources s ON s.id = n.source_id
		WHERE s.active
		  AND s.notebook_id = $2
		  AND ($3::int IS NULL OR n.tree_level <= $3)
		ORDER BY n.embedding <=> $1
		LIMIT $4`,
		pgvector.NewVector(q.Vector), q.NotebookID, maxLevel, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("vector search in notebook %s: %w", q.NotebookID, err)
	}
	defer rows.Close()

	var results []index.ScoredNode
	for rows.Next() {
		var (
			node         index.TreeNode
			embedding    pgvector.Vector
			metadataJSON []byte
			similarity   float32
		)
		err := rows.Scan(&node.ID, &node.SourceID, &node.TreeLevel, &node.TreeRootID,
			&node.Position, &node.Content, &embedding, &metadataJSON, &node.CreatedAt, &similarity)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		node.Embedding = embedding.Slice()
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &node.Metadata); err != nil {
				s.logger.Warn("failed to parse node metadata", "node_id", node.ID, "error", err)
				node.Metadata = map[string]string{}
			}
		}
		results = append(results, index.ScoredNode{Node: node, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}
