package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/beedev/dbnotebook/internal/index"
)

const sourceColumns = `id, notebook_id, title, active,
	raptor_status, raptor_error, raptor_built_at,
	transformation_status, transformation_error, transformed_at,
	created_at, updated_at`

func scanSource(row pgx.Row) (index.Source, error) {
	var (
		src            index.Source
		raptorErr      *string
		transformErr   *string
		raptorBuiltAt  *time.Time
		transformedAt  *time.Time
		raptorStatus   string
		transformState string
	)
	err := row.Scan(&src.ID, &src.NotebookID, &src.Title, &src.Active,
		&raptorStatus, &raptorErr, &raptorBuiltAt,
		&transformState, &transformErr, &transformedAt,
		&src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return index.Source{}, err
	}

	src.RaptorStatus = index.BuildStatus(raptorStatus)
	src.TransformationStatus = index.TransformStatus(transformState)
	src.RaptorBuiltAt = raptorBuiltAt
	src.TransformedAt = transformedAt
	if raptorErr != nil {
		src.RaptorError = *raptorErr
	}
	if transformErr != nil {
		src.TransformationError = *transformErr
	}
	return src, nil
}

// SourceByID loads one source. Returns index.ErrNotFound if absent.
func (s *Store) SourceByID(ctx context.Context, id uuid.UUID) (index.Source, error) {
	row := s.db.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	src, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return index.Source{}, fmt.Errorf("source %s: %w", id, index.ErrNotFound)
	}
	if err != nil {
		return index.Source{}, fmt.Errorf("loading source %s: %w", id, err)
	}
	return src, nil
}

// IngestSource creates a source together with its level-0 leaf nodes in one
// transaction. Both pipelines start in pending.
func (s *Store) IngestSource(ctx context.Context, src index.Source, leaves []index.TreeNode) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning ingest transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO sources (id, notebook_id, title, active)
		VALUES ($1, $2, $3, $4)`,
		src.ID, src.NotebookID, src.Title, src.Active)
	if err != nil {
		return fmt.Errorf("inserting source %s: %w", src.ID, err)
	}

	if err := insertNodes(ctx, tx, leaves); err != nil {
		return fmt.Errorf("inserting leaf nodes for source %s: %w", src.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing ingest for source %s: %w", src.ID, err)
	}

	s.logger.Debug("ingested source", "source_id", src.ID, "leaves", len(leaves))
	return nil
}

// DeleteSource removes a source; tree nodes and the transformation artifact
// cascade via foreign keys.
func (s *Store) DeleteSource(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting source %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %s: %w", id, index.ErrNotFound)
	}
	return nil
}

// ClaimBuild atomically transitions a source from pending to building.
// Exactly one concurrent claimant succeeds; the rest observe false and skip.
func (s *Store) ClaimBuild(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE sources
		SET raptor_status = 'building', raptor_error = NULL, updated_at = now()
		WHERE id = $1 AND raptor_status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("claiming build for source %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// FailBuild records a terminal build failure with the triggering error
// message for operator visibility.
func (s *Store) FailBuild(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE sources
		SET raptor_status = 'failed', raptor_error = $2, updated_at = now()
		WHERE id = $1 AND raptor_status = 'building'`, id, reason)
	if err != nil {
		return fmt.Errorf("marking build failed for source %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %s not in building state", id)
	}
	return nil
}

// ResetBuild clears all summary nodes (level >= 1) and returns the source to
// pending, leaving level-0 leaves untouched. This is the only external path
// out of failed. A source mid-build cannot be reset - that would race with
// the worker holding the claim.
func (s *Store) ResetBuild(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning rebuild transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE sources
		SET raptor_status = 'pending', raptor_error = NULL, raptor_built_at = NULL, updated_at = now()
		WHERE id = $1 AND raptor_status <> 'building'`, id)
	if err != nil {
		return fmt.Errorf("resetting build status for source %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %s is mid-build or missing, cannot reset", id)
	}

	_, err = tx.Exec(ctx, `DELETE FROM tree_nodes WHERE source_id = $1 AND tree_level >= 1`, id)
	if err != nil {
		return fmt.Errorf("clearing summary nodes for source %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing rebuild reset for source %s: %w", id, err)
	}

	s.logger.Info("source reset for rebuild", "source_id", id)
	return nil
}

// ClaimTransform atomically transitions a source from pending to processing.
func (s *Store) ClaimTransform(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE sources
		SET transformation_status = 'processing', transformation_error = NULL, updated_at = now()
		WHERE id = $1 AND transformation_status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("claiming transform for source %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// FailTransform records a terminal transformation failure.
func (s *Store) FailTransform(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE sources
		SET transformation_status = 'failed', transformation_error = $2, updated_at = now()
		WHERE id = $1 AND transformation_status = 'processing'`, id, reason)
	if err != nil {
		return fmt.Errorf("marking transform failed for source %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %s not in processing state", id)
	}
	return nil
}

// ResetTransform returns a non-processing source's transformation to pending.
func (s *Store) ResetTransform(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE sources
		SET transformation_status = 'pending', transformation_error = NULL, transformed_at = NULL, updated_at = now()
		WHERE id = $1 AND transformation_status <> 'processing'`, id)
	if err != nil {
		return fmt.Errorf("resetting transform status for source %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %s is mid-transform or missing, cannot reset", id)
	}
	return nil
}

// PendingBuilds lists active sources awaiting a tree build, oldest first.
func (s *Store) PendingBuilds(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return s.pendingSources(ctx, `
		SELECT id FROM sources
		WHERE active AND raptor_status = 'pending'
		ORDER BY created_at
		LIMIT $1`, limit)
}

// PendingTransforms lists active sources awaiting transformation, oldest first.
func (s *Store) PendingTransforms(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return s.pendingSources(ctx, `
		SELECT id FROM sources
		WHERE active AND transformation_status = 'pending'
		ORDER BY created_at
		LIMIT $1`, limit)
}

func (s *Store) pendingSources(ctx context.Context, query string, limit int) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending sources: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning pending source id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending sources: %w", err)
	}
	return ids, nil
}

// SourceStatus returns the operator-facing progress view: the source row
// plus per-level node counts.
func (s *Store) SourceStatus(ctx context.Context, id uuid.UUID) (index.SourceStatus, error) {
	src, err := s.SourceByID(ctx, id)
	if err != nil {
		return index.SourceStatus{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT tree_level, count(*)
		FROM tree_nodes
		WHERE source_id = $1
		GROUP BY tree_level
		ORDER BY tree_level`, id)
	if err != nil {
		return index.SourceStatus{}, fmt.Errorf("counting nodes for source %s: %w", id, err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var level, count int
		if err := rows.Scan(&level, &count); err != nil {
			return index.SourceStatus{}, fmt.Errorf("scanning level count: %w", err)
		}
		counts[level] = count
	}
	if err := rows.Err(); err != nil {
		return index.SourceStatus{}, fmt.Errorf("iterating level counts: %w", err)
	}

	return index.SourceStatus{Source: src, LevelCounts: counts}, nil
}
