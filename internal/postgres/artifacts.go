package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/beedev/dbnotebook/internal/index"
)

// SaveArtifact persists a transformation artifact and flips the source to
// completed in one transaction, so a saved artifact and a completed status
// are never observed apart.
func (s *Store) SaveArtifact(ctx context.Context, artifact index.TransformationArtifact) error {
	insightsJSON, err := json.Marshal(artifact.KeyInsights)
	if err != nil {
		return fmt.Errorf("marshaling key insights: %w", err)
	}
	questionsJSON, err := json.Marshal(artifact.ReflectionQuestions)
	if err != nil {
		return fmt.Errorf("marshaling reflection questions: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning artifact transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO transformation_artifacts (source_id, dense_summary, key_insights, reflection_questions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id) DO UPDATE SET
			dense_summary = excluded.dense_summary,
			key_insights = excluded.key_insights,
			reflection_questions = excluded.reflection_questions,
			created_at = now()`,
		artifact.SourceID, artifact.DenseSummary, insightsJSON, questionsJSON)
	if err != nil {
		return fmt.Errorf("saving artifact for source %s: %w", artifact.SourceID, err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE sources
		SET transformation_status = 'completed', transformation_error = NULL, transformed_at = now(), updated_at = now()
		WHERE id = $1 AND transformation_status = 'processing'`, artifact.SourceID)
	if err != nil {
		return fmt.Errorf("completing transform for source %s: %w", artifact.SourceID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %s no longer in processing state", artifact.SourceID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing artifact for source %s: %w", artifact.SourceID, err)
	}

	s.logger.Debug("transformation artifact saved", "source_id", artifact.SourceID)
	return nil
}

// ArtifactBySource loads a source's transformation artifact.
// Returns index.ErrNotFound if the transformation has not completed.
func (s *Store) ArtifactBySource(ctx context.Context, sourceID uuid.UUID) (index.TransformationArtifact, error) {
	row := s.db.QueryRow(ctx, `
		SELECT source_id, dense_summary, key_insights, reflection_questions, created_at
		FROM transformation_artifacts
		WHERE source_id = $1`, sourceID)

	var (
		artifact      index.TransformationArtifact
		insightsJSON  []byte
		questionsJSON []byte
	)
	err := row.Scan(&artifact.SourceID, &artifact.DenseSummary, &insightsJSON, &questionsJSON, &artifact.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return index.TransformationArtifact{}, fmt.Errorf("artifact for source %s: %w", sourceID, index.ErrNotFound)
	}
	if err != nil {
		return index.TransformationArtifact{}, fmt.Errorf("loading artifact for source %s: %w", sourceID, err)
	}

	if err := json.Unmarshal(insightsJSON, &artifact.KeyInsights); err != nil {
		return index.TransformationArtifact{}, fmt.Errorf("parsing key insights: %w", err)
	}
	if err := json.Unmarshal(questionsJSON, &artifact.ReflectionQuestions); err != nil {
		return index.TransformationArtifact{}, fmt.Errorf("parsing reflection questions: %w", err)
	}
	return artifact, nil
}
