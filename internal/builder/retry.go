package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/beedev/dbnotebook/internal/index"
)

// retryConfig bounds the retry behavior for collaborator calls.
type retryConfig struct {
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
}

// withRetry executes fn with exponential backoff up to maxAttempts.
// Config mismatches abort immediately - retrying cannot make a superseded
// model authoritative again. Context cancellation aborts between attempts.
func withRetry(ctx context.Context, logger *slog.Logger, op string, cfg retryConfig, fn func(context.Context) error) error {
	var lastErr error
	delay := cfg.initialInterval

	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, index.ErrConfigMismatch) {
			return err
		}
		if attempt == cfg.maxAttempts {
			break
		}

		logger.Debug("retrying after error",
			"op", op,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled during retry: %w", op, ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, cfg.maxInterval)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.maxAttempts, lastErr)
}
