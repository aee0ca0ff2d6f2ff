// Package postgres persists the hierarchical retrieval index in
// PostgreSQL + pgvector.
//
// One Store carries all record families - sources, tree nodes, embedding
// configs, transformation artifacts - split across files by family. The
// consuming packages (builder, retrieval, transform, worker, ingest, guard)
// each declare their own narrow interface that *Store satisfies.
//
// Writes that must be atomic (build commit, rebuild reset, artifact save)
// run in a single transaction; readers therefore never observe a partially
// committed tree.
package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// DB is the slice of pgxpool.Pool the store depends on.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store provides data access over the index schema.
// Safe for concurrent use; transactions are per-call.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default.
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// RegisterVectorTypes registers the pgvector codecs on a new connection.
// Wire it as pgxpool.Config.AfterConnect; vector columns cannot be scanned
// without it.
func RegisterVectorTypes(ctx context.Context, conn *pgx.Conn) error {
	return pgxvec.RegisterTypes(ctx, conn)
}

// NewPoolConfig parses a pgx DSN and attaches the pgvector type
// registration hook.
func NewPoolConfig(dsn string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.AfterConnect = RegisterVectorTypes
	return cfg, nil
}
