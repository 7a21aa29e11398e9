// Package postgres provides the Postgres-backed SummaryStore.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for summary rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the pool surface the store needs; pgxmock satisfies it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists summaries in Postgres, one row per video ID with
// last-writer-wins upsert semantics.
type Store struct {
	pool  querier
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "summaries"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool querier, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "summaries"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Save upserts the summary row; the newest write wins.
func (s *Store) Save(ctx context.Context, sum summary.StoredSummary) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("summary store is not configured")
	}
	if sum.VideoID == "" {
		return fmt.Errorf("video id is required")
	}
	sourcesJSON, err := json.Marshal(normalizeSources(sum.Sources))
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	video_id,
	video_url,
	summary,
	model,
	sources,
	prompt_hash,
	prompt_uri,
	summary_uri,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (video_id) DO UPDATE SET
	video_url = EXCLUDED.video_url,
	summary = EXCLUDED.summary,
	model = EXCLUDED.model,
	sources = EXCLUDED.sources,
	prompt_hash = EXCLUDED.prompt_hash,
	prompt_uri = EXCLUDED.prompt_uri,
	summary_uri = EXCLUDED.summary_uri,
	updated_at = EXCLUDED.updated_at`, s.table)

	args := []any{
		sum.VideoID,
		sum.VideoURL,
		sum.Summary,
		sum.Model,
		sourcesJSON,
		sum.PromptHash,
		sum.PromptURI,
		sum.SummaryURI,
		sum.CreatedAt,
		sum.UpdatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// Get fetches the summary row for a video ID; summary.ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, videoID string) (summary.StoredSummary, error) {
	if s == nil || s.pool == nil {
		return summary.StoredSummary{}, fmt.Errorf("summary store is not configured")
	}
	query := fmt.Sprintf(`
SELECT
	video_id,
	video_url,
	summary,
	model,
	sources,
	prompt_hash,
	prompt_uri,
	summary_uri,
	created_at,
	updated_at
FROM %s
WHERE video_id = $1`, s.table)

	var (
		sum         summary.StoredSummary
		sourcesJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, videoID).Scan(
		&sum.VideoID,
		&sum.VideoURL,
		&sum.Summary,
		&sum.Model,
		&sourcesJSON,
		&sum.PromptHash,
		&sum.PromptURI,
		&sum.SummaryURI,
		&sum.CreatedAt,
		&sum.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return summary.StoredSummary{}, summary.ErrNotFound
	}
	if err != nil {
		return summary.StoredSummary{}, fmt.Errorf("select summary: %w", err)
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &sum.Sources); err != nil {
			return summary.StoredSummary{}, fmt.Errorf("decode sources: %w", err)
		}
	}
	return sum, nil
}

// Delete removes the summary row. Missing rows are not an error; the
// operation stays idempotent.
func (s *Store) Delete(ctx context.Context, videoID string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("summary store is not configured")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE video_id = $1`, s.table)
	if _, err := s.pool.Exec(ctx, query, videoID); err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	return nil
}

func normalizeSources(sources []string) []string {
	if len(sources) == 0 {
		return []string{}
	}
	return append([]string(nil), sources...)
}
