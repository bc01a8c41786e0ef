// Package archive mirrors saved portfolio analyses into PostgreSQL so past
// runs can be queried with SQL. The JSON document on disk stays the source of
// truth; the archive is optional and best effort.
package archive

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/investmcp/internal/config"
	"github.com/JonMunkholm/investmcp/internal/ingest"
	"github.com/JonMunkholm/investmcp/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS portfolio_analyses (
	id              UUID PRIMARY KEY,
	analyzed_at     TIMESTAMPTZ NOT NULL,
	source_csv_path TEXT NOT NULL,
	source_checksum TEXT NOT NULL,
	encoding        TEXT NOT NULL,
	output_path     TEXT NOT NULL,
	holdings_count  INTEGER NOT NULL,
	total_value     NUMERIC NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolio_holdings (
	analysis_id    UUID NOT NULL REFERENCES portfolio_analyses(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	ticker         TEXT NOT NULL,
	name           TEXT,
	value_jpy      NUMERIC NOT NULL,
	shares         NUMERIC NOT NULL,
	price_jpy      NUMERIC NOT NULL,
	gain_loss_rate NUMERIC NOT NULL,
	PRIMARY KEY (analysis_id, ticker)
);

CREATE INDEX IF NOT EXISTS portfolio_holdings_ticker_idx ON portfolio_holdings (ticker);
`

const insertAnalysis = `
INSERT INTO portfolio_analyses
	(id, analyzed_at, source_csv_path, source_checksum, encoding, output_path, holdings_count, total_value)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const insertHolding = `
INSERT INTO portfolio_holdings
	(analysis_id, position, ticker, name, value_jpy, shares, price_jpy, gain_loss_rate)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// DB is the subset of *pgxpool.Pool the archive needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Archive writes analyses to PostgreSQL. It implements ingest.Sink.
type Archive struct {
	db    DB
	newID func() uuid.UUID
}

var _ ingest.Sink = (*Archive)(nil)

// New creates an Archive over db.
func New(db DB) *Archive {
	return &Archive{db: db, newID: uuid.New}
}

// Connect opens a pool from cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logging.FromContext(ctx).Info("connected to archive database", "name", databaseName(cfg.URL))
	return pool, nil
}

// Migrate creates the archive tables if they do not exist.
func (a *Archive) Migrate(ctx context.Context) error {
	if _, err := a.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate archive schema: %w", err)
	}
	return nil
}

// Archive stores an analysis and its holdings in one transaction.
func (a *Archive) Archive(ctx context.Context, an *ingest.Analysis) error {
	id := a.newID()
	params, err := analysisParams(id, an)
	if err != nil {
		return err
	}
	rows, err := holdingParams(id, an)
	if err != nil {
		return err
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if _, err := tx.Exec(ctx, insertAnalysis, params.args()...); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	if len(rows) > 0 {
		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(insertHolding, r.args()...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert holdings: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.WithFields(ctx, "analysis_id", id.String()).Info("analysis archived", "holdings", len(rows))
	return nil
}

// analysisTime reads the analysis timestamp, falling back to now for
// documents produced without one.
func analysisTime(an *ingest.Analysis) time.Time {
	if t, err := time.Parse(time.RFC3339, an.AnalysisDate); err == nil {
		return t
	}
	return time.Now()
}

// databaseName returns the database part of a connection URL for logging.
func databaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
