package archive

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/investmcp/internal/ingest"
)

// fakeTx records statements. Methods the archive does not call panic through
// the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	execs      []string
	batched    int
	batchErr   error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	t.batched += b.Len()
	return fakeResults{err: t.batchErr}
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeResults struct {
	pgx.BatchResults
	err error
}

func (r fakeResults) Close() error { return r.err }

type fakeDB struct {
	tx    *fakeTx
	execs []string
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) { return d.tx, nil }

func (d *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, sql)
	return pgconn.CommandTag{}, nil
}

func sampleAnalysis() *ingest.Analysis {
	return &ingest.Analysis{
		AnalysisDate:   "2025-03-14T09:26:53+09:00",
		SourceCSVPath:  "investment_data/raw_data/holdings.csv",
		SourceChecksum: "abc123",
		Encoding:       "shift_jis",
		OutputPath:     "investment_data/output/portfolio_analysis_20250314_092653.json",
		Holdings: map[string]ingest.Holding{
			"VOO":  {Ticker: "VOO", Name: "Vanguard", ValueJPY: 500000, Shares: 5, PriceJPY: 100000, GainLossRate: 3},
			"AAPL": {Ticker: "AAPL", Name: " ", ValueJPY: 1234500, Shares: 10, PriceJPY: 123450, GainLossRate: 12.5},
		},
		Tickers:       []string{"AAPL", "VOO"},
		HoldingsCount: 2,
		TotalValue:    1734500,
	}
}

func TestArchive_CommitsOneTransaction(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	a := New(db)

	require.NoError(t, a.Archive(context.Background(), sampleAnalysis()))

	require.Len(t, db.tx.execs, 1)
	assert.Contains(t, db.tx.execs[0], "INSERT INTO portfolio_analyses")
	assert.Equal(t, 2, db.tx.batched)
	assert.True(t, db.tx.committed)
	assert.False(t, db.tx.rolledBack)
}

func TestArchive_BatchFailureRollsBack(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{batchErr: errors.New("duplicate key")}}
	a := New(db)

	err := a.Archive(context.Background(), sampleAnalysis())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert holdings")
	assert.False(t, db.tx.committed)
	assert.True(t, db.tx.rolledBack)
}

func TestMigrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, New(db).Migrate(context.Background()))
	require.Len(t, db.execs, 1)
	assert.True(t, strings.Contains(db.execs[0], "CREATE TABLE IF NOT EXISTS portfolio_holdings"))
}

func TestAnalysisParams(t *testing.T) {
	id := uuid.New()
	row, err := analysisParams(id, sampleAnalysis())
	require.NoError(t, err)

	assert.Equal(t, [16]byte(id), row.ID.Bytes)
	assert.Equal(t, 2025, row.AnalyzedAt.Time.Year())
	assert.Equal(t, int32(2), row.HoldingsCount.Int32)

	total, err := row.TotalValue.Float64Value()
	require.NoError(t, err)
	assert.Equal(t, 1734500.0, total.Float64)
	assert.Len(t, row.args(), 8)
}

func TestHoldingParams_FileOrderAndNullNames(t *testing.T) {
	rows, err := holdingParams(uuid.New(), sampleAnalysis())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "AAPL", rows[0].Ticker.String)
	assert.Equal(t, int32(0), rows[0].Position.Int32)
	assert.False(t, rows[0].Name.Valid, "blank names are stored as NULL")
	assert.Equal(t, "VOO", rows[1].Ticker.String)
	assert.Equal(t, "Vanguard", rows[1].Name.String)

	rate, err := rows[0].GainLossRate.Float64Value()
	require.NoError(t, err)
	assert.InDelta(t, 12.5, rate.Float64, 1e-9)
}

func TestToPgNumeric(t *testing.T) {
	n, err := toPgNumeric(0.1)
	require.NoError(t, err)
	assert.True(t, n.Valid)
	assert.Equal(t, int32(-1), n.Exp)
	assert.Equal(t, "1", n.Int.String())
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "invest", databaseName("postgres://user:pw@localhost:5432/invest?sslmode=disable"))
	assert.Equal(t, "", databaseName("::not a url"))
}
