// Package ingest turns broker CSV exports into portfolio analysis documents.
package ingest

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeebo/blake3"

	"github.com/JonMunkholm/investmcp/internal/core"
	"github.com/JonMunkholm/investmcp/internal/errlog"
	"github.com/JonMunkholm/investmcp/internal/logging"
	"github.com/JonMunkholm/investmcp/internal/store"
)

const (
	// DefaultOutputDir is where analysis documents are written, relative to the root.
	DefaultOutputDir = "investment_data/output"

	// DefaultMaxFileSize bounds the CSV read into memory.
	DefaultMaxFileSize int64 = 32 << 20

	// RawSampleSize is how many raw rows are kept for spot checks.
	RawSampleSize = 3

	outputTimeLayout = "20060102_150405"
)

// Options configures an Analyzer. Zero values select the defaults.
type Options struct {
	Columns     ColumnSet
	Encodings   []Encoding
	OutputDir   string
	MaxFileSize int64
	Sink        Sink
}

// Analyzer ingests CSV files found under the workspace root.
type Analyzer struct {
	store *store.Store
	log   *errlog.Log
	opts  Options
	now   func() time.Time
}

// NewAnalyzer creates an Analyzer that reads and writes through s and records
// failures in log.
func NewAnalyzer(s *store.Store, log *errlog.Log, opts Options) *Analyzer {
	if opts.Columns == (ColumnSet{}) {
		opts.Columns = BrokerColumns
	}
	if len(opts.Encodings) == 0 {
		opts.Encodings = DefaultEncodings
	}
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return &Analyzer{store: s, log: log, opts: opts, now: time.Now}
}

// Analyze reads the CSV at csvPath, extracts holdings, saves the analysis
// document and returns it. Every failure is also recorded in the error log.
func (a *Analyzer) Analyze(ctx context.Context, csvPath string) (*Analysis, error) {
	logger := logging.WithFields(ctx, "csv", csvPath)

	result, err := a.analyze(ctx, csvPath)
	if err != nil {
		logger.Warn("csv ingest failed", "error", err)
		a.log.Record(ctx, err.Error())
		return nil, err
	}

	logger.Info("csv ingested",
		"holdings", result.HoldingsCount,
		"encoding", result.Encoding,
		"output", result.OutputPath,
	)

	if a.opts.Sink != nil {
		if err := a.opts.Sink.Archive(ctx, result); err != nil {
			// The document is already saved; archiving is best effort.
			logger.Error("archive analysis failed", "error", err)
			a.log.Record(ctx, fmt.Sprintf("archive %s: %v", result.OutputPath, err))
		}
	}

	return result, nil
}

func (a *Analyzer) analyze(ctx context.Context, csvPath string) (*Analysis, error) {
	p, err := a.store.Guard().Resolve(csvPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p.Abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("CSV file '%s' %w", csvPath, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("'%s' is a directory, not a CSV file", csvPath)
	}
	if info.Size() > a.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: '%s' is %d bytes (limit %d)", core.ErrFileTooLarge, csvPath, info.Size(), a.opts.MaxFileSize)
	}

	data, err := os.ReadFile(p.Abs)
	if err != nil {
		return nil, fmt.Errorf("read '%s': %w", csvPath, err)
	}

	text, encName, err := Decode(data, a.opts.Encodings)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s'", err, csvPath)
	}

	records, err := parseCSV(text)
	if err != nil {
		return nil, fmt.Errorf("parse '%s': %w", csvPath, err)
	}

	sum := blake3.Sum256(data)
	now := a.now()
	result := Extract(records, a.opts.Columns)
	result.AnalysisDate = now.Format(time.RFC3339)
	result.SourceCSVPath = csvPath
	result.SourceChecksum = hex.EncodeToString(sum[:])
	result.Encoding = encName

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := a.outputPath(now)
	if err != nil {
		return nil, err
	}
	if err := a.store.Save(out, result); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	result.OutputPath = out

	return result, nil
}

// outputPath names the artifact after the run's local second. Two runs in the
// same second get a short random suffix instead of overwriting each other.
func (a *Analyzer) outputPath(now time.Time) (string, error) {
	base := "portfolio_analysis_" + now.Format(outputTimeLayout)
	out := path.Join(a.opts.OutputDir, base+".json")

	exists, err := a.store.Exists(out)
	if err != nil {
		return "", err
	}
	if !exists {
		return out, nil
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return path.Join(a.opts.OutputDir, base+"_"+suffix+".json"), nil
}

// Extract builds the holdings part of an analysis from parsed CSV records.
// The first record is the header. A row becomes a holding only if its ticker
// is non-empty after trimming and its valuation is positive; a later row with
// the same ticker replaces an earlier one.
func Extract(records [][]string, cols ColumnSet) *Analysis {
	result := &Analysis{
		Holdings:  make(map[string]Holding),
		RawSample: make([]map[string]any, 0, RawSampleSize),
	}
	if len(records) == 0 {
		return result
	}

	header := records[0]
	idx := makeHeaderIndex(header)
	seen := make(map[string]bool)

	for i, row := range records[1:] {
		if i < RawSampleSize {
			result.RawSample = append(result.RawSample, rawRow(header, row))
		}

		ticker := NormalizeTicker(idx.cell(row, cols.Ticker))
		value := ParseNumber(idx.cell(row, cols.Value))
		if ticker == "" || value <= 0 {
			continue
		}

		result.Holdings[ticker] = Holding{
			Ticker:       ticker,
			Name:         strings.TrimSpace(idx.cell(row, cols.Name)),
			ValueJPY:     value,
			Shares:       ParseNumber(idx.cell(row, cols.Shares)),
			PriceJPY:     ParseNumber(idx.cell(row, cols.Price)),
			GainLossRate: ParseNumber(idx.cell(row, cols.GainLoss)),
		}
		if !seen[ticker] {
			seen[ticker] = true
			result.Tickers = append(result.Tickers, ticker)
		}
	}

	total := decimal.Zero
	for _, t := range result.Tickers {
		total = total.Add(decimal.NewFromFloat(result.Holdings[t].ValueJPY))
	}
	result.TotalValue = total.InexactFloat64()
	result.HoldingsCount = len(result.Holdings)

	return result
}

func parseCSV(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}
