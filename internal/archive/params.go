package archive

// params.go converts analysis values to pgtype parameters. Empty text becomes
// NULL; numbers go through decimal so the NUMERIC columns hold the shortest
// exact representation of each float rather than its binary expansion.

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/investmcp/internal/ingest"
)

type analysisRow struct {
	ID             pgtype.UUID
	AnalyzedAt     pgtype.Timestamptz
	SourceCSVPath  pgtype.Text
	SourceChecksum pgtype.Text
	Encoding       pgtype.Text
	OutputPath     pgtype.Text
	HoldingsCount  pgtype.Int4
	TotalValue     pgtype.Numeric
}

func (r analysisRow) args() []any {
	return []any{r.ID, r.AnalyzedAt, r.SourceCSVPath, r.SourceChecksum, r.Encoding, r.OutputPath, r.HoldingsCount, r.TotalValue}
}

type holdingRow struct {
	AnalysisID   pgtype.UUID
	Position     pgtype.Int4
	Ticker       pgtype.Text
	Name         pgtype.Text
	ValueJPY     pgtype.Numeric
	Shares       pgtype.Numeric
	PriceJPY     pgtype.Numeric
	GainLossRate pgtype.Numeric
}

func (r holdingRow) args() []any {
	return []any{r.AnalysisID, r.Position, r.Ticker, r.Name, r.ValueJPY, r.Shares, r.PriceJPY, r.GainLossRate}
}

func analysisParams(id uuid.UUID, an *ingest.Analysis) (analysisRow, error) {
	total, err := toPgNumeric(an.TotalValue)
	if err != nil {
		return analysisRow{}, fmt.Errorf("total_value: %w", err)
	}
	return analysisRow{
		ID:             toPgUUID(id),
		AnalyzedAt:     pgtype.Timestamptz{Time: analysisTime(an), Valid: true},
		SourceCSVPath:  pgtype.Text{String: an.SourceCSVPath, Valid: true},
		SourceChecksum: pgtype.Text{String: an.SourceChecksum, Valid: true},
		Encoding:       pgtype.Text{String: an.Encoding, Valid: true},
		OutputPath:     pgtype.Text{String: an.OutputPath, Valid: true},
		HoldingsCount:  pgtype.Int4{Int32: int32(an.HoldingsCount), Valid: true},
		TotalValue:     total,
	}, nil
}

// holdingParams returns one row per holding in first-seen file order.
func holdingParams(id uuid.UUID, an *ingest.Analysis) ([]holdingRow, error) {
	rows := make([]holdingRow, 0, len(an.Tickers))
	for i, ticker := range an.Tickers {
		h, ok := an.Holdings[ticker]
		if !ok {
			continue
		}

		var nums [4]pgtype.Numeric
		for j, f := range []float64{h.ValueJPY, h.Shares, h.PriceJPY, h.GainLossRate} {
			n, err := toPgNumeric(f)
			if err != nil {
				return nil, fmt.Errorf("holding %s: %w", ticker, err)
			}
			nums[j] = n
		}

		rows = append(rows, holdingRow{
			AnalysisID:   toPgUUID(id),
			Position:     pgtype.Int4{Int32: int32(i), Valid: true},
			Ticker:       pgtype.Text{String: h.Ticker, Valid: true},
			Name:         toPgText(h.Name),
			ValueJPY:     nums[0],
			Shares:       nums[1],
			PriceJPY:     nums[2],
			GainLossRate: nums[3],
		})
	}
	return rows, nil
}

// toPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgNumeric(f float64) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(decimal.NewFromFloat(f).String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
