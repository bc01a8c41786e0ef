package ingest

import "context"

// ColumnSet names the CSV headers each holding field is read from.
// Headers are matched exactly.
type ColumnSet struct {
	Ticker   string
	Value    string
	Shares   string
	GainLoss string
	Price    string
	Name     string
}

// BrokerColumns are the headers of the Japanese broker holdings export.
var BrokerColumns = ColumnSet{
	Ticker:   "ティッカー",
	Value:    "時価評価額[円]",
	Shares:   "保有数[株]",
	GainLoss: "損益率[円]",
	Price:    "評価単価[円]",
	Name:     "銘柄",
}

// Holding is one normalized position. Only rows with a ticker and a
// positive valuation become holdings.
type Holding struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	ValueJPY     float64 `json:"value_jpy"`
	Shares       float64 `json:"shares"`
	PriceJPY     float64 `json:"price_jpy"`
	GainLossRate float64 `json:"gain_loss_rate"`
}

// Analysis is the artifact persisted once per ingestion run.
type Analysis struct {
	AnalysisDate   string             `json:"analysis_date"`
	SourceCSVPath  string             `json:"source_csv_path"`
	SourceChecksum string             `json:"source_checksum"`
	Encoding       string             `json:"encoding"`
	Holdings       map[string]Holding `json:"holdings"`
	HoldingsCount  int                `json:"holdings_count"`
	TotalValue     float64            `json:"total_value"`
	RawSample      []map[string]any   `json:"raw_sample"`

	// OutputPath is where the artifact was saved, relative to the root.
	OutputPath string `json:"-"`
	// Tickers lists holding keys in the order they first appeared in the file.
	Tickers []string `json:"-"`
}

// Sink receives every saved analysis, e.g. to mirror it into a database.
type Sink interface {
	Archive(ctx context.Context, a *Analysis) error
}
