package ingest

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// summaryTickers is how many tickers the report lists.
const summaryTickers = 5

var yen = message.NewPrinter(language.Japanese)

// Summary renders the human-readable ingestion report returned to the agent.
func Summary(a *Analysis) string {
	tickers := a.Tickers
	if len(tickers) > summaryTickers {
		tickers = tickers[:summaryTickers]
	}
	listed := strings.Join(tickers, ", ")
	if listed == "" {
		listed = "(none)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CSV analysis complete: %s\n\n", a.SourceCSVPath)
	b.WriteString("Extracted data:\n")
	fmt.Fprintf(&b, "- Holdings: %d\n", a.HoldingsCount)
	fmt.Fprintf(&b, "- Total value: ¥%s\n", yen.Sprintf("%.0f", a.TotalValue))
	fmt.Fprintf(&b, "- Tickers: %s\n", listed)
	fmt.Fprintf(&b, "- Encoding: %s\n", a.Encoding)
	fmt.Fprintf(&b, "\nAnalysis saved to: %s\n", a.OutputPath)
	b.WriteString("\nNext steps:\n")
	b.WriteString("1. Compare holdings against investment://barbell_strategy\n")
	b.WriteString("2. Classify tickers with investment://stock_mapping\n")
	b.WriteString("3. Update investment://fixed_assets if non-listed assets changed\n")
	b.WriteString("4. Build the dashboard following investment_dashboard_policy\n")
	return b.String()
}
