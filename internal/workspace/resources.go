package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
)

// Resource is a philosophy document exposed under a fixed URI.
type Resource struct {
	URI         string
	Name        string
	Description string
	MIMEType    string
	// File is relative to the data directory.
	File string
	// Missing is returned instead of content when File does not exist.
	Missing string
}

// Resources are the documents the dashboard workflow reads before analysis.
var Resources = []Resource{
	{
		URI:         "investment://barbell_strategy",
		Name:        "barbell_strategy",
		Description: "Barbell strategy investment rules and principles.",
		MIMEType:    "text/markdown",
		File:        "philosophy/barbell_strategy.md",
		Missing:     "Barbell strategy rules not found. Create philosophy/barbell_strategy.md under the data directory.",
	},
	{
		URI:         "investment://fixed_assets",
		Name:        "fixed_assets",
		Description: "Fixed assets such as cash and mutual funds.",
		MIMEType:    "application/json",
		File:        "philosophy/fixed_assets.json",
		Missing:     "Fixed asset data not found. Create philosophy/fixed_assets.json under the data directory.",
	},
	{
		URI:         "investment://stock_mapping",
		Name:        "stock_mapping",
		Description: "Ticker classification into attack, defense and middle.",
		MIMEType:    "application/json",
		File:        "philosophy/stock_mapping.json",
		Missing:     "Ticker classification not found. Create philosophy/stock_mapping.json under the data directory.",
	},
}

// LookupResource returns the resource registered under uri.
func LookupResource(uri string) (Resource, bool) {
	for _, r := range Resources {
		if r.URI == uri {
			return r, true
		}
	}
	return Resource{}, false
}

// ReadResource returns the text of r. A missing file yields r.Missing; any
// other failure is recorded in the error log and described in the text.
func (w *Workspace) ReadResource(ctx context.Context, r Resource) string {
	rel := path.Join(w.dataDir, r.File)

	p, err := w.guard.Resolve(rel)
	if err != nil {
		return w.resourceError(ctx, r, err)
	}

	data, err := os.ReadFile(p.Abs)
	if errors.Is(err, fs.ErrNotExist) {
		return r.Missing
	}
	if err != nil {
		return w.resourceError(ctx, r, err)
	}
	return string(data)
}

func (w *Workspace) resourceError(ctx context.Context, r Resource, err error) string {
	w.log.Record(ctx, err.Error())
	return fmt.Sprintf("[Error] failed to read %s: %v", r.Name, err)
}
