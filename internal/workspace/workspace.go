// Package workspace owns the investment data layout under the root: the
// directories created at startup, the philosophy documents served as
// resources and the policy texts handed to the agent.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/JonMunkholm/investmcp/internal/errlog"
	"github.com/JonMunkholm/investmcp/internal/logging"
	"github.com/JonMunkholm/investmcp/internal/sandbox"
)

// DefaultDataDir is the investment data directory relative to the root.
const DefaultDataDir = "investment_data"

// Subdirs are created under the data directory on startup.
var Subdirs = []string{"raw_data", "dashboards", "philosophy", "processed", "output"}

// Workspace resolves investment data paths through a guard.
type Workspace struct {
	guard   *sandbox.Guard
	log     *errlog.Log
	dataDir string
}

// New creates a Workspace rooted at guard with data under dataDir.
func New(guard *sandbox.Guard, log *errlog.Log, dataDir string) *Workspace {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	return &Workspace{guard: guard, log: log, dataDir: dataDir}
}

// DataDir returns the data directory relative to the root.
func (w *Workspace) DataDir() string {
	return w.dataDir
}

// OutputDir returns where analysis documents go, relative to the root.
func (w *Workspace) OutputDir() string {
	return path.Join(w.dataDir, "output")
}

// Bootstrap creates the data directory and its subdirectories. Existing
// directories are left as they are.
func (w *Workspace) Bootstrap(ctx context.Context) error {
	for _, sub := range Subdirs {
		rel := path.Join(w.dataDir, sub)
		p, err := w.guard.Resolve(rel)
		if err != nil {
			return fmt.Errorf("bootstrap %s: %w", rel, err)
		}
		if err := os.MkdirAll(p.Abs, 0o755); err != nil {
			return fmt.Errorf("bootstrap %s: %w", rel, err)
		}
	}
	logging.FromContext(ctx).Debug("workspace ready", "root", w.guard.Root(), "data_dir", w.dataDir)
	return nil
}
