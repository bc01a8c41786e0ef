package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/investmcp/internal/archive"
	"github.com/JonMunkholm/investmcp/internal/config"
	"github.com/JonMunkholm/investmcp/internal/core"
	"github.com/JonMunkholm/investmcp/internal/errlog"
	"github.com/JonMunkholm/investmcp/internal/fileops"
	"github.com/JonMunkholm/investmcp/internal/ingest"
	"github.com/JonMunkholm/investmcp/internal/logging"
	"github.com/JonMunkholm/investmcp/internal/mcpserver"
	"github.com/JonMunkholm/investmcp/internal/sandbox"
	"github.com/JonMunkholm/investmcp/internal/store"
	"github.com/JonMunkholm/investmcp/internal/web"
	"github.com/JonMunkholm/investmcp/internal/workspace"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// stdout belongs to the stdio transport; log to stderr from the start.
	logging.Setup("info", "text", os.Stderr)

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	fs := pflag.NewFlagSet("investmcp", pflag.ExitOnError)
	flags := config.AddFlags(fs)
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	slog.Info("configuration loaded", "config", cfg.String(), "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	guard, err := sandbox.New(cfg.Workspace.Root)
	if err != nil {
		return fmt.Errorf("workspace root: %w", err)
	}
	st := store.New(guard)
	log := errlog.New(st, cfg.Workspace.ErrorLogPath)

	ws := workspace.New(guard, log, cfg.Workspace.DataDir)
	if err := ws.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap workspace: %w", err)
	}
	slog.Info("workspace ready", "root", guard.Root(), "data_dir", ws.DataDir())

	opts := ingest.Options{
		OutputDir:   ws.OutputDir(),
		MaxFileSize: cfg.Ingest.MaxFileSize,
	}
	if cfg.Database.ArchiveEnabled() {
		pool, err := archive.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		arc := archive.New(pool)
		if err := arc.Migrate(ctx); err != nil {
			return err
		}
		opts.Sink = arc
		slog.Info("analysis archive enabled")
	}

	limiter := core.NewOpLimiter(cfg.Ops.MaxConcurrent, cfg.Ops.MaxWaitTime)
	session := workspace.NewSession()
	server := mcpserver.New(mcpserver.Deps{
		Ops:         fileops.New(guard, log),
		Analyzer:    ingest.NewAnalyzer(st, log, opts),
		Workspace:   ws,
		Log:         log,
		Limiter:     limiter,
		Session:     session,
		CallTimeout: cfg.Ops.CallTimeout,
	}, version)

	defer func() {
		slog.Info("session cleared", "values", session.Clear())
	}()

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		return serveHTTP(ctx, cfg, server)
	default:
		slog.Info("serving on stdio")
		err := server.RunStdio(ctx)
		drain(cfg, limiter)
		return err
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, server *mcpserver.Server) error {
	httpServer := web.NewServer(server, cfg.Server)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	drain(cfg, server.Limiter())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// drain waits for in-flight tool calls so no document write is cut short.
func drain(cfg *config.Config, limiter *core.OpLimiter) {
	inFlight := limiter.InFlight()
	if inFlight == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("waiting for operations to complete", "in_flight", inFlight)
	if err := limiter.WaitForDrain(ctx); err != nil {
		slog.Warn("operations did not complete in time", "error", err)
		return
	}
	slog.Info("all operations completed")
}
