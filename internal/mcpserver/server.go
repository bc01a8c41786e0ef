// Package mcpserver exposes the workspace operations as MCP tools, resources
// and prompts. Every tool call gets an invocation ID, a deadline and a slot
// from the operation limiter; a panic inside a handler becomes a fault result
// instead of taking the process down.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/JonMunkholm/investmcp/internal/core"
	"github.com/JonMunkholm/investmcp/internal/errlog"
	"github.com/JonMunkholm/investmcp/internal/fileops"
	"github.com/JonMunkholm/investmcp/internal/ingest"
	"github.com/JonMunkholm/investmcp/internal/logging"
	"github.com/JonMunkholm/investmcp/internal/workspace"
)

const (
	serverName = "Investment Management System"

	// DefaultCallTimeout caps a tool call when Deps.CallTimeout is zero.
	DefaultCallTimeout = 2 * time.Minute
)

// Deps are the components the tools dispatch to.
type Deps struct {
	Ops       *fileops.Ops
	Analyzer  *ingest.Analyzer
	Workspace *workspace.Workspace
	Log       *errlog.Log
	Limiter   *core.OpLimiter
	Session   *workspace.Session

	CallTimeout time.Duration
}

// Server is the MCP front end of the workspace.
type Server struct {
	mcp  *mcp.Server
	deps Deps
}

// New builds the server and registers every tool, resource and prompt.
func New(deps Deps, version string) *Server {
	if deps.Limiter == nil {
		deps.Limiter = core.NewOpLimiter(core.DefaultMaxConcurrentOps, core.DefaultMaxWaitTime)
	}
	if deps.Session == nil {
		deps.Session = workspace.NewSession()
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = DefaultCallTimeout
	}

	s := &Server{
		mcp:  mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil),
		deps: deps,
	}
	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Session returns the per-server scratch state.
func (s *Server) Session() *workspace.Session {
	return s.deps.Session
}

// Limiter returns the operation limiter guarding tool calls.
func (s *Server) Limiter() *core.OpLimiter {
	return s.deps.Limiter
}

// RunStdio serves one client over stdin/stdout until ctx is done or the
// client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.serve(ctx, &mcp.StdioTransport{})
}

func (s *Server) serve(ctx context.Context, transport mcp.Transport) error {
	err := s.mcp.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// HTTPHandler serves the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}

// call runs fn as one tool invocation: it tags ctx with an invocation ID,
// applies the call deadline, holds a limiter slot and converts a panic into a
// fault result.
func (s *Server) call(ctx context.Context, tool string, fn func(ctx context.Context) *mcp.CallToolResult) (res *mcp.CallToolResult) {
	ctx = logging.ContextWithInvocationID(ctx, uuid.NewString())
	ctx, cancel := context.WithTimeout(ctx, s.deps.CallTimeout)
	defer cancel()

	logger := logging.WithFields(ctx, "tool", tool)
	start := time.Now()

	if err := s.deps.Limiter.Acquire(ctx); err != nil {
		return s.fault(ctx, err)
	}
	defer s.deps.Limiter.Release()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool panic", "panic", r, "stack", string(debug.Stack()))
			res = s.fault(ctx, fmt.Errorf("internal error in %s: %v", tool, r))
		}
	}()

	res = fn(ctx)
	logger.Debug("tool call complete", "is_error", res.IsError, "duration", time.Since(start))
	return res
}

// fault records err in the error log and renders it for the agent.
func (s *Server) fault(ctx context.Context, err error) *mcp.CallToolResult {
	logger := logging.FromContext(ctx)
	if core.IsKnown(err) {
		logger.Warn("tool fault", "error", err)
	} else {
		logger.Error("unexpected tool fault", "error", err)
	}
	s.deps.Log.Record(ctx, err.Error())
	return errorResult("Error: " + core.FormatUserError(err))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// fromFileResult converts a file operation outcome. Warnings are not errors.
func fromFileResult(r fileops.Result) *mcp.CallToolResult {
	if r.Status == fileops.StatusFault {
		return errorResult(r.Text())
	}
	return textResult(r.Text())
}
