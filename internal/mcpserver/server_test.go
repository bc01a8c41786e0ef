package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/investmcp/internal/core"
	"github.com/JonMunkholm/investmcp/internal/errlog"
	"github.com/JonMunkholm/investmcp/internal/fileops"
	"github.com/JonMunkholm/investmcp/internal/ingest"
	"github.com/JonMunkholm/investmcp/internal/sandbox"
	"github.com/JonMunkholm/investmcp/internal/store"
	"github.com/JonMunkholm/investmcp/internal/workspace"
)

type harness struct {
	server  *Server
	session *mcp.ClientSession
	log     *errlog.Log
	root    string
}

func newHarness(t *testing.T, limiter *core.OpLimiter) harness {
	t.Helper()

	g, err := sandbox.New(t.TempDir())
	require.NoError(t, err)
	s := store.New(g)
	log := errlog.New(s, "")
	ws := workspace.New(g, log, "")
	require.NoError(t, ws.Bootstrap(context.Background()))

	srv := New(Deps{
		Ops:       fileops.New(g, log),
		Analyzer:  ingest.NewAnalyzer(s, log, ingest.Options{OutputDir: ws.OutputDir()}),
		Workspace: ws,
		Log:       log,
		Limiter:   limiter,
	}, "test")

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.serve(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
		cancel()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop after cancel")
		}
	})

	return harness{server: srv, session: session, log: log, root: g.Root()}
}

func (h harness) call(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := h.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, res.IsError
}

func (h harness) errorCount(t *testing.T) int {
	t.Helper()
	entries, err := h.log.Entries()
	require.NoError(t, err)
	return len(entries)
}

func TestListTools(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"instruction_policy",
		"investment_dashboard_policy",
		"read_code",
		"create_code",
		"update_code",
		"delete_code",
		"move_code",
		"list_files_in_directory",
		"create_directory",
		"analyze_portfolio_csv",
	}, names)
}

func TestFileTools_RoundTrip(t *testing.T) {
	h := newHarness(t, nil)

	text, isErr := h.call(t, "create_code", map[string]any{"file_path": "src/a.py", "content": "print(1)\n"})
	require.False(t, isErr, text)
	assert.Equal(t, "Code file 'src/a.py' created successfully.", text)

	text, isErr = h.call(t, "read_code", map[string]any{"file_path": "src/a.py"})
	require.False(t, isErr)
	assert.Equal(t, "print(1)\n", text)

	text, isErr = h.call(t, "create_code", map[string]any{"file_path": "src/a.py", "content": "again"})
	assert.True(t, isErr)
	assert.Contains(t, text, "FS002")

	text, isErr = h.call(t, "update_code", map[string]any{"file_path": "src/a.py", "new_str": "print(2)\n"})
	require.False(t, isErr, text)
	text, _ = h.call(t, "read_code", map[string]any{"file_path": "src/a.py"})
	assert.Equal(t, "print(2)\n", text)

	text, isErr = h.call(t, "move_code", map[string]any{"from_path": "src/a.py", "to_path": "lib/b.py"})
	require.False(t, isErr, text)

	text, isErr = h.call(t, "list_files_in_directory", map[string]any{"directory_path": "lib"})
	require.False(t, isErr)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(text), &names))
	assert.Equal(t, []string{"b.py"}, names)

	text, isErr = h.call(t, "delete_code", map[string]any{"file_path": "lib/b.py"})
	require.False(t, isErr, text)

	text, isErr = h.call(t, "delete_code", map[string]any{"file_path": "lib/b.py"})
	assert.False(t, isErr, "deleting a missing file is a warning")
	assert.Contains(t, text, "Warning:")

	// Only the duplicate create was a fault.
	assert.Equal(t, 1, h.errorCount(t))
}

func TestCreateCode_StructuredContent(t *testing.T) {
	h := newHarness(t, nil)

	_, isErr := h.call(t, "create_code", map[string]any{
		"file_path": "investment_data/philosophy/fixed_assets.json",
		"content":   map[string]any{"cash": 100},
	})
	require.False(t, isErr)

	data, err := os.ReadFile(filepath.Join(h.root, "investment_data", "philosophy", "fixed_assets.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"cash": 100}`, string(data))
}

func TestUpdateCode_ContentArguments(t *testing.T) {
	h := newHarness(t, nil)
	_, isErr := h.call(t, "create_code", map[string]any{"file_path": "a.txt", "content": "x"})
	require.False(t, isErr)

	text, isErr := h.call(t, "update_code", map[string]any{"file_path": "a.txt"})
	assert.True(t, isErr)
	assert.Contains(t, text, "ARG001")

	text, isErr = h.call(t, "update_code", map[string]any{"file_path": "a.txt", "new_content": "1", "new_str": "2"})
	assert.True(t, isErr)
	assert.Contains(t, text, "ARG001")

	_, isErr = h.call(t, "update_code", map[string]any{"file_path": "a.txt", "new_content": ""})
	assert.False(t, isErr, "empty content is a valid update")

	assert.Equal(t, 2, h.errorCount(t))
}

func TestFileTools_RejectEscape(t *testing.T) {
	h := newHarness(t, nil)

	for _, args := range []struct {
		tool string
		args map[string]any
	}{
		{"read_code", map[string]any{"file_path": "../outside.txt"}},
		{"create_code", map[string]any{"file_path": "../outside.txt", "content": "x"}},
		{"move_code", map[string]any{"from_path": "a.txt", "to_path": "../b.txt"}},
		{"list_files_in_directory", map[string]any{"directory_path": "/etc"}},
	} {
		text, isErr := h.call(t, args.tool, args.args)
		assert.True(t, isErr, args.tool)
		assert.Contains(t, text, "PATH001", args.tool)
	}

	_, err := os.Stat(filepath.Join(filepath.Dir(h.root), "outside.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestAnalyzePortfolioCSV(t *testing.T) {
	h := newHarness(t, nil)

	csv := "ティッカー,時価評価額[円],保有数[株],損益率[円],評価単価[円],銘柄\n" +
		"7203,\"1,500,000\",500,3.2%,3000,トヨタ自動車\n" +
		"VOO,\"2,000,000\",30,10.1%,66666,Vanguard S&P 500\n"
	_, isErr := h.call(t, "create_code", map[string]any{"file_path": "investment_data/raw_data/holdings.csv", "content": csv})
	require.False(t, isErr)

	text, isErr := h.call(t, "analyze_portfolio_csv", map[string]any{"csv_file_path": "investment_data/raw_data/holdings.csv"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "- Holdings: 2")
	assert.Contains(t, text, "7203")
	assert.Contains(t, text, "¥3,500,000")

	last, ok := h.server.Session().Get(SessionLastAnalysis)
	require.True(t, ok)
	assert.Contains(t, last, "investment_data/output/portfolio_analysis_")
	_, err := os.Stat(filepath.Join(h.root, filepath.FromSlash(last)))
	assert.NoError(t, err)

	text, isErr = h.call(t, "analyze_portfolio_csv", map[string]any{"csv_file_path": "investment_data/raw_data/missing.csv"})
	assert.True(t, isErr)
	assert.Contains(t, text, "CSV analysis failed")
	assert.Contains(t, text, "FS001")
}

func TestSessionFollowsMoveAndDelete(t *testing.T) {
	h := newHarness(t, nil)

	csv := "ティッカー,時価評価額[円],保有数[株],損益率[円],評価単価[円],銘柄\n" +
		"VOO,\"2,000,000\",30,10.1%,66666,Vanguard S&P 500\n"
	_, isErr := h.call(t, "create_code", map[string]any{"file_path": "investment_data/raw_data/holdings.csv", "content": csv})
	require.False(t, isErr)
	text, isErr := h.call(t, "analyze_portfolio_csv", map[string]any{"csv_file_path": "investment_data/raw_data/holdings.csv"})
	require.False(t, isErr, text)

	_, isErr = h.call(t, "move_code", map[string]any{
		"from_path": "./investment_data/raw_data/holdings.csv",
		"to_path":   "investment_data/archive/holdings.csv",
	})
	require.False(t, isErr)
	last, ok := h.server.Session().Get(SessionLastCSV)
	require.True(t, ok)
	assert.Equal(t, "investment_data/archive/holdings.csv", last)

	analysis, ok := h.server.Session().Get(SessionLastAnalysis)
	require.True(t, ok)
	_, isErr = h.call(t, "delete_code", map[string]any{"file_path": analysis})
	require.False(t, isErr)
	_, ok = h.server.Session().Get(SessionLastAnalysis)
	assert.False(t, ok)
	assert.Equal(t, []string{SessionLastCSV}, h.server.Session().Keys())
}

func TestPolicyTools(t *testing.T) {
	h := newHarness(t, nil)

	text, isErr := h.call(t, "instruction_policy", map[string]any{})
	require.False(t, isErr)
	assert.Equal(t, workspace.InstructionPolicy(), text)

	text, isErr = h.call(t, "investment_dashboard_policy", map[string]any{})
	require.False(t, isErr)
	assert.Equal(t, workspace.DashboardPolicy(), text)
}

func TestResources(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	list, err := h.session.ListResources(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list.Resources, len(workspace.Resources)+1)

	res, err := h.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "investment://fixed_assets"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	r, _ := workspace.LookupResource("investment://fixed_assets")
	assert.Equal(t, r.Missing, res.Contents[0].Text)

	require.NoError(t, os.WriteFile(filepath.Join(h.root, "investment_data", "philosophy", "fixed_assets.json"), []byte(`{"gold": 1}`), 0o644))
	res, err = h.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "investment://fixed_assets"})
	require.NoError(t, err)
	assert.Equal(t, `{"gold": 1}`, res.Contents[0].Text)
}

func TestPrompts(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.session.GetPrompt(context.Background(), &mcp.GetPromptParams{Name: "investment_dashboard_policy"})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text, ok := res.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, workspace.DashboardPolicy(), text.Text)
}

func TestCall_LimiterBusy(t *testing.T) {
	limiter := core.NewOpLimiter(1, 20*time.Millisecond)
	h := newHarness(t, limiter)

	require.True(t, limiter.TryAcquire())
	text, isErr := h.call(t, "read_code", map[string]any{"file_path": "a.txt"})
	limiter.Release()

	assert.True(t, isErr)
	assert.Contains(t, text, "OPS001")
	assert.Equal(t, 1, h.errorCount(t))
	assert.Equal(t, 0, limiter.InFlight())
}

func TestCall_RecoversPanic(t *testing.T) {
	h := newHarness(t, nil)

	res := h.server.call(context.Background(), "boom", func(context.Context) *mcp.CallToolResult {
		panic("kaboom")
	})

	require.True(t, res.IsError)
	assert.Contains(t, res.Content[0].(*mcp.TextContent).Text, "kaboom")
	assert.Equal(t, 1, h.errorCount(t))
	assert.Equal(t, 0, h.server.Limiter().InFlight(), "slot is released after a panic")
}

func TestErrorLogResource(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, isErr := h.call(t, "read_code", map[string]any{"file_path": "nope.txt"})
	require.True(t, isErr)

	res, err := h.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: ErrorLogURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	var entries []errlog.Entry
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &entries))
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ErrorMessage, "nope.txt")
}
