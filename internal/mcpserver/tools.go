package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/JonMunkholm/investmcp/internal/core"
	"github.com/JonMunkholm/investmcp/internal/ingest"
	"github.com/JonMunkholm/investmcp/internal/workspace"
)

// ReadCodeInput represents the read_code tool input.
type ReadCodeInput struct {
	FilePath string `json:"file_path" jsonschema:"file path relative to the workspace root"`
}

// CreateCodeInput represents the create_code tool input.
type CreateCodeInput struct {
	FilePath string `json:"file_path" jsonschema:"file path relative to the workspace root"`
	Content  any    `json:"content" jsonschema:"file content; a string is written verbatim and any other JSON value is written as indented JSON"`
}

// UpdateCodeInput represents the update_code tool input. new_str is accepted
// as an alias of new_content.
type UpdateCodeInput struct {
	FilePath   string  `json:"file_path" jsonschema:"file path relative to the workspace root"`
	NewContent *string `json:"new_content,omitempty" jsonschema:"the complete new file content"`
	NewStr     *string `json:"new_str,omitempty" jsonschema:"alias of new_content"`
}

// DeleteCodeInput represents the delete_code tool input.
type DeleteCodeInput struct {
	FilePath string `json:"file_path" jsonschema:"file path relative to the workspace root"`
}

// MoveCodeInput represents the move_code tool input.
type MoveCodeInput struct {
	FromPath string `json:"from_path" jsonschema:"source file path relative to the workspace root"`
	ToPath   string `json:"to_path" jsonschema:"destination path; missing parent directories are created"`
}

// ListFilesInput represents the list_files_in_directory tool input.
type ListFilesInput struct {
	DirectoryPath string `json:"directory_path" jsonschema:"directory path relative to the workspace root"`
}

// CreateDirectoryInput represents the create_directory tool input.
type CreateDirectoryInput struct {
	Path string `json:"path" jsonschema:"directory path relative to the workspace root"`
}

// AnalyzePortfolioInput represents the analyze_portfolio_csv tool input.
type AnalyzePortfolioInput struct {
	CSVFilePath string `json:"csv_file_path" jsonschema:"broker holdings CSV path relative to the workspace root"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, InstructionPolicyTool(), s.policyHandler("instruction_policy", workspace.InstructionPolicy))
	mcp.AddTool(s.mcp, DashboardPolicyTool(), s.policyHandler("investment_dashboard_policy", workspace.DashboardPolicy))
	mcp.AddTool(s.mcp, ReadCodeTool(), s.readCodeHandler())
	mcp.AddTool(s.mcp, CreateCodeTool(), s.createCodeHandler())
	mcp.AddTool(s.mcp, UpdateCodeTool(), s.updateCodeHandler())
	mcp.AddTool(s.mcp, DeleteCodeTool(), s.deleteCodeHandler())
	mcp.AddTool(s.mcp, MoveCodeTool(), s.moveCodeHandler())
	mcp.AddTool(s.mcp, ListFilesTool(), s.listFilesHandler())
	mcp.AddTool(s.mcp, CreateDirectoryTool(), s.createDirectoryHandler())
	mcp.AddTool(s.mcp, AnalyzePortfolioTool(), s.analyzePortfolioHandler())
}

// InstructionPolicyTool defines the MCP tool schema for the operating policy.
func InstructionPolicyTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "instruction_policy",
		Description: "Operating rules the agent must follow. Read this before using any other tool.",
	}
}

// DashboardPolicyTool defines the MCP tool schema for the dashboard workflow.
func DashboardPolicyTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "investment_dashboard_policy",
		Description: "Portfolio analysis and dashboard workflow based on the barbell strategy. Read this first for any investment task.",
	}
}

// ReadCodeTool defines the MCP tool schema for reading a file.
func ReadCodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "read_code",
		Description: "Reads the content of a file. Fails if the file does not exist.",
	}
}

// CreateCodeTool defines the MCP tool schema for creating a file.
func CreateCodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "create_code",
		Description: "Creates a new file. Fails if a file with the same name already exists.",
	}
}

// UpdateCodeTool defines the MCP tool schema for replacing a file's content.
func UpdateCodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "update_code",
		Description: "Replaces the whole content of an existing file. Pass the content as new_content or new_str.",
	}
}

// DeleteCodeTool defines the MCP tool schema for deleting a file.
func DeleteCodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "delete_code",
		Description: "Deletes a file. Deleting a missing file only returns a warning.",
	}
}

// MoveCodeTool defines the MCP tool schema for moving a file.
func MoveCodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "move_code",
		Description: "Moves a file, creating the destination directory if needed.",
	}
}

// ListFilesTool defines the MCP tool schema for listing a directory.
func ListFilesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_files_in_directory",
		Description: "Lists the files and subdirectories of a directory as a JSON array of names.",
	}
}

// CreateDirectoryTool defines the MCP tool schema for creating a directory.
func CreateDirectoryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "create_directory",
		Description: "Creates a directory and any missing parents.",
	}
}

// AnalyzePortfolioTool defines the MCP tool schema for CSV ingestion.
func AnalyzePortfolioTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "analyze_portfolio_csv",
		Description: "Reads a broker holdings CSV (UTF-8 or Shift-JIS), extracts holdings and saves a portfolio_analysis JSON document under the output directory.",
	}
}

func (s *Server) policyHandler(name string, text func() string) mcp.ToolHandlerFor[struct{}, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, name, func(context.Context) *mcp.CallToolResult {
			return textResult(text())
		}), nil, nil
	}
}

func (s *Server) readCodeHandler() mcp.ToolHandlerFor[ReadCodeInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ReadCodeInput) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, "read_code", func(ctx context.Context) *mcp.CallToolResult {
			r := s.deps.Ops.Read(ctx, input.FilePath)
			if !r.OK() {
				return fromFileResult(r)
			}
			return textResult(r.Content)
		}), nil, nil
	}
}

func (s *Server) createCodeHandler() mcp.ToolHandlerFor[CreateCodeInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateCodeInput) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, "create_code", func(ctx context.Context) *mcp.CallToolResult {
			return fromFileResult(s.deps.Ops.Create(ctx, input.FilePath, input.Content))
		}), nil, nil
	}
}

func (s *Server) updateCodeHandler() mcp.ToolHandlerFor[UpdateCodeInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input UpdateCodeInput) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, "update_code", func(ctx context.Context) *mcp.CallToolResult {
			content, err := updateContent(input)
			if err != nil {
				return s.fault(ctx, err)
			}
			return fromFileResult(s.deps.Ops.Update(ctx, input.FilePath, content))
		}), nil, nil
	}
}

// updateContent picks the new content from exactly one of its two names.
func updateContent(input UpdateCodeInput) (string, error) {
	switch {
	case input.NewContent != nil && input.NewStr != nil:
		return "", fmt.Errorf("pass either new_content or new_str for '%s', not both: %w", input.FilePath, core.ErrMissingArgument)
	case input.NewContent != nil:
		return *input.NewContent, nil
	case input.NewStr != nil:
		return *input.NewStr, nil
	default:
		return "", fmt.Errorf("no code content provided for '%s': %w", input.FilePath, core.ErrMissingArgument)
	}
}

func (s *Server) deleteCodeHandler() mcp.ToolHandlerFor[DeleteCodeInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeleteCodeInput) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, "delete_code", func(ctx context.Context) *mcp.CallToolResult {
			r := s.deps.Ops.Delete(ctx, input.FilePath)
			if r.OK() {
				s.trackPath(input.FilePath, "")
			}
			return fromFileResult(r)
		}), nil, nil
	}
}

func (s *Server) moveCodeHandler() mcp.ToolHandlerFor[MoveCodeInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MoveCodeInput) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, "move_code", func(ctx context.Context) *mcp.CallToolResult {
			r := s.deps.Ops.Move(ctx, input.FromPath, input.ToPath)
			if r.OK() {
				s.trackPath(input.FromPath, input.ToPath)
			}
			return fromFileResult(r)
		}), nil, nil
	}
}

func (s *Server) listFilesHandler() mcp.ToolHandlerFor[ListFilesInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListFilesInput) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, "list_files_in_directory", func(ctx context.Context) *mcp.CallToolResult {
			r := s.deps.Ops.List(ctx, input.DirectoryPath)
			if !r.OK() {
				return fromFileResult(r)
			}
			data, err := json.Marshal(r.Entries)
			if err != nil {
				return s.fault(ctx, err)
			}
			return textResult(string(data))
		}), nil, nil
	}
}

func (s *Server) createDirectoryHandler() mcp.ToolHandlerFor[CreateDirectoryInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateDirectoryInput) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, "create_directory", func(ctx context.Context) *mcp.CallToolResult {
			return fromFileResult(s.deps.Ops.MakeDir(ctx, input.Path))
		}), nil, nil
	}
}

func (s *Server) analyzePortfolioHandler() mcp.ToolHandlerFor[AnalyzePortfolioInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzePortfolioInput) (*mcp.CallToolResult, any, error) {
		return s.call(ctx, "analyze_portfolio_csv", func(ctx context.Context) *mcp.CallToolResult {
			a, err := s.deps.Analyzer.Analyze(ctx, input.CSVFilePath)
			if err != nil {
				// Analyze has already recorded the failure.
				return errorResult("Error: CSV analysis failed. " + core.FormatUserError(err))
			}
			s.deps.Session.Set(SessionLastAnalysis, a.OutputPath)
			s.deps.Session.Set(SessionLastCSV, a.SourceCSVPath)
			return textResult(ingest.Summary(a))
		}), nil, nil
	}
}

// Session keys written by the tools.
const (
	SessionLastAnalysis = "last_analysis"
	SessionLastCSV      = "last_csv"
)

// trackPath keeps session paths pointing at live files after a move or
// delete. An empty to drops the entry.
func (s *Server) trackPath(from, to string) {
	for _, key := range []string{SessionLastAnalysis, SessionLastCSV} {
		v, ok := s.deps.Session.Get(key)
		if !ok || cleanRel(v) != cleanRel(from) {
			continue
		}
		if to == "" {
			s.deps.Session.Delete(key)
		} else {
			s.deps.Session.Set(key, cleanRel(to))
		}
	}
}

func cleanRel(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}
