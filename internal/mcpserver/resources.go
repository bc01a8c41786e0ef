package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/JonMunkholm/investmcp/internal/logging"
	"github.com/JonMunkholm/investmcp/internal/workspace"
)

func (s *Server) registerResources() {
	for _, r := range workspace.Resources {
		s.mcp.AddResource(&mcp.Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MIMEType,
		}, s.resourceHandler(r))
	}
	s.mcp.AddResource(&mcp.Resource{
		URI:         ErrorLogURI,
		Name:        "error_log",
		Description: "Failures recorded by the workspace operations, oldest first.",
		MIMEType:    "application/json",
	}, s.errorLogHandler)
}

// ErrorLogURI is the resource serving the recorded failures.
const ErrorLogURI = "errors://log"

func (s *Server) errorLogHandler(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	entries, err := s.deps.Log.Entries()
	if err != nil {
		logging.FromContext(ctx).Error("read error log", "error", err)
		return nil, fmt.Errorf("read error log: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: ErrorLogURI, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

func (s *Server) resourceHandler(r workspace.Resource) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		ctx = logging.ContextWithInvocationID(ctx, uuid.NewString())
		logging.WithFields(ctx, "resource", r.URI).Debug("resource read")

		uri := r.URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: r.MIMEType,
					Text:     s.deps.Workspace.ReadResource(ctx, r),
				},
			},
		}, nil
	}
}

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "instruction_policy",
		Description: "Operating rules for the workspace tools.",
	}, policyPrompt(workspace.InstructionPolicy))
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "investment_dashboard_policy",
		Description: "Portfolio analysis and dashboard workflow.",
	}, policyPrompt(workspace.DashboardPolicy))
}

func policyPrompt(text func() string) mcp.PromptHandler {
	return func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		name := ""
		if req != nil && req.Params != nil {
			name = req.Params.Name
		}
		return &mcp.GetPromptResult{
			Description: fmt.Sprintf("%s policy", name),
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: text()},
				},
			},
		}, nil
	}
}
