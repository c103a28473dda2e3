package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// AddToMCPServer exposes every tool in the registry on an MCP server.
// Validation and dispatch stay in the registry so MCP clients and the
// built-in agent loop see identical behavior.
func AddToMCPServer(s *mcpserver.MCPServer, r *Registry) {
	for _, t := range r.List() {
		tool := mcp.NewToolWithRawSchema(t.Name, t.Description, t.Schema)

		name := t.Name
		s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			out, err := r.Execute(ctx, name, request.GetArguments())
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(out), nil
		})
	}
}
