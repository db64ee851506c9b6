package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/ksred/tienda-moves/internal/database"
)

const statusURI = "moves://status"

// Server wraps the MCP server with the revision tools
type Server struct {
	mcpServer *server.MCPServer
	handler   *Handler
	logger    zerolog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(manager *database.Manager, logger zerolog.Logger, version string) (*Server, error) {
	if manager == nil {
		return nil, fmt.Errorf("manager is required")
	}

	mcpServer := server.NewMCPServer(
		"tienda-moves",
		version,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		handler:   NewHandler(manager, logger),
		logger:    logger,
	}

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s, nil
}

// Serve speaks MCP over stdin and stdout until the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Debug().Msg("Starting MCP server ServeStdio")
	err := server.ServeStdio(s.mcpServer)
	if err != nil {
		s.logger.Error().Err(err).Msg("MCP server ServeStdio error")
	}
	return err
}

func targetSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

var fakeSchema = map[string]interface{}{
	"type":        "boolean",
	"description": "Update the ledger without running any operation (default: false)",
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "revision_status",
		Description: "List every schema revision of the tienda database and whether it is applied.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.toolHandler(s.handler.HandleStatus))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "show_revision",
		Description: "Show the upgrade and downgrade operations of one revision.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"target": targetSchema("Revision id or numeric prefix, e.g. 0002_add_index or 2"),
			},
			Required: []string{"target"},
		},
	}, s.toolHandler(s.handler.HandleShowRevision))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "upgrade",
		Description: "Apply pending revisions in order, stopping after target when one is given.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"target": targetSchema("Last revision to apply (default: all pending)"),
				"fake":   fakeSchema,
			},
		},
	}, s.toolHandler(s.handler.HandleUpgrade))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "downgrade",
		Description: "Revert the most recent revision, or every applied revision down to and including target.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"target": targetSchema("Oldest revision to revert (default: only the latest)"),
				"fake":   fakeSchema,
			},
		},
	}, s.toolHandler(s.handler.HandleDowngrade))

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "create_revision",
		Description: "Write a new blank revision file.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Revision name (default: auto migration)",
				},
			},
		},
	}, s.toolHandler(s.handler.HandleCreateRevision))

	s.logger.Info().Int("count", 5).Msg("Registered MCP tools")
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.Resource{
		URI:         statusURI,
		Name:        "Revision Status",
		Description: "Applied and pending revisions",
		MIMEType:    "application/json",
	}, s.statusResourceHandler())

	s.logger.Info().Int("count", 1).Msg("Registered MCP resources")
}

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.Prompt{
		Name:        "review_pending",
		Description: "Review pending revisions before upgrading",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "target",
				Description: "Last revision that would be applied",
				Required:    false,
			},
		},
	}, s.reviewPendingHandler())

	s.logger.Info().Int("count", 1).Msg("Registered MCP prompts")
}

type toolFunc func(ctx context.Context, params json.RawMessage) (*Response, error)

// toolHandler adapts a JSON handler to an MCP tool, reporting failures as
// error results rather than protocol errors
func (s *Server) toolHandler(fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonData, err := json.Marshal(request.GetArguments())
		if err != nil {
			return errorResult(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
		}

		response, err := fn(ctx, jsonData)
		if err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}

		resultJSON, err := response.ToJSON()
		if err != nil {
			return errorResult(fmt.Sprintf("Failed to marshal result: %v", err)), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: string(resultJSON),
				},
			},
			IsError: !response.Success,
		}, nil
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
		IsError: true,
	}
}

func (s *Server) statusResourceHandler() server.ResourceHandlerFunc {
	return func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		response, err := s.handler.HandleStatus(ctx, nil)
		if err != nil {
			return nil, err
		}
		if !response.Success {
			return nil, fmt.Errorf("%s", response.Error)
		}

		statusJSON, err := json.Marshal(response.Data)
		if err != nil {
			return nil, err
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(statusJSON),
			},
		}, nil
	}
}

func (s *Server) reviewPendingHandler() server.PromptHandlerFunc {
	return func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		scope := "every pending revision"
		if target, ok := request.Params.Arguments["target"]; ok && target != "" {
			scope = fmt.Sprintf("the pending revisions up to and including %s", target)
		}

		return &mcp.GetPromptResult{
			Messages: []mcp.PromptMessage{
				{
					Role: "user",
					Content: mcp.TextContent{
						Type: "text",
						Text: fmt.Sprintf("Call revision_status, then show_revision for %s. Summarise the tables and columns each one changes and flag any downgrade that would drop data before calling upgrade.", scope),
					},
				},
			},
		}, nil
	}
}
