package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/astgrep-tools/astgrep-mcp/internal/astgrep"
	"github.com/astgrep-tools/astgrep-mcp/internal/logging"
	"github.com/astgrep-tools/astgrep-mcp/internal/mcpserver"
)

// EnvCatalog points at a scraped catalog JSON file. When unset or unreadable
// the catalog tools report that the catalog is not loaded; the core tools
// keep working.
const EnvCatalog = "ASTGREP_MCP_CATALOG"

// EnvRoots lists workspace roots, separated by the OS path list separator.
const EnvRoots = "ASTGREP_MCP_ROOTS"

type rootFlags []string

func (r *rootFlags) String() string { return strings.Join(*r, string(os.PathListSeparator)) }

func (r *rootFlags) Set(value string) error {
	*r = append(*r, value)
	return nil
}

func main() {
	var roots rootFlags
	catalogPath := flag.String("catalog", os.Getenv(EnvCatalog), "path to a scraped rule catalog JSON file")
	flag.Var(&roots, "root", "workspace root directory (repeatable)")
	flag.Parse()

	if len(roots) == 0 {
		if env := os.Getenv(EnvRoots); env != "" {
			roots = strings.Split(env, string(os.PathListSeparator))
		}
	}

	cfg := astgrep.LoadConfig()

	binaries, err := astgrep.NewBinaryManager(cfg.BinaryVersion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	dispatcher := astgrep.NewDispatcher(binaries)
	dispatcher.SetTimeout(cfg.Timeout)
	if len(roots) > 0 {
		workspaceRoots := make([]astgrep.Root, 0, len(roots))
		for _, dir := range roots {
			workspaceRoots = append(workspaceRoots, astgrep.Root{URI: dir})
		}
		dispatcher.SetRoots(workspaceRoots)
	}

	engine := mcpserver.LoadCatalog(*catalogPath)
	handlers := mcpserver.NewHandlers(dispatcher, engine)
	resources := mcpserver.NewResourceProvider(engine)
	prompts := mcpserver.NewPromptProvider()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    mcpserver.ServerName,
		Version: mcpserver.ServerVersion,
	}, &mcp.ServerOptions{
		Instructions: mcpserver.Instructions,
	})

	tools := mcpserver.GetToolDefinitions()
	for _, toolDef := range tools {
		// Capture for closure
		td := toolDef
		server.AddTool(&mcp.Tool{
			Name:        td.Name,
			Description: td.Description,
			InputSchema: td.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			output, err := handlers.CallTool(ctx, td.Name, req.Params.Arguments)
			if err != nil {
				return &mcp.CallToolResult{
					Content: []mcp.Content{
						&mcp.TextContent{Text: "Error: " + err.Error()},
					},
					IsError: true,
				}, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					&mcp.TextContent{Text: output},
				},
			}, nil
		})
	}

	for _, resDef := range resources.List() {
		rd := resDef
		server.AddResource(&mcp.Resource{
			URI:         rd.URI,
			Name:        rd.Name,
			Description: rd.Description,
			MIMEType:    rd.MIMEType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := resources.Read(rd.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: rd.URI, MIMEType: rd.MIMEType, Text: text},
				},
			}, nil
		})
	}

	for _, promptDef := range prompts.List() {
		pd := promptDef
		args := make([]*mcp.PromptArgument, 0, len(pd.Arguments))
		for _, arg := range pd.Arguments {
			args = append(args, &mcp.PromptArgument{
				Name:        arg.Name,
				Description: arg.Description,
				Required:    arg.Required,
			})
		}
		server.AddPrompt(&mcp.Prompt{
			Name:        pd.Name,
			Description: pd.Description,
			Arguments:   args,
		}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			rendered, err := prompts.Get(pd.Name, req.Params.Arguments)
			if err != nil {
				return nil, err
			}
			messages := make([]*mcp.PromptMessage, 0, len(rendered.Messages))
			for _, msg := range rendered.Messages {
				messages = append(messages, &mcp.PromptMessage{
					Role:    mcp.Role(msg.Role),
					Content: &mcp.TextContent{Text: msg.Text},
				})
			}
			return &mcp.GetPromptResult{
				Description: rendered.Description,
				Messages:    messages,
			}, nil
		})
	}

	logging.Info("server started",
		"name", mcpserver.ServerName,
		"version", mcpserver.ServerVersion,
		"tools", len(tools),
		"roots", len(roots))

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
