package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/astgrep-tools/astgrep-mcp/internal/mcp"
)

// Register wires the tool, resource, and prompt surfaces into a JSON-RPC
// server. The stdio binary does the same wiring against the official SDK;
// this path serves in-process tests and the evaluation harness.
func Register(server *mcp.Server, handlers *Handlers, resources *ResourceProvider, prompts *PromptProvider) {
	server.SetServerInfo(ServerName, ServerVersion)
	server.SetInstructions(Instructions)

	for _, def := range GetToolDefinitions() {
		def := def
		server.RegisterTool(mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, func(ctx context.Context, args json.RawMessage) (string, error) {
			return handlers.CallTool(ctx, def.Name, args)
		})
	}

	for _, info := range resources.List() {
		server.RegisterResource(mcp.Resource{
			URI:         info.URI,
			Name:        info.Name,
			Description: info.Description,
			MIMEType:    info.MIMEType,
		}, resources.Read)
	}

	for _, info := range prompts.List() {
		info := info
		server.RegisterPrompt(promptToWire(info), func(args map[string]string) (mcp.PromptsGetResult, error) {
			rendered, err := prompts.Get(info.Name, args)
			if err != nil {
				return mcp.PromptsGetResult{}, err
			}
			return renderedToWire(rendered), nil
		})
	}
}

func promptToWire(info PromptInfo) mcp.Prompt {
	prompt := mcp.Prompt{Name: info.Name, Description: info.Description}
	for _, arg := range info.Arguments {
		prompt.Arguments = append(prompt.Arguments, mcp.PromptArgument{
			Name:        arg.Name,
			Description: arg.Description,
			Required:    arg.Required,
		})
	}
	return prompt
}

func renderedToWire(rendered RenderedPrompt) mcp.PromptsGetResult {
	result := mcp.PromptsGetResult{Description: rendered.Description}
	for _, msg := range rendered.Messages {
		result.Messages = append(result.Messages, mcp.PromptMessage{
			Role:    msg.Role,
			Content: mcp.TextContent{Type: "text", Text: msg.Text},
		})
	}
	return result
}
