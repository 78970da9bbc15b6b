package mcp

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/astgrep-tools/astgrep-mcp/internal/logging"
)

// ToolHandler executes one tool call against its raw JSON argument bag.
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// ResourceHandler returns the text content for a resource URI.
type ResourceHandler func(uri string) (string, error)

// PromptHandler renders a prompt with the caller's arguments.
type PromptHandler func(args map[string]string) (PromptsGetResult, error)

// resourceEntry pairs a registered resource with its read handler so the
// read path reports the registered MIME type.
type resourceEntry struct {
	resource Resource
	handler  ResourceHandler
}

// Server routes JSON-RPC requests to registered tool, resource, and prompt
// handlers. A single bad request never terminates the serve loop.
type Server struct {
	transport    *Transport
	serverInfo   ServerInfo
	instructions string

	mu               sync.RWMutex
	tools            []Tool
	toolHandlers     map[string]ToolHandler
	resources        []Resource
	resourceEntries  map[string]resourceEntry
	prompts          []Prompt
	promptHandlers   map[string]PromptHandler
}

// NewServer creates a server speaking line-delimited JSON-RPC over the given
// stream pair.
func NewServer(reader io.Reader, writer io.Writer) *Server {
	return &Server{
		transport:        NewTransport(reader, writer),
		toolHandlers:    make(map[string]ToolHandler),
		resourceEntries: make(map[string]resourceEntry),
		promptHandlers:  make(map[string]PromptHandler),
	}
}

// SetServerInfo sets the identity reported during initialize.
func (s *Server) SetServerInfo(name, version string) {
	s.serverInfo = ServerInfo{Name: name, Version: version}
}

// SetInstructions sets the optional instructions string for initialize.
func (s *Server) SetInstructions(instructions string) {
	s.instructions = instructions
}

// RegisterTool adds a tool and its handler to the catalog.
func (s *Server) RegisterTool(tool Tool, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, tool)
	s.toolHandlers[tool.Name] = handler
}

// RegisterResource adds a resource and its handler to the catalog.
func (s *Server) RegisterResource(resource Resource, handler ResourceHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, resource)
	s.resourceEntries[resource.URI] = resourceEntry{resource: resource, handler: handler}
}

// RegisterPrompt adds a prompt and its handler to the catalog.
func (s *Server) RegisterPrompt(prompt Prompt, handler PromptHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	s.promptHandlers[prompt.Name] = handler
}

// HandleOne reads and handles a single request.
func (s *Server) HandleOne(ctx context.Context) error {
	req, err := s.transport.ReadRequest()
	if err != nil {
		if rpcErr, ok := AsProtocolError(err); ok {
			return s.sendError(nil, rpcErr.Code, rpcErr.Message)
		}
		return err
	}
	return s.handleRequest(ctx, req)
}

func (s *Server) handleRequest(ctx context.Context, req *Request) error {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized", "initialized":
		return nil // notification, no response
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "resources/list":
		return s.handleResourcesList(req)
	case "resources/read":
		return s.handleResourcesRead(req)
	case "prompts/list":
		return s.handlePromptsList(req)
	case "prompts/get":
		return s.handlePromptsGet(req)
	default:
		return s.sendError(req.ID, MethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) handleInitialize(req *Request) error {
	result := InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: Capabilities{
			Tools:     &struct{}{},
			Resources: &struct{}{},
			Prompts:   &struct{}{},
		},
		ServerInfo:   s.serverInfo,
		Instructions: s.instructions,
	}
	return s.sendResult(req.ID, result)
}

func (s *Server) handleToolsList(req *Request) error {
	s.mu.RLock()
	tools := make([]Tool, len(s.tools))
	copy(tools, s.tools)
	s.mu.RUnlock()
	return s.sendResult(req.ID, ToolsListResult{Tools: tools})
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) error {
	var params ToolsCallParams
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.sendError(req.ID, InvalidParams, "invalid params: "+err.Error())
		}
	}

	s.mu.RLock()
	handler, ok := s.toolHandlers[params.Name]
	s.mu.RUnlock()
	if !ok {
		return s.sendToolResult(req.ID, "unknown tool: "+params.Name, true)
	}

	output, err := handler(ctx, params.Arguments)
	if err != nil {
		return s.sendToolResult(req.ID, "Error: "+err.Error(), true)
	}
	return s.sendToolResult(req.ID, output, false)
}

func (s *Server) handleResourcesList(req *Request) error {
	s.mu.RLock()
	resources := make([]Resource, len(s.resources))
	copy(resources, s.resources)
	s.mu.RUnlock()
	return s.sendResult(req.ID, ResourcesListResult{Resources: resources})
}

func (s *Server) handleResourcesRead(req *Request) error {
	var params ResourcesReadParams
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.sendError(req.ID, InvalidParams, "invalid params: "+err.Error())
		}
	}

	s.mu.RLock()
	entry, ok := s.resourceEntries[params.URI]
	s.mu.RUnlock()
	if !ok {
		return s.sendError(req.ID, InvalidParams, "unknown resource: "+params.URI)
	}

	text, err := entry.handler(params.URI)
	if err != nil {
		return s.sendError(req.ID, InternalError, err.Error())
	}
	return s.sendResult(req.ID, ResourcesReadResult{
		Contents: []ResourceContents{{URI: params.URI, MIMEType: entry.resource.MIMEType, Text: text}},
	})
}

func (s *Server) handlePromptsList(req *Request) error {
	s.mu.RLock()
	prompts := make([]Prompt, len(s.prompts))
	copy(prompts, s.prompts)
	s.mu.RUnlock()
	return s.sendResult(req.ID, PromptsListResult{Prompts: prompts})
}

func (s *Server) handlePromptsGet(req *Request) error {
	var params PromptsGetParams
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.sendError(req.ID, InvalidParams, "invalid params: "+err.Error())
		}
	}

	s.mu.RLock()
	handler, ok := s.promptHandlers[params.Name]
	s.mu.RUnlock()
	if !ok {
		return s.sendError(req.ID, InvalidParams, "unknown prompt: "+params.Name)
	}

	result, err := handler(params.Arguments)
	if err != nil {
		return s.sendError(req.ID, InternalError, err.Error())
	}
	return s.sendResult(req.ID, result)
}

func (s *Server) sendResult(id json.RawMessage, result interface{}) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return s.sendError(id, InternalError, "failed to marshal result: "+err.Error())
	}
	return s.transport.WriteResponse(&Response{JSONRPC: "2.0", ID: id, Result: resultJSON})
}

func (s *Server) sendToolResult(id json.RawMessage, text string, isError bool) error {
	return s.sendResult(id, ToolsCallResult{
		Content: []TextContent{{Type: "text", Text: text}},
		IsError: isError,
	})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	return s.transport.WriteResponse(&Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	})
}

// Serve handles requests until EOF or context cancellation. Request-level
// failures are logged and serving continues.
func (s *Server) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		err := s.HandleOne(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			logging.Error("request handling failed", "err", err)
		}
	}
}
