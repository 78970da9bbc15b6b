// Package eval drives an LLM against the MCP server: it spawns the server as
// a subprocess, forwards the tool catalog to an OpenAI-compatible endpoint,
// executes the tool calls the model requests, and measures the outcome.
package eval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/astgrep-tools/astgrep-mcp/internal/logging"
	"github.com/astgrep-tools/astgrep-mcp/internal/mcp"
	"github.com/astgrep-tools/astgrep-mcp/pkg/llmapi"
)

// Config configures an evaluation client.
type Config struct {
	Endpoint      string
	APIKey        string
	Model         string
	ServerCommand string
	ServerArgs    []string
	Timeout       time.Duration
}

// DefaultConfig returns a config pointed at a local OpenAI-compatible
// endpoint and the installed server binary.
func DefaultConfig() Config {
	api := llmapi.GetAPIConfig()
	return Config{
		Endpoint:      api.BaseURL,
		APIKey:        api.APIKey,
		Model:         api.Model,
		ServerCommand: "astgrep-mcp",
		Timeout:       30 * time.Second,
	}
}

// ToolCallRecord captures one executed tool call.
type ToolCallRecord struct {
	ToolName  string `json:"tool_name" yaml:"tool_name"`
	Arguments string `json:"arguments" yaml:"arguments"`
	Output    string `json:"output" yaml:"output"`
	Failed    bool   `json:"failed" yaml:"failed"`
}

// Result is the outcome of evaluating a single prompt.
type Result struct {
	Prompt             string           `json:"prompt" yaml:"prompt"`
	Response           string           `json:"response" yaml:"response"`
	DurationMS         int64            `json:"duration_ms" yaml:"duration_ms"`
	ToolCallsMade      int              `json:"tool_calls_made" yaml:"tool_calls_made"`
	ToolCalls          []ToolCallRecord `json:"tool_calls" yaml:"tool_calls"`
	Success            bool             `json:"success" yaml:"success"`
	Timestamp          int64            `json:"timestamp" yaml:"timestamp"`
	ModelName          string           `json:"model_name" yaml:"model_name"`
	ConversationLength int              `json:"conversation_length" yaml:"conversation_length"`
}

// Client evaluates prompts against an LLM with the MCP server's tools
// attached.
type Client struct {
	config Config
	llm    *llmapi.Client

	serverCmd    *exec.Cmd
	serverStdin  io.WriteCloser
	serverStdout *bufio.Scanner
	requestID    atomic.Int64

	tools   []mcp.Tool
	history []llmapi.Message
}

// NewClient creates an evaluation client. Connect must be called before
// Evaluate.
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		llm:    llmapi.NewClient(config.APIKey, config.Endpoint, config.Model),
	}
}

// Connect spawns the MCP server subprocess and performs the initialize and
// tools/list handshake over its stdio.
func (c *Client) Connect(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.config.ServerCommand, c.config.ServerArgs...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open server stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open server stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start MCP server %q: %w", c.config.ServerCommand, err)
	}
	logging.Info("MCP server started", "command", c.config.ServerCommand, "pid", cmd.Process.Pid)

	c.serverCmd = cmd
	c.serverStdin = stdin
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	c.serverStdout = scanner

	initParams := map[string]interface{}{
		"protocolVersion": mcp.ProtocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]string{"name": "astgrep-eval", "version": "1.0"},
	}
	if _, err := c.rpc("initialize", initParams); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	if err := c.notify("notifications/initialized"); err != nil {
		return err
	}

	listResult, err := c.rpc("tools/list", nil)
	if err != nil {
		return fmt.Errorf("tools/list failed: %w", err)
	}
	var list mcp.ToolsListResult
	if err := json.Unmarshal(listResult, &list); err != nil {
		return fmt.Errorf("failed to parse tools/list result: %w", err)
	}
	c.tools = list.Tools
	logging.Info("connected to MCP server", "tools", len(c.tools))
	return nil
}

// Close tears down the server subprocess.
func (c *Client) Close() error {
	if c.serverStdin != nil {
		c.serverStdin.Close()
	}
	if c.serverCmd != nil && c.serverCmd.Process != nil {
		c.serverCmd.Process.Kill()
		c.serverCmd.Wait()
	}
	return nil
}

// Tools returns the tool catalog fetched during Connect.
func (c *Client) Tools() []mcp.Tool {
	return c.tools
}

// ResetConversation clears the conversation history between evaluations.
func (c *Client) ResetConversation() {
	c.history = nil
}

// rpc sends one JSON-RPC request to the server and waits for its response.
func (c *Client) rpc(method string, params interface{}) (json.RawMessage, error) {
	id := c.requestID.Add(1)
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := c.serverStdin.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	for c.serverStdout.Scan() {
		line := strings.TrimSpace(c.serverStdout.Text())
		if line == "" {
			continue
		}
		var resp mcp.Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse server response: %w", err)
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
	if err := c.serverStdout.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}

func (c *Client) notify(method string) error {
	data, err := json.Marshal(map[string]string{"jsonrpc": "2.0", "method": method})
	if err != nil {
		return err
	}
	_, err = c.serverStdin.Write(append(data, '\n'))
	return err
}

// CallTool invokes one server tool and returns the concatenated text content.
func (c *Client) CallTool(name string, arguments json.RawMessage) (string, bool, error) {
	result, err := c.rpc("tools/call", mcp.ToolsCallParams{Name: name, Arguments: arguments})
	if err != nil {
		return "", true, err
	}
	var call mcp.ToolsCallResult
	if err := json.Unmarshal(result, &call); err != nil {
		return "", true, fmt.Errorf("failed to parse tool result: %w", err)
	}
	var texts []string
	for _, content := range call.Content {
		texts = append(texts, content.Text)
	}
	return strings.Join(texts, "\n"), call.IsError, nil
}

// Evaluate sends a prompt to the LLM with the server's tools attached,
// executes any requested tool calls, and asks for one follow-up completion
// that incorporates the results.
func (c *Client) Evaluate(ctx context.Context, prompt string) (Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	c.history = append(c.history, llmapi.Message{Role: "user", Content: prompt})

	resp, err := c.llm.Chat(ctx, llmapi.ChatRequest{
		Messages: c.history,
		Tools:    c.llmTools(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("LLM request failed: %w", err)
	}

	message := resp.Choices[0].Message
	var records []ToolCallRecord
	finalContent := message.Content

	if len(message.ToolCalls) > 0 {
		logging.Debug("model requested tool calls", "count", len(message.ToolCalls))
		c.history = append(c.history, message)

		for _, call := range message.ToolCalls {
			record := c.executeToolCall(call)
			records = append(records, record)
			c.history = append(c.history, llmapi.Message{
				Role:       "tool",
				Content:    fmt.Sprintf("Tool %s: %s", record.ToolName, record.Output),
				ToolCallID: call.ID,
			})
		}

		followUp, err := c.llm.Chat(ctx, llmapi.ChatRequest{
			Messages:   c.history,
			ToolChoice: "none",
		})
		if err != nil {
			return Result{}, fmt.Errorf("follow-up request failed: %w", err)
		}
		finalContent = followUp.Choices[0].Message.Content
	}

	c.history = append(c.history, llmapi.Message{Role: "assistant", Content: finalContent})

	return Result{
		Prompt:             prompt,
		Response:           finalContent,
		DurationMS:         time.Since(start).Milliseconds(),
		ToolCallsMade:      len(records),
		ToolCalls:          records,
		Success:            true,
		Timestamp:          time.Now().Unix(),
		ModelName:          c.config.Model,
		ConversationLength: len(c.history),
	}, nil
}

func (c *Client) executeToolCall(call llmapi.ToolCall) ToolCallRecord {
	record := ToolCallRecord{
		ToolName:  call.Function.Name,
		Arguments: call.Function.Arguments,
	}

	// Some models wrap tool arguments in a markdown code fence.
	cleaned, err := llmapi.ExtractJSON(call.Function.Arguments)
	if err != nil {
		record.Output = "invalid tool arguments: " + err.Error()
		record.Failed = true
		return record
	}
	args := json.RawMessage(cleaned)

	output, isError, err := c.CallTool(call.Function.Name, args)
	if err != nil {
		logging.Error("tool call failed", "tool", call.Function.Name, "err", err)
		record.Output = err.Error()
		record.Failed = true
		return record
	}
	record.Output = output
	record.Failed = isError
	return record
}

func (c *Client) llmTools() []llmapi.Tool {
	tools := make([]llmapi.Tool, 0, len(c.tools))
	for _, tool := range c.tools {
		tools = append(tools, llmapi.Tool{
			Type: "function",
			Function: llmapi.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}
	return tools
}
