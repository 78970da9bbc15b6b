package eval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/astgrep-tools/astgrep-mcp/pkg/llmapi"
)

// fakeServerScript is a minimal line-delimited JSON-RPC server: it answers
// requests by ordinal, which matches the fixed handshake order the client
// uses (initialize, tools/list, then tool calls).
const fakeServerScript = `#!/bin/sh
n=0
while IFS= read -r line; do
  case "$line" in
    *'"method":"notifications/initialized"'*) continue ;;
  esac
  n=$((n+1))
  case $n in
    1) echo '{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05","capabilities":{"tools":{}},"serverInfo":{"name":"fake","version":"0"}}}' ;;
    2) echo '{"jsonrpc":"2.0","id":2,"result":{"tools":[{"name":"execute_rule","description":"run a rule","inputSchema":{"type":"object"}}]}}' ;;
    *) echo '{"jsonrpc":"2.0","id":'$n',"result":{"content":[{"type":"text","text":"2 matches found"}]}}' ;;
  esac
done
`

func writeFakeServer(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-server.sh")
	if err := os.WriteFile(path, []byte(fakeServerScript), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// newFakeLLM serves one tool-call response followed by plain completions.
func newFakeLLM(t *testing.T) *httptest.Server {
	t.Helper()
	requests := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var resp llmapi.ChatResponse
		if requests == 1 {
			resp = llmapi.ChatResponse{Choices: []llmapi.Choice{{
				Message: llmapi.Message{
					Role: "assistant",
					ToolCalls: []llmapi.ToolCall{{
						ID:   "call_1",
						Type: "function",
						Function: llmapi.FunctionCall{
							Name:      "execute_rule",
							Arguments: `{"rule_config":"id: find-fns\nlanguage: javascript\nrule:\n  kind: function_declaration","target":"src/"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}}}
		} else {
			resp = llmapi.ChatResponse{Choices: []llmapi.Choice{{
				Message:      llmapi.Message{Role: "assistant", Content: "The code contains 2 function declarations."},
				FinishReason: "stop",
			}}}
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient_ConnectAndEvaluate(t *testing.T) {
	llm := newFakeLLM(t)
	defer llm.Close()

	client := NewClient(Config{
		Endpoint:      llm.URL,
		Model:         "test-model",
		ServerCommand: "sh",
		ServerArgs:    []string{writeFakeServer(t)},
		Timeout:       10 * time.Second,
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	tools := client.Tools()
	if len(tools) != 1 || tools[0].Name != "execute_rule" {
		t.Fatalf("Tools() = %+v, want execute_rule", tools)
	}

	result, err := client.Evaluate(ctx, "Find all function declarations in src/")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if result.ToolCallsMade != 1 {
		t.Errorf("ToolCallsMade = %d, want 1", result.ToolCallsMade)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %+v", result.ToolCalls)
	}
	call := result.ToolCalls[0]
	if call.ToolName != "execute_rule" || call.Failed {
		t.Errorf("tool call record = %+v", call)
	}
	if call.Output != "2 matches found" {
		t.Errorf("tool output = %q", call.Output)
	}
	if result.Response != "The code contains 2 function declarations." {
		t.Errorf("Response = %q, want follow-up completion", result.Response)
	}
	if result.ModelName != "test-model" {
		t.Errorf("ModelName = %q", result.ModelName)
	}
	// user + assistant(tool_calls) + tool + assistant
	if result.ConversationLength != 4 {
		t.Errorf("ConversationLength = %d, want 4", result.ConversationLength)
	}
}

func TestClient_ResetConversation(t *testing.T) {
	llm := newFakeLLM(t)
	defer llm.Close()

	client := NewClient(Config{
		Endpoint:      llm.URL,
		Model:         "test-model",
		ServerCommand: "sh",
		ServerArgs:    []string{writeFakeServer(t)},
		Timeout:       10 * time.Second,
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Evaluate(ctx, "first prompt"); err != nil {
		t.Fatal(err)
	}

	client.ResetConversation()
	result, err := client.Evaluate(ctx, "second prompt")
	if err != nil {
		t.Fatal(err)
	}
	if result.ConversationLength != 2 {
		t.Errorf("ConversationLength after reset = %d, want 2", result.ConversationLength)
	}
}

func TestEvaluate_FencedToolArguments(t *testing.T) {
	requests := 0
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var resp llmapi.ChatResponse
		if requests == 1 {
			resp = llmapi.ChatResponse{Choices: []llmapi.Choice{{
				Message: llmapi.Message{
					Role: "assistant",
					ToolCalls: []llmapi.ToolCall{{
						ID:   "call_1",
						Type: "function",
						Function: llmapi.FunctionCall{
							Name:      "execute_rule",
							Arguments: "```json\n{\"rule_config\":\"id: x\",\"target\":\"src/\"}\n```",
						},
					}},
				},
				FinishReason: "tool_calls",
			}}}
		} else {
			resp = llmapi.ChatResponse{Choices: []llmapi.Choice{{
				Message:      llmapi.Message{Role: "assistant", Content: "done"},
				FinishReason: "stop",
			}}}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer llm.Close()

	client := NewClient(Config{
		Endpoint:      llm.URL,
		Model:         "test-model",
		ServerCommand: "sh",
		ServerArgs:    []string{writeFakeServer(t)},
		Timeout:       10 * time.Second,
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	result, err := client.Evaluate(ctx, "Find functions in src/")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %+v, want one call", result.ToolCalls)
	}
	call := result.ToolCalls[0]
	if call.Failed {
		t.Errorf("fenced arguments rejected: %+v", call)
	}
	if call.Output != "2 matches found" {
		t.Errorf("tool output = %q", call.Output)
	}
}

func TestExecuteToolCall_InvalidArguments(t *testing.T) {
	client := NewClient(Config{Model: "m"})
	record := client.executeToolCall(llmapi.ToolCall{
		ID:   "call_1",
		Type: "function",
		Function: llmapi.FunctionCall{
			Name:      "execute_rule",
			Arguments: "{not json",
		},
	})
	if !record.Failed {
		t.Error("expected Failed for malformed arguments")
	}
}
