package mcp_integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/astgrep-tools/astgrep-mcp/internal/astgrep"
	"github.com/astgrep-tools/astgrep-mcp/internal/catalog"
	"github.com/astgrep-tools/astgrep-mcp/internal/mcp"
	"github.com/astgrep-tools/astgrep-mcp/internal/mcpserver"
)

// newStubDispatcher seeds a temp bundled cache with a shell script standing
// in for the real ast-grep executable.
func newStubDispatcher(t testing.TB, script string) *astgrep.Dispatcher {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ast-grep"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	manager := astgrep.NewBinaryManagerAt(astgrep.DefaultBinaryVersion, dir)
	return astgrep.NewDispatcher(manager)
}

func testCatalog() *catalog.Engine {
	return catalog.NewEngine([]catalog.Example{
		{
			ID:          "no-console-log",
			Title:       "No console.log",
			Description: "Find stray console.log calls",
			Language:    "javascript",
			RuleYAML:    "id: no-console-log\nlanguage: javascript\nrule:\n  pattern: console.log($$$ARGS)",
		},
		{
			ID:          "unwrap-to-expect",
			Title:       "Replace unwrap with expect",
			Description: "Rewrite unwrap calls to expect with a message",
			Language:    "rust",
			HasFix:      true,
			RuleYAML:    "id: unwrap-to-expect\nlanguage: rust\nrule:\n  pattern: $E.unwrap()\nfix: $E.expect(\"TODO\")",
		},
	})
}

// newSession builds a fully registered in-process server reading the given
// newline-delimited requests.
func newSession(t testing.TB, script, input string) (*mcp.Server, *bytes.Buffer) {
	t.Helper()
	dispatcher := newStubDispatcher(t, script)
	engine := testCatalog()

	handlers := mcpserver.NewHandlers(dispatcher, engine)
	resources := mcpserver.NewResourceProvider(engine)
	prompts := mcpserver.NewPromptProvider()

	var output bytes.Buffer
	server := mcp.NewServer(strings.NewReader(input), &output)
	mcpserver.Register(server, handlers, resources, prompts)
	return server, &output
}

// decodeResponses parses every newline-delimited response in the buffer.
func decodeResponses(t testing.TB, output *bytes.Buffer) []mcp.Response {
	t.Helper()
	var responses []mcp.Response
	decoder := json.NewDecoder(output)
	for {
		var resp mcp.Response
		if err := decoder.Decode(&resp); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("failed to decode response stream: %v", err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func handleAll(t testing.TB, server *mcp.Server, requests int) {
	t.Helper()
	for i := 0; i < requests; i++ {
		if err := server.HandleOne(context.Background()); err != nil {
			t.Fatalf("request %d: HandleOne() error = %v", i+1, err)
		}
	}
}

func toolResult(t testing.TB, resp mcp.Response) mcp.ToolsCallResult {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("tools/call failed: %v", resp.Error)
	}
	var result mcp.ToolsCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to parse tools/call result: %v", err)
	}
	return result
}

func TestFullSession(t *testing.T) {
	target := t.TempDir()
	executeArgs := fmt.Sprintf(
		`{"rule_config":"id: f\nlanguage: javascript\nrule:\n  kind: function_declaration","target":%q}`,
		target)

	input := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}}}
{"jsonrpc":"2.0","id":2,"method":"tools/list"}
{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"execute_rule","arguments":` + executeArgs + `}}
{"jsonrpc":"2.0","id":4,"method":"resources/read","params":{"uri":"ast-grep://catalog-status"}}
{"jsonrpc":"2.0","id":5,"method":"prompts/get","params":{"name":"write-rule","arguments":{"language":"rust","description":"find unwrap calls"}}}
`
	server, output := newSession(t, "#!/bin/sh\necho '{\"matches\":[]}'\n", input)
	handleAll(t, server, 5)

	responses := decodeResponses(t, output)
	if len(responses) != 5 {
		t.Fatalf("got %d responses, want 5", len(responses))
	}

	// initialize
	var init mcp.InitializeResult
	if err := json.Unmarshal(responses[0].Result, &init); err != nil {
		t.Fatal(err)
	}
	if init.ServerInfo.Name != mcpserver.ServerName {
		t.Errorf("ServerInfo.Name = %q", init.ServerInfo.Name)
	}
	if init.Instructions == "" {
		t.Error("initialize result missing instructions")
	}

	// tools/list
	var tools mcp.ToolsListResult
	if err := json.Unmarshal(responses[1].Result, &tools); err != nil {
		t.Fatal(err)
	}
	if len(tools.Tools) != 4 {
		t.Errorf("tools/list returned %d tools, want 4", len(tools.Tools))
	}

	// execute_rule through the stub binary
	result := toolResult(t, responses[2])
	if result.IsError {
		t.Fatalf("execute_rule IsError with content %+v", result.Content)
	}
	if len(result.Content) != 1 || !strings.Contains(result.Content[0].Text, "matches") {
		t.Errorf("execute_rule content = %+v", result.Content)
	}

	// resources/read returns live catalog status
	var read mcp.ResourcesReadResult
	if err := json.Unmarshal(responses[3].Result, &read); err != nil {
		t.Fatal(err)
	}
	if len(read.Contents) != 1 || !strings.Contains(read.Contents[0].Text, `"examples": 2`) {
		t.Errorf("catalog-status contents = %+v", read.Contents)
	}
	if read.Contents[0].MIMEType != "application/json" {
		t.Errorf("catalog-status mimeType = %q, want application/json", read.Contents[0].MIMEType)
	}

	// prompts/get substitutes arguments
	var prompt mcp.PromptsGetResult
	if err := json.Unmarshal(responses[4].Result, &prompt); err != nil {
		t.Fatal(err)
	}
	if len(prompt.Messages) == 0 || !strings.Contains(prompt.Messages[0].Content.Text, "find unwrap calls") {
		t.Errorf("prompt messages = %+v", prompt.Messages)
	}
}

func TestCatalogToolsEndToEnd(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search_examples","arguments":{"query":"console log","language":"javascript"}}}
{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"suggest_examples","arguments":{"code":"let v = result.unwrap();"}}}
`
	server, output := newSession(t, "#!/bin/sh\necho ok\n", input)
	handleAll(t, server, 2)

	responses := decodeResponses(t, output)

	search := toolResult(t, responses[0])
	if !strings.Contains(search.Content[0].Text, "no-console-log") {
		t.Errorf("search_examples content = %q", search.Content[0].Text)
	}

	suggest := toolResult(t, responses[1])
	if !strings.Contains(suggest.Content[0].Text, "unwrap-to-expect") {
		t.Errorf("suggest_examples content = %q", suggest.Content[0].Text)
	}
}

func TestBinaryFailureIsToolError(t *testing.T) {
	target := t.TempDir()
	executeArgs := fmt.Sprintf(
		`{"rule_config":"id: f\nlanguage: javascript\nrule:\n  kind: function_declaration","target":%q}`,
		target)
	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"execute_rule","arguments":` + executeArgs + `}}
`
	server, output := newSession(t, "#!/bin/sh\necho 'parse error' >&2\nexit 1\n", input)
	handleAll(t, server, 1)

	responses := decodeResponses(t, output)
	result := toolResult(t, responses[0])
	if !result.IsError {
		t.Error("expected IsError for failing binary")
	}
	if len(result.Content) == 0 || !strings.Contains(result.Content[0].Text, "parse error") {
		t.Errorf("error content = %+v, want binary stderr surfaced", result.Content)
	}
}

func TestInvalidRuleRejectedBeforeExec(t *testing.T) {
	// The marker file proves whether the stub binary ran.
	marker := filepath.Join(t.TempDir(), "ran")
	target := t.TempDir()
	executeArgs := fmt.Sprintf(`{"rule_config":"id: missing-rule\nlanguage: javascript","target":%q}`, target)
	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"execute_rule","arguments":` + executeArgs + `}}
`
	server, output := newSession(t, "#!/bin/sh\ntouch "+marker+"\n", input)
	handleAll(t, server, 1)

	responses := decodeResponses(t, output)
	result := toolResult(t, responses[0])
	if !result.IsError {
		t.Error("expected IsError for invalid rule config")
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("binary ran despite invalid rule config")
	}
}
