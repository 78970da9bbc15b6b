package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/astgrep-tools/astgrep-mcp/internal/catalog"
)

func testEngine() *catalog.Engine {
	return catalog.NewEngine([]catalog.Example{
		{
			ID:          "no-console-log",
			Title:       "Remove console.log statements",
			Description: "Finds stray console.log calls",
			Language:    "javascript",
			HasFix:      true,
			RuleYAML:    "id: no-console-log\nlanguage: javascript\nrule:\n  pattern: console.log($ARG)",
		},
	})
}

func TestCallTool_SearchExamples(t *testing.T) {
	handlers := NewHandlers(nil, testEngine())

	out, err := handlers.CallTool(context.Background(), "search_examples",
		json.RawMessage(`{"query":"console.log"}`))
	if err != nil {
		t.Fatalf("CallTool(search_examples) error = %v", err)
	}

	var results []catalog.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(results) != 1 || results[0].ID != "no-console-log" {
		t.Errorf("results = %+v, want single no-console-log hit", results)
	}
}

func TestCallTool_SearchExamples_NoHitsIsEmptyArray(t *testing.T) {
	handlers := NewHandlers(nil, testEngine())
	out, err := handlers.CallTool(context.Background(), "search_examples",
		json.RawMessage(`{"query":"nothing matches this"}`))
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("no-hit output = %q, want empty JSON array", out)
	}
}

func TestCallTool_SearchExamples_MissingQuery(t *testing.T) {
	handlers := NewHandlers(nil, testEngine())
	_, err := handlers.CallTool(context.Background(), "search_examples", json.RawMessage(`{}`))
	if err == nil || !strings.Contains(err.Error(), "query") {
		t.Errorf("error = %v, want missing-query error", err)
	}
}

func TestCallTool_SuggestExamples(t *testing.T) {
	handlers := NewHandlers(nil, testEngine())
	out, err := handlers.CallTool(context.Background(), "suggest_examples",
		json.RawMessage(`{"code":"function f() { console.log('hi'); console.log('bye'); }"}`))
	if err != nil {
		t.Fatalf("CallTool(suggest_examples) error = %v", err)
	}
	if !strings.Contains(out, "no-console-log") {
		t.Errorf("suggest output %q missing expected example", out)
	}
}

func TestCallTool_CatalogNotLoaded(t *testing.T) {
	handlers := NewHandlers(nil, nil)
	_, err := handlers.CallTool(context.Background(), "search_examples",
		json.RawMessage(`{"query":"anything"}`))
	if err == nil || !strings.Contains(err.Error(), "catalog not loaded") {
		t.Errorf("error = %v, want catalog-not-loaded hint", err)
	}
}

func TestCallTool_UnknownTool(t *testing.T) {
	handlers := NewHandlers(nil, nil)
	_, err := handlers.CallTool(context.Background(), "made_up_tool", json.RawMessage(`{}`))
	if err == nil || !strings.Contains(err.Error(), "made_up_tool") {
		t.Errorf("error = %v, want unknown-tool naming the tool", err)
	}
}

func TestGetToolDefinitions_SchemasAreValidJSON(t *testing.T) {
	defs := GetToolDefinitions()
	if len(defs) != 4 {
		t.Fatalf("got %d tool definitions, want 4", len(defs))
	}

	names := make(map[string]bool)
	for _, def := range defs {
		names[def.Name] = true
		var schema map[string]interface{}
		if err := json.Unmarshal(def.InputSchema, &schema); err != nil {
			t.Errorf("schema for %s is not valid JSON: %v", def.Name, err)
			continue
		}
		if schema["type"] != "object" {
			t.Errorf("schema for %s has type %v, want object", def.Name, schema["type"])
		}
	}

	for _, want := range []string{"find_scope", "execute_rule", "search_examples", "suggest_examples"} {
		if !names[want] {
			t.Errorf("tool %s missing from definitions", want)
		}
	}
}
