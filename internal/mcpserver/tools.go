package mcpserver

import (
	"encoding/json"
)

// ToolDefinition defines a tool for the MCP SDK
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// GetToolDefinitions returns tool definitions for the official MCP SDK
func GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		// 1. Scope lookup
		{
			Name:        "find_scope",
			Description: "Find containing scope around a position using relational rules",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"code": {
						"type": "string",
						"description": "Code to search within"
					},
					"language": {
						"type": "string",
						"description": "Programming language (e.g., 'javascript', 'python', 'rust')"
					},
					"position": {
						"type": "object",
						"properties": {
							"line": {"type": "number", "description": "Line number (1-indexed)"},
							"column": {"type": "number", "description": "Column number (1-indexed)"}
						},
						"required": ["line", "column"],
						"description": "Cursor position to find scope around"
					},
					"scope_rule": {
						"type": "string",
						"description": "YAML rule defining the scope to find (e.g., function, class, loop)"
					}
				},
				"required": ["code", "language", "position", "scope_rule"]
			}`),
		},

		// 2. Rule execution
		{
			Name:        "execute_rule",
			Description: "Execute ast-grep rule for search, replace, or scan operations",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"rule_config": {
						"type": "string",
						"description": "Complete YAML rule configuration"
					},
					"target": {
						"type": "string",
						"description": "File path or directory to apply rule to"
					},
					"operation": {
						"type": "string",
						"enum": ["search", "replace", "scan"],
						"description": "Operation to perform",
						"default": "search"
					},
					"dry_run": {
						"type": "boolean",
						"description": "If true, preview changes without applying",
						"default": true
					}
				},
				"required": ["rule_config", "target"]
			}`),
		},

		// 3. Catalog keyword search
		{
			Name:        "search_examples",
			Description: "Search the bundled rule catalog for example rules matching a query",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {
						"type": "string",
						"description": "Keywords describing the rule you need (e.g., 'remove console.log')"
					},
					"language": {
						"type": "string",
						"description": "Restrict results to one language ('any' disables the filter)"
					},
					"limit": {
						"type": "integer",
						"description": "Maximum number of results to return (default: 10)"
					}
				},
				"required": ["query"]
			}`),
		},

		// 4. Catalog similarity search
		{
			Name:        "suggest_examples",
			Description: "Suggest catalog rules similar to a code snippet",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"code": {
						"type": "string",
						"description": "Code snippet to find similar example rules for"
					},
					"limit": {
						"type": "integer",
						"description": "Maximum number of results to return (default: 5)"
					}
				},
				"required": ["code"]
			}`),
		},
	}
}
