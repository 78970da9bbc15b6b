package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/astgrep-tools/astgrep-mcp/internal/astgrep"
	"github.com/astgrep-tools/astgrep-mcp/internal/catalog"
	"github.com/astgrep-tools/astgrep-mcp/internal/logging"
)

// ServerName identifies this server in the MCP initialize handshake.
const ServerName = "astgrep-mcp"

// ServerVersion is reported alongside ServerName.
const ServerVersion = "0.3.0"

// Instructions is the guidance string clients receive on initialize.
const Instructions = "Structural code search and rewrite over ast-grep. Use find_scope to " +
	"locate the enclosing scope around a cursor position, execute_rule to run YAML rules " +
	"(search, replace, scan), and search_examples/suggest_examples to discover example " +
	"rules from the bundled catalog."

// Handlers routes tool calls to the ast-grep dispatcher and the catalog
// engine.
type Handlers struct {
	dispatcher *astgrep.Dispatcher
	catalog    *catalog.Engine
}

// NewHandlers wires the dispatcher and an optional catalog engine. A nil
// engine leaves the catalog tools registered but answering with a
// not-loaded hint.
func NewHandlers(dispatcher *astgrep.Dispatcher, engine *catalog.Engine) *Handlers {
	return &Handlers{dispatcher: dispatcher, catalog: engine}
}

// LoadCatalog builds handlers with the catalog read from path. A missing or
// broken catalog is logged and the server runs without it.
func LoadCatalog(path string) *catalog.Engine {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		logging.Warn("catalog not found, catalog tools disabled", "path", path)
		return nil
	}
	engine, err := catalog.Load(path)
	if err != nil {
		logging.Warn("failed to load catalog", "path", path, "err", err)
		return nil
	}
	logging.Info("catalog loaded", "path", path, "examples", engine.Status().Examples)
	return engine
}

// CallTool executes one named tool against its raw JSON arguments.
func (h *Handlers) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	switch name {
	case astgrep.ToolFindScope, astgrep.ToolExecuteRule:
		return h.dispatcher.CallTool(ctx, name, args)
	case "search_examples":
		return h.handleSearchExamples(args)
	case "suggest_examples":
		return h.handleSuggestExamples(args)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

type searchExamplesArgs struct {
	Query    string `json:"query"`
	Language string `json:"language"`
	Limit    int    `json:"limit"`
}

func (h *Handlers) handleSearchExamples(args json.RawMessage) (string, error) {
	var params searchExamplesArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid search_examples arguments: %w", err)
	}
	if params.Query == "" {
		return "", fmt.Errorf("query is required")
	}
	if err := h.requireCatalog(); err != nil {
		return "", err
	}
	if params.Limit <= 0 {
		params.Limit = 10
	}
	return formatResults(h.catalog.Search(params.Query, params.Language, params.Limit))
}

type suggestExamplesArgs struct {
	Code  string `json:"code"`
	Limit int    `json:"limit"`
}

func (h *Handlers) handleSuggestExamples(args json.RawMessage) (string, error) {
	var params suggestExamplesArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid suggest_examples arguments: %w", err)
	}
	if params.Code == "" {
		return "", fmt.Errorf("code is required")
	}
	if err := h.requireCatalog(); err != nil {
		return "", err
	}
	if params.Limit <= 0 {
		params.Limit = 5
	}
	return formatResults(h.catalog.Suggest(params.Code, params.Limit))
}

func (h *Handlers) requireCatalog() error {
	if h.catalog == nil {
		return fmt.Errorf("rule catalog not loaded; run astgrep-catalog scrape and set ASTGREP_MCP_CATALOG")
	}
	return nil
}

func formatResults(results []catalog.Result) (string, error) {
	if results == nil {
		results = []catalog.Result{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
