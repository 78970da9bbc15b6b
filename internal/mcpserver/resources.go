package mcpserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/astgrep-tools/astgrep-mcp/internal/astgrep"
	"github.com/astgrep-tools/astgrep-mcp/internal/catalog"
)

// Resource URIs served by the ResourceProvider.
const (
	ResourceDiscover      = "ast-grep://discover"
	ResourceLanguages     = "ast-grep://languages"
	ResourceRuleSyntax    = "ast-grep://rule-syntax"
	ResourceCatalogStatus = "ast-grep://catalog-status"
)

// ResourceInfo describes one readable resource.
type ResourceInfo struct {
	URI         string
	Name        string
	Description string
	MIMEType    string
}

// ResourceProvider serves static documentation plus live catalog status.
type ResourceProvider struct {
	catalog *catalog.Engine
}

// NewResourceProvider creates a provider; the engine may be nil.
func NewResourceProvider(engine *catalog.Engine) *ResourceProvider {
	return &ResourceProvider{catalog: engine}
}

// List returns the resource directory.
func (p *ResourceProvider) List() []ResourceInfo {
	return []ResourceInfo{
		{
			URI:         ResourceDiscover,
			Name:        "Getting started",
			Description: "How to pick the right tool for a structural search or rewrite task",
			MIMEType:    "text/markdown",
		},
		{
			URI:         ResourceLanguages,
			Name:        "Supported languages",
			Description: "Languages accepted by find_scope and execute_rule",
			MIMEType:    "text/markdown",
		},
		{
			URI:         ResourceRuleSyntax,
			Name:        "Rule syntax reference",
			Description: "Cheat sheet for YAML rule configs: atomic, relational, and composite rules",
			MIMEType:    "text/markdown",
		},
		{
			URI:         ResourceCatalogStatus,
			Name:        "Catalog status",
			Description: "Whether the example-rule catalog is loaded and what it contains",
			MIMEType:    "application/json",
		},
	}
}

// Read returns the content for a resource URI.
func (p *ResourceProvider) Read(uri string) (string, error) {
	switch uri {
	case ResourceDiscover:
		return discoverGuide, nil
	case ResourceLanguages:
		return p.languagesDoc(), nil
	case ResourceRuleSyntax:
		return ruleSyntaxDoc, nil
	case ResourceCatalogStatus:
		return p.catalogStatus()
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

func (p *ResourceProvider) languagesDoc() string {
	var b strings.Builder
	b.WriteString("# Supported languages\n\n")
	b.WriteString("Pass one of these values as the `language` argument:\n\n")
	for _, lang := range astgrep.SupportedLanguages() {
		b.WriteString("- `" + lang + "`\n")
	}
	b.WriteString("\nLanguage names are case-insensitive. `c++` is an alias for `cpp`.\n")
	return b.String()
}

func (p *ResourceProvider) catalogStatus() (string, error) {
	status := catalog.Status{}
	if p.catalog != nil {
		status = p.catalog.Status()
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

const discoverGuide = `# Structural search and rewrite

This server wraps the ast-grep CLI. Pick a tool by task:

- **find_scope**: you have a cursor position in a snippet and need the
  enclosing function, class, or block. Provide the code inline, the language,
  a 1-indexed position, and a YAML rule describing the scope kind.
- **execute_rule**: you have a complete YAML rule and a file or directory to
  run it against. Operations: search (default), replace, scan. Replace
  defaults to a dry-run preview; pass dry_run: false to write changes.
- **search_examples** / **suggest_examples**: browse the bundled catalog of
  community rules by keyword or by similarity to a code snippet.

Read ast-grep://rule-syntax for the rule YAML shape and
ast-grep://languages for accepted language names.
`

const ruleSyntaxDoc = `# Rule config cheat sheet

Every rule config needs three top-level keys:

` + "```yaml" + `
id: unique-rule-name
language: javascript
rule:
  pattern: console.log($ARG)
` + "```" + `

## Atomic rules
- pattern: code with metavariables ($VAR matches one node, $$$ARGS many)
- kind: match by AST node kind (e.g. function_declaration)
- regex: match node text by regular expression

## Relational rules
- inside: node must appear inside a matching ancestor
- has: node must contain a matching descendant
- follows / precedes: sibling ordering constraints

## Composite rules
- all: every sub-rule must match
- any: at least one sub-rule must match
- not: sub-rule must not match

## Rewrites
Add a fix: key with replacement text; metavariables from the pattern are
available in the fix. Replace operations preview by default (dry_run: true).
`
