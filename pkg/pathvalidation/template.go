// Package pathvalidation rejects paths that still contain template
// placeholders. LLM clients assemble tool targets from editor variables and
// occasionally pass them through unexpanded; catching `${workspaceFolder}` or
// `{{file}}` here produces a clear error instead of a confusing "no such
// file" from the subprocess.
package pathvalidation

import (
	"fmt"
	"regexp"
	"strings"
)

// UnresolvedTemplateError indicates a path contains an unexpanded template
// placeholder.
type UnresolvedTemplateError struct {
	Path     string
	Variable string
	Pattern  string
}

func (e *UnresolvedTemplateError) Error() string {
	return fmt.Sprintf("target path contains unresolved template variable %q; expand it on the client before calling", e.Variable)
}

// templatePatterns are placeholder shapes seen in targets from real clients.
// Order matters: more specific patterns come before more general ones.
var templatePatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"github-actions", regexp.MustCompile(`\$\{\{[^}]*\}\}`)},          // ${{ VAR }}
	{"double-brace", regexp.MustCompile(`\{\{[^}]*\}\}`)},              // {{VAR}}
	{"shell-brace", regexp.MustCompile(`\$\{[^}]+\}`)},                 // ${VAR}
	{"shell-var", regexp.MustCompile(`\$[A-Z_][A-Z0-9_]*`)},            // $VAR
	{"double-bracket-var", regexp.MustCompile(`\[\[[^\]]+\]\]`)},       // [[VAR]]
	{"single-bracket-var", regexp.MustCompile(`\[[A-Z_][A-Z0-9_]*\]`)}, // [VAR], uppercase only
}

// CheckUnresolvedTemplateVars returns an UnresolvedTemplateError when the
// path matches any placeholder shape.
func CheckUnresolvedTemplateVars(path string) error {
	for _, tp := range templatePatterns {
		if match := tp.pattern.FindString(path); match != "" {
			return &UnresolvedTemplateError{
				Path:     path,
				Variable: match,
				Pattern:  tp.name,
			}
		}
	}
	return nil
}

// ValidateTarget checks each path component separately so error messages name
// the offending segment rather than the whole path.
func ValidateTarget(path string) error {
	normalized := strings.ReplaceAll(path, "\\", "/")
	for _, component := range strings.Split(normalized, "/") {
		if component == "" {
			continue
		}
		if err := CheckUnresolvedTemplateVars(component); err != nil {
			return err
		}
	}
	return nil
}
