// Package astgrep wraps the external ast-grep binary behind typed tool
// operations: it resolves targets against workspace roots, validates rule
// documents up front, and manages per-call temp artifacts around each
// subprocess invocation.
package astgrep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/astgrep-tools/astgrep-mcp/internal/logging"
)

// Tool names form a closed set; adding one is a compile-visible change to
// CallTool's switch, not a stringly-typed registration.
const (
	ToolFindScope   = "find_scope"
	ToolExecuteRule = "execute_rule"
)

// DefaultTimeout bounds a single binary invocation. A hung subprocess is
// killed and its temp files still removed.
const DefaultTimeout = 60 * time.Second

// Dispatcher maps tool invocations onto ast-grep subprocess runs.
type Dispatcher struct {
	binaries *BinaryManager
	roots    rootList
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher around the given binary manager.
func NewDispatcher(binaries *BinaryManager) *Dispatcher {
	return &Dispatcher{
		binaries: binaries,
		timeout:  DefaultTimeout,
	}
}

// SetTimeout overrides the per-invocation subprocess timeout.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.timeout = timeout
	}
}

// SetRoots replaces the session's workspace roots wholesale.
func (d *Dispatcher) SetRoots(roots []Root) {
	d.roots.set(roots)
}

// Roots returns the current workspace root snapshot.
func (d *Dispatcher) Roots() []Root {
	return d.roots.snapshot()
}

// CallTool dispatches a named tool invocation with its raw JSON argument bag.
// Unknown names are the only total-failure branch not tied to an operation.
func (d *Dispatcher) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	switch name {
	case ToolFindScope:
		return d.findScope(ctx, args)
	case ToolExecuteRule:
		return d.executeRule(ctx, args)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// findScopeArgs is the typed form of the find_scope argument bag. Arguments
// are decoded once at the boundary so everything downstream works with
// concrete fields.
type findScopeArgs struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Position *struct {
		Line   int `json:"line"`
		Column int `json:"column"`
	} `json:"position"`
	ScopeRule string `json:"scope_rule"`
}

func (a *findScopeArgs) validate() error {
	var missing []string
	if a.Code == "" {
		missing = append(missing, "code")
	}
	if a.Language == "" {
		missing = append(missing, "language")
	}
	if a.Position == nil {
		missing = append(missing, "position")
	}
	if a.ScopeRule == "" {
		missing = append(missing, "scope_rule")
	}
	if len(missing) > 0 {
		return fmt.Errorf("find_scope missing required argument(s): %v", missing)
	}
	return nil
}

func (d *Dispatcher) findScope(ctx context.Context, raw json.RawMessage) (string, error) {
	var args findScopeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid find_scope arguments: %w", err)
	}
	if err := args.validate(); err != nil {
		return "", err
	}

	// The extension lookup doubles as the language check and must happen
	// before any temp file exists.
	ext, err := ExtensionForLanguage(args.Language)
	if err != nil {
		return "", err
	}

	rulePath, err := writeTempArtifact("scope-rule", "yml", args.ScopeRule)
	if err != nil {
		return "", err
	}
	defer removeTempArtifact(rulePath)

	codePath, err := writeTempArtifact("scope-code", ext, args.Code)
	if err != nil {
		return "", err
	}
	defer removeTempArtifact(codePath)

	return d.run(ctx, "scan", "--rule", rulePath, codePath, "--json")
}

// executeRuleArgs is the typed form of the execute_rule argument bag.
type executeRuleArgs struct {
	RuleConfig string `json:"rule_config"`
	Target     string `json:"target"`
	Operation  string `json:"operation"`
	DryRun     *bool  `json:"dry_run"`
}

func (a *executeRuleArgs) validate() error {
	var missing []string
	if a.RuleConfig == "" {
		missing = append(missing, "rule_config")
	}
	if a.Target == "" {
		missing = append(missing, "target")
	}
	if len(missing) > 0 {
		return fmt.Errorf("execute_rule missing required argument(s): %v", missing)
	}
	return nil
}

func (a *executeRuleArgs) operation() string {
	if a.Operation == "" {
		return "search"
	}
	return a.Operation
}

func (a *executeRuleArgs) dryRun() bool {
	if a.DryRun == nil {
		return true
	}
	return *a.DryRun
}

func (d *Dispatcher) executeRule(ctx context.Context, raw json.RawMessage) (string, error) {
	var args executeRuleArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid execute_rule arguments: %w", err)
	}
	if err := args.validate(); err != nil {
		return "", err
	}

	op := args.operation()
	switch op {
	case "search", "scan", "replace":
	default:
		return "", fmt.Errorf("unknown operation: %s (expected search, replace, or scan)", op)
	}

	if err := ValidateRule(args.RuleConfig); err != nil {
		return "", err
	}

	target, err := ResolvePath(args.Target, d.roots.snapshot())
	if err != nil {
		return "", err
	}

	rulePath, err := writeTempArtifact("rule", "yml", args.RuleConfig)
	if err != nil {
		return "", err
	}
	defer removeTempArtifact(rulePath)

	// search and scan are both structured-output scans. replace previews
	// with --json when dry_run is set; otherwise -U makes the binary apply
	// fixes in place and produces no structured output. The flags are
	// mutually exclusive on purpose.
	if op == "replace" && !args.dryRun() {
		return d.run(ctx, "scan", "--rule", rulePath, target, "-U")
	}
	return d.run(ctx, "scan", "--rule", rulePath, target, "--json")
}

// run resolves the binary and executes one bounded subprocess invocation.
func (d *Dispatcher) run(ctx context.Context, cliArgs ...string) (string, error) {
	binary, err := d.binaries.EnsureBinary(ctx)
	if err != nil {
		return "", fmt.Errorf("ast-grep binary unavailable: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, binary, cliArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("invoking ast-grep", "args", cliArgs)
	err = cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("ast-grep timed out after %v", d.timeout)
	}
	if err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("ast-grep failed: %s", stderr.String())
		}
		return "", fmt.Errorf("ast-grep failed: %w", err)
	}
	return stdout.String(), nil
}

// writeTempArtifact writes content to an invocation-unique file in the temp
// directory. Unique names keep concurrent calls from trampling each other's
// scratch files.
func writeTempArtifact(kind, ext, content string) (string, error) {
	name := fmt.Sprintf("astgrep-%s-%s.%s", kind, uuid.NewString(), ext)
	path := filepath.Join(os.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("writing temp %s file: %w", kind, err)
	}
	return path, nil
}

// removeTempArtifact is best-effort: a deletion failure is not the caller's
// concern and must never mask the operation's real outcome.
func removeTempArtifact(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove temp artifact", "path", path, "err", err)
	}
}
