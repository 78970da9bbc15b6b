package astgrep

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/astgrep-tools/astgrep-mcp/pkg/pathvalidation"
)

// Root is a workspace root declared by the MCP client. Relative tool targets
// are resolved against roots in the order the client supplied them.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// Dir returns the root's filesystem directory, stripping a file:// scheme if
// present. Bare paths are accepted as-is.
func (r Root) Dir() string {
	return strings.TrimPrefix(r.URI, "file://")
}

// rootList holds the session's workspace roots. The slice is replaced
// wholesale under the lock, never mutated in place, so concurrent readers
// always observe a consistent snapshot.
type rootList struct {
	mu    sync.RWMutex
	roots []Root
}

func (l *rootList) set(roots []Root) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roots = roots
}

func (l *rootList) snapshot() []Root {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.roots
}

// ResolvePath maps a client-supplied target to an absolute filesystem path.
//
// Inputs still carrying template placeholders (${VAR}, {{file}}) are rejected
// up front. Absolute inputs are returned verbatim with no existence check. Relative
// inputs with no configured roots resolve against the process working
// directory. Otherwise the first root whose joined candidate exists on disk
// wins; if none matches, the error names the input and every configured root
// so the client can see what was tried.
func ResolvePath(input string, roots []Root) (string, error) {
	if err := pathvalidation.ValidateTarget(input); err != nil {
		return "", err
	}

	if filepath.IsAbs(input) {
		return input, nil
	}

	if len(roots) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("cannot determine working directory: %w", err)
		}
		return filepath.Join(cwd, input), nil
	}

	for _, root := range roots {
		candidate := filepath.Join(root.Dir(), input)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	names := make([]string, 0, len(roots))
	for _, root := range roots {
		if root.Name != "" {
			names = append(names, fmt.Sprintf("%s (%s)", root.Name, root.URI))
		} else {
			names = append(names, root.URI)
		}
	}
	return "", fmt.Errorf("path %q not found in any workspace root: tried %s",
		input, strings.Join(names, ", "))
}
