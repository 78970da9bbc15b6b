package astgrep

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolvePath_AbsoluteReturnedVerbatim(t *testing.T) {
	roots := []Root{{URI: "file:///somewhere", Name: "ws"}}

	// No existence check: the path does not need to exist.
	got, err := ResolvePath("/does/not/exist/main.rs", roots)
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	if got != "/does/not/exist/main.rs" {
		t.Errorf("ResolvePath() = %q, want input unchanged", got)
	}
}

func TestResolvePath_RejectsUnresolvedTemplates(t *testing.T) {
	for _, input := range []string{"${workspaceFolder}/src", "{{file}}", "$HOME/project"} {
		if _, err := ResolvePath(input, nil); err == nil || !strings.Contains(err.Error(), "template variable") {
			t.Errorf("ResolvePath(%q) error = %v, want template rejection", input, err)
		}
	}
}

func TestResolvePath_NoRootsUsesWorkingDirectory(t *testing.T) {
	got, err := ResolvePath("src/main.go", nil)
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(cwd, "src/main.go")
	if got != want {
		t.Errorf("ResolvePath() = %q, want %q", got, want)
	}
}

func TestResolvePath_FirstMatchingRootWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	// The file exists in both roots; the first root must win.
	for _, dir := range []string{first, second} {
		if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("pass"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	roots := []Root{
		{URI: "file://" + first, Name: "first"},
		{URI: "file://" + second, Name: "second"},
	}
	got, err := ResolvePath("app.py", roots)
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	if got != filepath.Join(first, "app.py") {
		t.Errorf("ResolvePath() = %q, want file under first root", got)
	}
}

func TestResolvePath_SkipsRootsWithoutFile(t *testing.T) {
	empty := t.TempDir()
	populated := t.TempDir()
	if err := os.WriteFile(filepath.Join(populated, "lib.rs"), []byte("fn f() {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	roots := []Root{
		{URI: "file://" + empty, Name: "empty"},
		{URI: populated, Name: "bare-path-root"}, // bare path, no file:// scheme
	}
	got, err := ResolvePath("lib.rs", roots)
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	if got != filepath.Join(populated, "lib.rs") {
		t.Errorf("ResolvePath() = %q, want file under populated root", got)
	}
}

func TestResolvePath_ErrorNamesEveryRoot(t *testing.T) {
	roots := []Root{
		{URI: "file://" + t.TempDir(), Name: "alpha"},
		{URI: "file://" + t.TempDir(), Name: "beta"},
		{URI: "file://" + t.TempDir()}, // unnamed root, URI must still appear
	}

	_, err := ResolvePath("ghost.go", roots)
	if err == nil {
		t.Fatal("ResolvePath() expected error for unresolvable path")
	}
	msg := err.Error()
	if !strings.Contains(msg, "ghost.go") {
		t.Errorf("error %q should name the original input", msg)
	}
	for _, root := range roots {
		probe := root.Name
		if probe == "" {
			probe = root.URI
		}
		if !strings.Contains(msg, probe) {
			t.Errorf("error %q should mention root %q", msg, probe)
		}
	}
}

func TestRootList_WholesaleReplacement(t *testing.T) {
	var list rootList
	list.set([]Root{{URI: "file:///a"}, {URI: "file:///b"}})

	snap := list.snapshot()
	list.set([]Root{{URI: "file:///c"}})

	// The earlier snapshot must be unaffected by the replacement.
	if len(snap) != 2 || snap[0].URI != "file:///a" {
		t.Errorf("snapshot changed after replacement: %+v", snap)
	}
	if got := list.snapshot(); len(got) != 1 || got[0].URI != "file:///c" {
		t.Errorf("snapshot() = %+v, want single replaced root", got)
	}
}
