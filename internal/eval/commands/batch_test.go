package commands

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadPromptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.txt")
	content := `# endpoint smoke tests
Find all console.log calls

Replace unwrap with expect
# trailing comment
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	prompts, err := readPromptFile(path)
	if err != nil {
		t.Fatalf("readPromptFile() error = %v", err)
	}
	want := []string{"Find all console.log calls", "Replace unwrap with expect"}
	if !reflect.DeepEqual(prompts, want) {
		t.Errorf("prompts = %v, want %v", prompts, want)
	}
}

func TestReadPromptFile_Missing(t *testing.T) {
	if _, err := readPromptFile(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
