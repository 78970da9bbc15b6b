package llmapi

import "testing"

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello", "hello"},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"yaml fence", "```yaml\nid: x\nrule:\n  pattern: y\n```", "id: x\nrule:\n  pattern: y"},
		{"bare fence", "```\ncontent\n```", "content"},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"whitespace", "  padded  ", "padded"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanResponse(tt.input); got != tt.want {
				t.Errorf("CleanResponse(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	got, err := ExtractJSON("```json\n{\"valid\": true}\n```")
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if got != `{"valid": true}` {
		t.Errorf("ExtractJSON() = %q", got)
	}

	if _, err := ExtractJSON("not json at all"); err == nil {
		t.Error("ExtractJSON() expected error for invalid JSON")
	}
}
