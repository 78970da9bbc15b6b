package astgrep

import (
	"strings"
	"testing"
)

const validRule = `
id: test-rule
language: rust
rule:
  pattern: fn $NAME() { $$$ }
`

func TestValidateRule_Valid(t *testing.T) {
	if err := ValidateRule(validRule); err != nil {
		t.Errorf("ValidateRule() error = %v, want nil", err)
	}
}

func TestValidateRule_ValidWithOptionalFields(t *testing.T) {
	rule := `
id: replace-rule
language: javascript
rule:
  pattern: console.log($ARG)
fix: logger.debug($ARG)
constraints:
  ARG:
    regex: "^[a-z]"
`
	if err := ValidateRule(rule); err != nil {
		t.Errorf("ValidateRule() error = %v, want nil", err)
	}
}

func TestValidateRule_ParseErrorIncludesExample(t *testing.T) {
	err := ValidateRule("id: [unclosed")
	if err == nil {
		t.Fatal("ValidateRule() expected error for malformed YAML")
	}
	if !strings.Contains(err.Error(), "id: no-console-log") {
		t.Errorf("error %q should include a worked example", err)
	}
}

func TestValidateRule_RejectsNonMapping(t *testing.T) {
	for name, doc := range map[string]string{
		"scalar":   "just a string",
		"sequence": "- a\n- b\n",
	} {
		t.Run(name, func(t *testing.T) {
			err := ValidateRule(doc)
			if err == nil {
				t.Fatalf("ValidateRule(%q) expected error", doc)
			}
			if !strings.Contains(err.Error(), "mapping") {
				t.Errorf("error %q should mention mapping requirement", err)
			}
		})
	}
}

func TestValidateRule_ListsAllMissingKeys(t *testing.T) {
	tests := []struct {
		name    string
		rule    string
		missing []string
	}{
		{
			name:    "all missing",
			rule:    "fix: something",
			missing: []string{"id", "language", "rule"},
		},
		{
			name:    "id and rule missing",
			rule:    "language: go",
			missing: []string{"id", "rule"},
		},
		{
			name:    "rule missing",
			rule:    "id: x\nlanguage: go",
			missing: []string{"rule"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRule(tt.rule)
			if err == nil {
				t.Fatal("ValidateRule() expected error")
			}
			for _, key := range tt.missing {
				if !strings.Contains(err.Error(), key) {
					t.Errorf("error %q should name missing key %q", err, key)
				}
			}
		})
	}
}

func TestValidateRule_UnsupportedLanguage(t *testing.T) {
	rule := `
id: x
language: cobol
rule:
  pattern: foo
`
	err := ValidateRule(rule)
	if err == nil {
		t.Fatal("ValidateRule() expected error for unsupported language")
	}
	msg := err.Error()
	if !strings.Contains(msg, "cobol") {
		t.Errorf("error %q should name the rejected language", msg)
	}
	for _, lang := range SupportedLanguages() {
		if !strings.Contains(msg, lang) {
			t.Errorf("error %q should list supported language %q", msg, lang)
		}
	}
}

func TestValidateRule_RuleMustBeMapping(t *testing.T) {
	rule := `
id: x
language: go
rule: not-a-mapping
`
	err := ValidateRule(rule)
	if err == nil {
		t.Fatal("ValidateRule() expected error for scalar rule field")
	}
	if !strings.Contains(err.Error(), "'rule'") {
		t.Errorf("error %q should name the rule field", err)
	}
}
