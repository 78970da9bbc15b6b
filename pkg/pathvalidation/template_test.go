package pathvalidation

import (
	"errors"
	"testing"
)

func TestCheckUnresolvedTemplateVars(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantVar string
	}{
		{"clean path", "/home/user/project/src", ""},
		{"shell brace", "${workspaceFolder}/src", "${workspaceFolder}"},
		{"double brace", "{{file}}/lib", "{{file}}"},
		{"github actions", "${{ github.workspace }}/src", "${{ github.workspace }}"},
		{"shell var", "$HOME/project", "$HOME"},
		{"double bracket", "[[PROJECT_ROOT]]/src", "[[PROJECT_ROOT]]"},
		{"single bracket uppercase", "[ROOT]/src", "[ROOT]"},
		{"lowercase bracket is a real dir", "src/[id]/route.ts", ""},
		{"dollar in filename", "price$.go", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckUnresolvedTemplateVars(tt.path)
			if tt.wantVar == "" {
				if err != nil {
					t.Errorf("CheckUnresolvedTemplateVars(%q) = %v, want nil", tt.path, err)
				}
				return
			}
			var templateErr *UnresolvedTemplateError
			if !errors.As(err, &templateErr) {
				t.Fatalf("CheckUnresolvedTemplateVars(%q) = %v, want UnresolvedTemplateError", tt.path, err)
			}
			if templateErr.Variable != tt.wantVar {
				t.Errorf("Variable = %q, want %q", templateErr.Variable, tt.wantVar)
			}
		})
	}
}

func TestValidateTarget(t *testing.T) {
	if err := ValidateTarget("src/components/Button.tsx"); err != nil {
		t.Errorf("ValidateTarget(clean) = %v", err)
	}
	if err := ValidateTarget("src\\${env:APPDATA}\\config"); err == nil {
		t.Error("ValidateTarget with backslash-separated template passed")
	}

	err := ValidateTarget("/repo/${BRANCH}/src")
	var templateErr *UnresolvedTemplateError
	if !errors.As(err, &templateErr) {
		t.Fatalf("ValidateTarget = %v, want UnresolvedTemplateError", err)
	}
	if templateErr.Variable != "${BRANCH}" {
		t.Errorf("Variable = %q, want ${BRANCH}", templateErr.Variable)
	}
}

func TestPatternPrecedence(t *testing.T) {
	// The github-actions form must not be half-matched by the generic
	// shell-brace pattern.
	err := CheckUnresolvedTemplateVars("${{ matrix.os }}")
	var templateErr *UnresolvedTemplateError
	if !errors.As(err, &templateErr) {
		t.Fatal(err)
	}
	if templateErr.Pattern != "github-actions" {
		t.Errorf("Pattern = %q, want github-actions", templateErr.Pattern)
	}
}
