package astgrep

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

// ruleExample is appended to validation errors so the caller sees the expected
// shape instead of having to guess from a bare syntax error.
const ruleExample = `a valid rule looks like:

id: no-console-log
language: javascript
rule:
  pattern: console.log($ARG)
fix: logger.debug($ARG)`

// ValidateRule checks a YAML rule configuration before it is ever handed to
// the binary. It verifies document shape, required keys, and the language
// allow-list; the nested rule sub-grammar is the binary's job and is passed
// through untouched.
func ValidateRule(ruleYAML string) error {
	var doc interface{}
	if err := yaml.Unmarshal([]byte(ruleYAML), &doc); err != nil {
		return fmt.Errorf("invalid YAML in rule config: %v\n\n%s", err, ruleExample)
	}

	mapping, ok := doc.(map[string]interface{})
	if !ok {
		return fmt.Errorf("rule config must be a YAML mapping, got %T\n\n%s", doc, ruleExample)
	}

	// Collect every missing key so the caller fixes them in one pass.
	var missing []string
	for _, key := range []string{"id", "language", "rule"} {
		if _, present := mapping[key]; !present {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("rule config missing required field(s): %s\n\n%s",
			strings.Join(missing, ", "), ruleExample)
	}

	lang, ok := mapping["language"].(string)
	if !ok {
		return fmt.Errorf("rule config field 'language' must be a string, got %T", mapping["language"])
	}
	if !IsSupportedLanguage(lang) {
		return fmt.Errorf("unsupported language %q: supported languages are %s",
			lang, strings.Join(SupportedLanguages(), ", "))
	}

	if _, ok := mapping["rule"].(map[string]interface{}); !ok {
		return fmt.Errorf("rule config field 'rule' must be a mapping, got %T\n\n%s",
			mapping["rule"], ruleExample)
	}

	return nil
}
