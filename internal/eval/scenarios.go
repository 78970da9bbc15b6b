package eval

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// Scenario is one benchmark test case. SuccessExpr is an expression over the
// evaluation outcome; the environment exposes success, tool_calls, response,
// and duration_ms.
type Scenario struct {
	Name          string   `yaml:"name" json:"name"`
	Category      string   `yaml:"category" json:"category"`
	Prompt        string   `yaml:"prompt" json:"prompt"`
	ExpectedTools []string `yaml:"expected_tools" json:"expected_tools"`
	SuccessExpr   string   `yaml:"success_criteria" json:"success_criteria"`
	Weight        float64  `yaml:"weight" json:"weight"`
}

// Passed evaluates the scenario's success expression against a result. An
// empty expression falls back to requiring at least one tool call.
func (s Scenario) Passed(result Result) (bool, error) {
	if s.SuccessExpr == "" {
		return result.Success && result.ToolCallsMade > 0, nil
	}

	env := map[string]interface{}{
		"success":     result.Success,
		"tool_calls":  result.ToolCallsMade,
		"response":    result.Response,
		"duration_ms": result.DurationMS,
		"contains": func(substr string) bool {
			return strings.Contains(result.Response, substr)
		},
	}

	program, err := expr.Compile(s.SuccessExpr, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("invalid success criteria %q: %w", s.SuccessExpr, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate success criteria %q: %w", s.SuccessExpr, err)
	}
	passed, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("success criteria %q did not evaluate to a bool", s.SuccessExpr)
	}
	return passed, nil
}

// ExpectedToolUsed reports whether any of the scenario's expected tools was
// actually called.
func (s Scenario) ExpectedToolUsed(result Result) bool {
	if len(s.ExpectedTools) == 0 {
		return true
	}
	for _, call := range result.ToolCalls {
		for _, expected := range s.ExpectedTools {
			if call.ToolName == expected {
				return true
			}
		}
	}
	return false
}

// DefaultScenarios is the built-in benchmark suite, covering search,
// transformation, and scope analysis tasks.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			Name:          "Basic Function Search",
			Category:      "AST Search",
			Prompt:        "Find all function declarations in this JavaScript code: function hello() { return 'world'; } const greet = () => 'hi';",
			ExpectedTools: []string{"execute_rule"},
			SuccessExpr:   `tool_calls > 0 && contains("function")`,
			Weight:        1.0,
		},
		{
			Name:          "Variable Refactoring",
			Category:      "Code Transformation",
			Prompt:        "Replace all var declarations with const/let in: var x = 1; var y = 2; function test() { var z = 3; }",
			ExpectedTools: []string{"execute_rule"},
			SuccessExpr:   `tool_calls > 0 && (contains("const") || contains("let"))`,
			Weight:        1.5,
		},
		{
			Name:          "Scope Analysis",
			Category:      "Structural Analysis",
			Prompt:        "Find the containing scope around line 1, column 15 in: function outer() { function inner() { const x = 1; } }",
			ExpectedTools: []string{"find_scope"},
			SuccessExpr:   `tool_calls > 0 && success`,
			Weight:        2.0,
		},
		{
			Name:          "Error Handling Patterns",
			Category:      "Pattern Recognition",
			Prompt:        "Find all try-catch blocks and identify error handling patterns in: try { riskyOperation(); } catch (e) { console.error(e); } finally { cleanup(); }",
			ExpectedTools: []string{"execute_rule"},
			SuccessExpr:   `tool_calls > 0 && contains("try") && contains("catch")`,
			Weight:        1.5,
		},
		{
			Name:          "Complex Refactoring",
			Category:      "Advanced Transformation",
			Prompt:        "Modernize this React class component to functional component with hooks: class Counter extends React.Component { constructor(props) { super(props); this.state = { count: 0 }; } render() { return <div>{this.state.count}</div>; } }",
			ExpectedTools: []string{"execute_rule"},
			SuccessExpr:   `tool_calls > 0 && (contains("useState") || contains("function"))`,
			Weight:        3.0,
		},
	}
}
