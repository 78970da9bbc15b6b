package mcpserver

import (
	"fmt"
	"strings"
)

// PromptArgumentInfo documents one prompt argument.
type PromptArgumentInfo struct {
	Name        string
	Description string
	Required    bool
}

// PromptInfo describes one available prompt.
type PromptInfo struct {
	Name        string
	Description string
	Arguments   []PromptArgumentInfo
}

// PromptMessageInfo is one rendered message.
type PromptMessageInfo struct {
	Role string
	Text string
}

// RenderedPrompt is the result of rendering a prompt with arguments.
type RenderedPrompt struct {
	Description string
	Messages    []PromptMessageInfo
}

// promptTemplate pairs a user-message template with per-key defaults.
// Rendering substitutes {key} tokens; a missing argument falls back to its
// default instead of failing.
type promptTemplate struct {
	info     PromptInfo
	template string
	defaults map[string]string
}

// PromptProvider serves templated prompts for common rule-authoring tasks.
type PromptProvider struct {
	templates map[string]promptTemplate
}

// NewPromptProvider creates the provider with the built-in prompt set.
func NewPromptProvider() *PromptProvider {
	provider := &PromptProvider{templates: make(map[string]promptTemplate)}
	for _, tmpl := range builtinPrompts() {
		provider.templates[tmpl.info.Name] = tmpl
	}
	return provider
}

// List returns the available prompts.
func (p *PromptProvider) List() []PromptInfo {
	infos := make([]PromptInfo, 0, len(p.templates))
	for _, name := range []string{"write-rule", "debug-rule", "refactor-code"} {
		if tmpl, ok := p.templates[name]; ok {
			infos = append(infos, tmpl.info)
		}
	}
	return infos
}

// Get renders a prompt by name with the caller's arguments.
func (p *PromptProvider) Get(name string, args map[string]string) (RenderedPrompt, error) {
	tmpl, ok := p.templates[name]
	if !ok {
		return RenderedPrompt{}, fmt.Errorf("unknown prompt: %s", name)
	}

	text := tmpl.template
	for key, fallback := range tmpl.defaults {
		value := fallback
		if v, ok := args[key]; ok && v != "" {
			value = v
		}
		text = strings.ReplaceAll(text, "{"+key+"}", value)
	}

	return RenderedPrompt{
		Description: tmpl.info.Description,
		Messages: []PromptMessageInfo{
			{Role: "user", Text: text},
		},
	}, nil
}

func builtinPrompts() []promptTemplate {
	return []promptTemplate{
		{
			info: PromptInfo{
				Name:        "write-rule",
				Description: "Draft an ast-grep rule config from a plain-language description",
				Arguments: []PromptArgumentInfo{
					{Name: "language", Description: "Target language for the rule", Required: true},
					{Name: "description", Description: "What the rule should match or rewrite", Required: true},
				},
			},
			template: "Write an ast-grep YAML rule config for {language} that does the " +
				"following: {description}. Include id, language, and rule keys. Use " +
				"metavariables where the matched code varies. If the task is a rewrite, " +
				"add a fix key. Validate your draft with execute_rule in search mode " +
				"before applying any changes.",
			defaults: map[string]string{
				"language":    "javascript",
				"description": "match the code pattern I describe next",
			},
		},
		{
			info: PromptInfo{
				Name:        "debug-rule",
				Description: "Figure out why a rule config does not match as expected",
				Arguments: []PromptArgumentInfo{
					{Name: "rule", Description: "The rule config that misbehaves", Required: true},
					{Name: "problem", Description: "What happened versus what was expected"},
				},
			},
			template: "This ast-grep rule is not behaving as expected:\n\n{rule}\n\n" +
				"Problem: {problem}. Check the rule against the syntax reference " +
				"(ast-grep://rule-syntax), then simplify it to the smallest rule that " +
				"still demonstrates the issue and test each constraint separately with " +
				"execute_rule.",
			defaults: map[string]string{
				"rule":    "(paste rule config here)",
				"problem": "it matches nothing",
			},
		},
		{
			info: PromptInfo{
				Name:        "refactor-code",
				Description: "Plan a structural refactor as a series of rewrite rules",
				Arguments: []PromptArgumentInfo{
					{Name: "language", Description: "Language of the code"},
					{Name: "goal", Description: "The refactor to perform", Required: true},
					{Name: "target", Description: "File or directory to change"},
				},
			},
			template: "Plan a structural refactor of {target} ({language}): {goal}. " +
				"Break it into one rewrite rule per change, search with each rule first " +
				"to review matches, then run replace with dry_run true and inspect the " +
				"preview before applying.",
			defaults: map[string]string{
				"language": "javascript",
				"goal":     "modernize the code",
				"target":   "the current project",
			},
		},
	}
}
