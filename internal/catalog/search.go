// Package catalog indexes a scraped collection of example ast-grep rules and
// serves keyword search over it. Scoring is a plain term-weighting heuristic,
// good enough to surface relevant examples without an embedding backend.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Example is one catalog entry.
type Example struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Language       string   `json:"language"`
	HasFix         bool     `json:"has_fix"`
	Features       []string `json:"features,omitempty"`
	RuleYAML       string   `json:"yaml_content"`
	PlaygroundLink string   `json:"playground_link,omitempty"`

	// content is the combined lowercase searchable text, built at load time.
	content string
}

// Result is a scored search hit.
type Result struct {
	Example
	Score float64 `json:"score"`
}

// Status summarizes what the engine has loaded.
type Status struct {
	Loaded    bool           `json:"loaded"`
	Source    string         `json:"source,omitempty"`
	Examples  int            `json:"examples"`
	Languages map[string]int `json:"languages,omitempty"`
}

// Engine holds the in-memory catalog index.
type Engine struct {
	examples []Example
	source   string
}

// NewEngine builds an engine over an in-memory example set.
func NewEngine(examples []Example) *Engine {
	prepared := make([]Example, len(examples))
	for i, ex := range examples {
		ex.content = searchableContent(ex)
		prepared[i] = ex
	}
	return &Engine{examples: prepared}
}

// Load reads a catalog JSON file produced by the scraper. Entries with missing
// fields are kept with zero values rather than rejected, so a partially
// scraped catalog still searches.
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog at %s: %w", path, err)
	}

	parsed := gjson.GetBytes(data, "examples")
	if !parsed.IsArray() {
		return nil, fmt.Errorf("no examples array in catalog %s", path)
	}

	var examples []Example
	parsed.ForEach(func(_, entry gjson.Result) bool {
		ex := Example{
			ID:             entry.Get("id").String(),
			Title:          entry.Get("title").String(),
			Description:    entry.Get("description").String(),
			Language:       entry.Get("language").String(),
			HasFix:         entry.Get("has_fix").Bool(),
			RuleYAML:       entry.Get("yaml_content").String(),
			PlaygroundLink: entry.Get("playground_link").String(),
		}
		entry.Get("features").ForEach(func(_, f gjson.Result) bool {
			ex.Features = append(ex.Features, f.String())
			return true
		})
		examples = append(examples, ex)
		return true
	})

	engine := NewEngine(examples)
	engine.source = path
	return engine, nil
}

func searchableContent(ex Example) string {
	parts := []string{ex.Title, ex.Description, ex.RuleYAML, strings.Join(ex.Features, " "), ex.Language}
	return strings.ToLower(strings.Join(parts, " "))
}

// Status reports the loaded catalog size broken down by language.
func (e *Engine) Status() Status {
	status := Status{
		Loaded:   len(e.examples) > 0,
		Source:   e.source,
		Examples: len(e.examples),
	}
	if len(e.examples) > 0 {
		status.Languages = make(map[string]int)
		for _, ex := range e.examples {
			status.Languages[strings.ToLower(ex.Language)]++
		}
	}
	return status
}

// Search scores every example against the query terms and returns the top
// limit hits. language filters case-insensitively; "any" or empty disables
// the filter.
func (e *Engine) Search(query, language string, limit int) []Result {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	var results []Result
	for _, ex := range e.examples {
		if language != "" && language != "any" && !strings.EqualFold(ex.Language, language) {
			continue
		}
		score := scoreExample(ex, terms)
		if score > 0 {
			results = append(results, Result{Example: ex, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Suggest finds examples similar to a free-form text (typically a code
// snippet) by extracting its key terms and running a normal search.
func (e *Engine) Suggest(text string, limit int) []Result {
	terms := extractKeyTerms(text)
	if len(terms) == 0 {
		return nil
	}
	return e.Search(strings.Join(terms, " "), "", limit)
}

// Term weights. Phrase hits dominate, then title, description, feature tags,
// rule body, and finally language.
const (
	phraseWeight      = 10.0
	titleWeight       = 5.0
	descriptionWeight = 3.0
	featureWeight     = 2.5
	yamlWeight        = 2.0
	languageWeight    = 1.0
	fixBonus          = 1.0
)

func scoreExample(ex Example, terms []string) float64 {
	titleLower := strings.ToLower(ex.Title)
	descLower := strings.ToLower(ex.Description)
	yamlLower := strings.ToLower(ex.RuleYAML)
	langLower := strings.ToLower(ex.Language)

	var score float64

	if strings.Contains(ex.content, strings.Join(terms, " ")) {
		score += phraseWeight
	}

	for _, term := range terms {
		if len(term) <= 2 {
			continue
		}
		if strings.Contains(titleLower, term) {
			score += titleWeight
		}
		if strings.Contains(descLower, term) {
			score += descriptionWeight
		}
		if strings.Contains(yamlLower, term) {
			score += yamlWeight
		}
		if strings.Contains(langLower, term) {
			score += languageWeight
		}
		for _, feature := range ex.Features {
			if strings.Contains(strings.ToLower(feature), term) {
				score += featureWeight
			}
		}
	}

	if ex.HasFix && anyTermMentionsRewrite(terms) {
		score += fixBonus
	}
	return score
}

func anyTermMentionsRewrite(terms []string) bool {
	for _, term := range terms {
		if strings.Contains(term, "fix") || strings.Contains(term, "replace") || strings.Contains(term, "rewrite") {
			return true
		}
	}
	return false
}

// extractKeyTerms pulls up to ten frequent alphabetic terms out of free text,
// dropping stop words and anything shorter than three characters.
func extractKeyTerms(text string) []string {
	counts := make(map[string]int)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if len(word) <= 2 || isStopWord(word) || !containsAlphabetic(word) {
			continue
		}
		counts[word]++
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > 10 {
		terms = terms[:10]
	}
	return terms
}

func containsAlphabetic(word string) bool {
	for _, r := range word {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			return true
		}
	}
	return false
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "have": {}, "has": {},
	"had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {},
	"should": {}, "could": {}, "can": {}, "may": {}, "might": {}, "must": {},
	"shall": {}, "this": {}, "that": {}, "these": {}, "those": {}, "as": {},
	"if": {}, "then": {}, "else": {}, "when": {}, "where": {}, "why": {},
	"how": {}, "what": {}, "which": {}, "who": {}, "whom": {}, "whose": {},
	"you": {}, "he": {}, "she": {}, "it": {}, "we": {}, "they": {},
}

func isStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}
