package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/astgrep-tools/astgrep-mcp/internal/logging"
)

// DefaultCatalogURL is the upstream rule catalog index.
const DefaultCatalogURL = "https://ast-grep.github.io/catalog/"

// Scraper fetches the upstream rule catalog pages and converts them into the
// JSON format Load understands.
type Scraper struct {
	BaseURL string
	Client  *http.Client
}

// NewScraper creates a scraper against the default upstream catalog.
func NewScraper() *Scraper {
	return &Scraper{
		BaseURL: DefaultCatalogURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Scrape walks the catalog index, fetches every linked example page, and
// returns the parsed examples. Pages that fail to parse are logged and
// skipped so one broken page does not lose the whole catalog.
func (s *Scraper) Scrape(ctx context.Context) ([]Example, error) {
	doc, err := s.fetch(ctx, s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog index: %w", err)
	}

	links := s.exampleLinks(doc)
	if len(links) == 0 {
		return nil, fmt.Errorf("no example links found at %s", s.BaseURL)
	}
	logging.Info("scraping catalog", "examples", len(links))

	var examples []Example
	for _, link := range links {
		ex, err := s.scrapeExample(ctx, link)
		if err != nil {
			logging.Warn("skipping catalog page", "url", link, "err", err)
			continue
		}
		examples = append(examples, ex)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("all %d catalog pages failed to parse", len(links))
	}
	return examples, nil
}

// WriteCatalog scrapes and writes the catalog JSON to path.
func (s *Scraper) WriteCatalog(ctx context.Context, path string) (int, error) {
	examples, err := s.Scrape(ctx)
	if err != nil {
		return 0, err
	}

	payload := struct {
		ScrapedAt time.Time `json:"scraped_at"`
		Source    string    `json:"source"`
		Examples  []Example `json:"examples"`
	}{
		ScrapedAt: time.Now().UTC(),
		Source:    s.BaseURL,
		Examples:  examples,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write catalog: %w", err)
	}
	return len(examples), nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// exampleLinks collects catalog entry links from the index page. Entries live
// under per-language sections whose links point back into /catalog/.
func (s *Scraper) exampleLinks(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, "/catalog/") || strings.HasSuffix(href, "/catalog/") {
			return
		}
		resolved := s.resolveURL(href)
		if _, ok := seen[resolved]; ok {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links
}

func (s *Scraper) resolveURL(href string) string {
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (s *Scraper) scrapeExample(ctx context.Context, pageURL string) (Example, error) {
	doc, err := s.fetch(ctx, pageURL)
	if err != nil {
		return Example{}, err
	}
	ex := parseExamplePage(doc, pageURL)
	if ex.RuleYAML == "" {
		return Example{}, fmt.Errorf("no rule YAML found")
	}
	return ex, nil
}

// parseExamplePage extracts one example from a catalog entry page.
func parseExamplePage(doc *goquery.Document, pageURL string) Example {
	ex := Example{
		ID:       idFromURL(pageURL),
		Title:    strings.TrimSpace(doc.Find("h1").First().Text()),
		Language: languageFromURL(pageURL),
	}

	// First paragraph after the title doubles as the description.
	ex.Description = strings.TrimSpace(doc.Find("h1").First().NextAllFiltered("p").First().Text())

	// The rule itself is the first YAML code block on the page.
	doc.Find("pre code").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if strings.Contains(text, "rule:") {
			ex.RuleYAML = text
			return false
		}
		return true
	})
	ex.HasFix = strings.Contains(ex.RuleYAML, "fix:")

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if strings.Contains(href, "playground") {
			ex.PlaygroundLink = href
			return false
		}
		return true
	})

	// Badge spans carry feature tags like "Has Fix" or rule kinds.
	doc.Find("span.badge, code.badge").Each(func(_ int, sel *goquery.Selection) {
		if tag := strings.TrimSpace(sel.Text()); tag != "" {
			ex.Features = append(ex.Features, tag)
		}
	})

	return ex
}

func idFromURL(pageURL string) string {
	trimmed := strings.TrimSuffix(pageURL, "/")
	trimmed = strings.TrimSuffix(trimmed, ".html")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// languageFromURL reads the language segment out of catalog URLs shaped like
// .../catalog/<language>/<example>.
func languageFromURL(pageURL string) string {
	marker := "/catalog/"
	idx := strings.Index(pageURL, marker)
	if idx < 0 {
		return ""
	}
	rest := strings.Trim(pageURL[idx+len(marker):], "/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}
