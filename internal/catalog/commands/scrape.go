package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/astgrep-tools/astgrep-mcp/internal/catalog"
)

func scrapeCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the public example catalog into a local JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			scraper := catalog.NewScraper()
			if baseURL != "" {
				scraper.BaseURL = baseURL
			}

			count, err := scraper.WriteCatalog(context.Background(), catalogPath)
			if err != nil {
				return fmt.Errorf("scrape failed: %w", err)
			}
			fmt.Printf("Wrote %d examples to %s\n", count, catalogPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "Catalog base URL (default: the public ast-grep catalog)")

	return cmd
}
