package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astgrep-tools/astgrep-mcp/internal/catalog"
	"github.com/astgrep-tools/astgrep-mcp/pkg/output"
)

func searchCmd() *cobra.Command {
	var (
		language   string
		limit      int
		showYAML   bool
		jsonOutput bool
		minimal    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog by keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := catalog.Load(catalogPath)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}

			query := strings.Join(args, " ")
			results := engine.Search(query, language, limit)

			formatter := output.New(jsonOutput, minimal, os.Stdout)
			return formatter.Print(results, func(w io.Writer, data interface{}) {
				hits := data.([]catalog.Result)
				if len(hits) == 0 {
					fmt.Fprintln(w, "No matching examples.")
					return
				}
				for _, result := range hits {
					fmt.Fprintf(w, "%-40s %-12s score %.1f\n", result.ID, result.Language, result.Score)
					if result.Description != "" {
						fmt.Fprintf(w, "    %s\n", result.Description)
					}
					if showYAML && result.RuleYAML != "" {
						fmt.Fprintln(w)
						for _, line := range strings.Split(result.RuleYAML, "\n") {
							fmt.Fprintf(w, "    %s\n", line)
						}
						fmt.Fprintln(w)
					}
				}
			})
		},
	}

	cmd.Flags().StringVar(&language, "language", "", `Filter by language ("any" disables the filter)`)
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results")
	cmd.Flags().BoolVar(&showYAML, "yaml", false, "Print each example's rule YAML")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&minimal, "minimal", false, "Token-optimized single-line JSON")

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog size and language coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := catalog.Load(catalogPath)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}

			status := engine.Status()
			fmt.Printf("Examples: %d\n", status.Examples)
			fmt.Printf("Source:   %s\n", status.Source)
			fmt.Println("Languages:")
			for language, count := range status.Languages {
				fmt.Printf("  %-15s %d\n", language, count)
			}
			return nil
		},
	}
}
