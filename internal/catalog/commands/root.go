package commands

import (
	"github.com/spf13/cobra"
)

var catalogPath string

// RootCmd returns the root command for astgrep-catalog
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "astgrep-catalog",
		Short: "Manage the local ast-grep rule example catalog",
		Long: `astgrep-catalog scrapes the public ast-grep example catalog into a
local JSON file and queries it. The astgrep-mcp server serves the same
file through its search_examples and suggest_examples tools.`,
	}

	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "catalog.json", "Path to the catalog JSON file")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(statusCmd())

	return rootCmd
}
