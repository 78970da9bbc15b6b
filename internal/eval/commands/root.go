package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/astgrep-tools/astgrep-mcp/internal/eval"
)

var (
	// Global flags
	endpoint      string
	model         string
	apiKey        string
	serverCommand string
	serverArgs    []string
	snapshotDir   string
	timeoutSecs   int
)

// RootCmd returns the root command for astgrep-eval
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "astgrep-eval",
		Short: "Evaluate LLM tool usage against the astgrep-mcp server",
		Long: `astgrep-eval drives an OpenAI-compatible chat model against a live
astgrep-mcp server over stdio. The model receives the server's tool
definitions, its tool calls are executed for real, and the final
response is captured for snapshot comparison across model versions.`,
	}

	addClientFlags(rootCmd)
	rootCmd.PersistentFlags().StringVar(&snapshotDir, "snapshot-dir", ".eval-snapshots", "Directory for response snapshots")

	// Add subcommands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(snapshotsCmd())

	return rootCmd
}

// addClientFlags registers the flags shared by every command that spawns a
// server and talks to a chat endpoint.
func addClientFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Chat API base URL (or set OPENAI_BASE_URL)")
	cmd.PersistentFlags().StringVar(&model, "model", "", "Model name (or set OPENAI_MODEL)")
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (or set OPENAI_API_KEY)")
	cmd.PersistentFlags().StringVar(&serverCommand, "server", "astgrep-mcp", "MCP server command to spawn")
	cmd.PersistentFlags().StringSliceVar(&serverArgs, "server-arg", nil, "Argument passed to the server command (repeatable)")
	cmd.PersistentFlags().IntVar(&timeoutSecs, "timeout", 30, "Per-request timeout in seconds")
}

// clientConfig merges flags over environment-derived defaults.
func clientConfig() eval.Config {
	config := eval.DefaultConfig()
	if endpoint != "" {
		config.Endpoint = endpoint
	}
	if model != "" {
		config.Model = model
	}
	if apiKey != "" {
		config.APIKey = apiKey
	}
	if serverCommand != "" {
		config.ServerCommand = serverCommand
	}
	if len(serverArgs) > 0 {
		config.ServerArgs = serverArgs
	}
	if timeoutSecs > 0 {
		config.Timeout = time.Duration(timeoutSecs) * time.Second
	}
	return config
}
