package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/astgrep-tools/astgrep-mcp/internal/eval"
	"github.com/astgrep-tools/astgrep-mcp/pkg/output"
)

func runCmd() *cobra.Command {
	var (
		jsonOutput   bool
		minimal      bool
		snapshotName string
	)

	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run one evaluation prompt",
		Long: `Run a single prompt through the model with the server's tools attached.
The model's tool calls are executed against the spawned server and the
final response is printed.

With --snapshot, the result is also saved under --snapshot-dir so later
runs can be compared with "astgrep-eval snapshots regressions".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")

			client := eval.NewClient(clientConfig())
			defer client.Close()

			ctx := context.Background()
			if err := client.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}

			result, err := client.Evaluate(ctx, prompt)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}

			if snapshotName != "" {
				manager := eval.NewSnapshotManager(snapshotDir)
				if _, err := manager.Capture(snapshotName, result); err != nil {
					return fmt.Errorf("failed to save snapshot: %w", err)
				}
			}

			isTTY := term.IsTerminal(int(os.Stdout.Fd()))
			formatter := output.New(jsonOutput || !isTTY, minimal, os.Stdout)
			return formatter.Print(result, func(w io.Writer, data interface{}) {
				r := data.(eval.Result)
				fmt.Fprintf(w, "Model:      %s\n", r.ModelName)
				fmt.Fprintf(w, "Duration:   %dms\n", r.DurationMS)
				fmt.Fprintf(w, "Tool calls: %d\n", r.ToolCallsMade)
				for _, call := range r.ToolCalls {
					status := "ok"
					if call.Failed {
						status = "failed"
					}
					fmt.Fprintf(w, "  - %s (%s)\n", call.ToolName, status)
				}
				fmt.Fprintf(w, "\n%s\n", r.Response)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result as JSON")
	cmd.Flags().BoolVar(&minimal, "minimal", false, "Token-optimized single-line JSON")
	cmd.Flags().StringVar(&snapshotName, "snapshot", "", "Save the result as a named snapshot")

	return cmd
}
