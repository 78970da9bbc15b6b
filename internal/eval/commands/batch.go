package commands

import (
	"bufio"
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

// batchLine is one prompt's outcome in batch output.
type batchLine struct {
	Index  int    `json:"index"`
	Prompt string `json:"prompt"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

func batchCmd() *cobra.Command {
	var (
		systemPrompt string
		concurrency  int
		jsonOutput   bool
		minimal      bool
	)

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Run a file of prompts concurrently without tools",
		Long: `Run every prompt in a file (one per line, # comments skipped) against
the chat endpoint concurrently, without spawning a server or attaching
tools. Useful for smoke-testing an endpoint before a full benchmark.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts, err := readPromptFile(args[0])
			if err != nil {
				return err
			}
			if len(prompts) == 0 {
				return fmt.Errorf("no prompts in %s", args[0])
			}

			results := eval.CompleteBatch(context.Background(), clientConfig(), systemPrompt, prompts, concurrency)

			lines := make([]batchLine, len(results))
			for i, result := range results {
				lines[i] = batchLine{Index: result.Index, Prompt: prompts[i]}
				if result.Error != nil {
					lines[i].Error = result.Error.Error()
					continue
				}
				if text, ok := result.Output.(string); ok {
					lines[i].Output = text
				}
			}

			isTTY := term.IsTerminal(int(os.Stdout.Fd()))
			formatter := output.New(jsonOutput || !isTTY, minimal, os.Stdout)
			return formatter.Print(lines, func(w io.Writer, data interface{}) {
				for _, line := range data.([]batchLine) {
					if line.Error != "" {
						fmt.Fprintf(w, "[%d] FAILED %s\n    %s\n", line.Index, line.Prompt, line.Error)
						continue
					}
					fmt.Fprintf(w, "[%d] %s\n    %s\n", line.Index, line.Prompt, line.Output)
				}
			})
		},
	}

	cmd.Flags().StringVar(&systemPrompt, "system", "", "System prompt sent with every request")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Prompts processed in parallel")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&minimal, "minimal", false, "Token-optimized single-line JSON")

	return cmd
}

// readPromptFile reads one prompt per line, skipping blanks and # comments.
func readPromptFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	defer file.Close()

	var prompts []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	return prompts, nil
}
