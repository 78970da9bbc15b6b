package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/astgrep-tools/astgrep-mcp/internal/eval"
	"github.com/astgrep-tools/astgrep-mcp/pkg/output"
)

// BenchRootCmd returns the root command for astgrep-bench
func BenchRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "astgrep-bench",
		Short: "Benchmark LLM tool usage across evaluation scenarios",
		Long: `astgrep-bench runs a suite of evaluation scenarios against a model,
repeating each scenario several times and aggregating success rate,
latency percentiles, and tool-usage consistency. Results can be stored
in a SQLite history database for trend analysis across runs.`,
	}

	addClientFlags(rootCmd)

	rootCmd.AddCommand(benchRunCmd())
	rootCmd.AddCommand(benchHistoryCmd())
	rootCmd.AddCommand(benchTrendCmd())

	return rootCmd
}

// loadScenarios reads a scenario suite from a YAML file; an empty path
// returns the built-in default suite.
func loadScenarios(path string) ([]eval.Scenario, error) {
	if path == "" {
		return eval.DefaultScenarios(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var scenarios []eval.Scenario
	if err := yaml.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("scenario file %s contains no scenarios", path)
	}
	return scenarios, nil
}

func benchRunCmd() *cobra.Command {
	var (
		name         string
		iterations   int
		concurrency  int
		scenarioFile string
		filterExpr   string
		historyPath  string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark suite",
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := loadScenarios(scenarioFile)
			if err != nil {
				return err
			}

			clientCfg := clientConfig()
			config := eval.DefaultBenchConfig(clientCfg.Model)
			config.Name = name
			config.Scenarios = scenarios
			if iterations > 0 {
				config.Iterations = iterations
			}
			if concurrency > 0 {
				config.Concurrency = concurrency
			}

			runner := eval.NewRunner(config, func(ctx context.Context) (eval.Evaluator, error) {
				worker := eval.NewClient(clientCfg)
				if err := worker.Connect(ctx); err != nil {
					worker.Close()
					return nil, err
				}
				return worker, nil
			})

			report, err := runner.Run(context.Background())
			if err != nil {
				return fmt.Errorf("benchmark failed: %w", err)
			}

			if filterExpr != "" {
				filtered, err := eval.FilterScenarios(report.Scenarios, filterExpr)
				if err != nil {
					return fmt.Errorf("invalid --filter expression: %w", err)
				}
				report.Scenarios = filtered
			}

			if historyPath != "" {
				history, err := eval.OpenHistory(historyPath)
				if err != nil {
					return err
				}
				defer history.Close()
				if _, err := history.RecordRun(context.Background(), report); err != nil {
					return fmt.Errorf("failed to record run: %w", err)
				}
			}

			isTTY := term.IsTerminal(int(os.Stdout.Fd()))
			formatter := output.New(jsonOutput || !isTTY, false, os.Stdout)
			return formatter.Print(report, func(w io.Writer, data interface{}) {
				fmt.Fprint(w, eval.FormatReport(data.(*eval.Report)))
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "benchmark", "Run name stored in history")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Iterations per scenario (default from suite config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Scenarios run in parallel")
	cmd.Flags().StringVar(&scenarioFile, "scenarios", "", "YAML file with custom scenarios (default: built-in suite)")
	cmd.Flags().StringVar(&filterExpr, "filter", "", `Report filter expression, e.g. 'success_rate < 0.5'`)
	cmd.Flags().StringVar(&historyPath, "history", "", "SQLite database to record results in")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full report as JSON")

	return cmd
}

func benchHistoryCmd() *cobra.Command {
	var (
		historyPath string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent benchmark runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := eval.OpenHistory(historyPath)
			if err != nil {
				return err
			}
			defer history.Close()

			runs, err := history.RecentRuns(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No recorded runs.")
				return nil
			}
			fmt.Printf("%-5s %-20s %-20s %-20s %8s %7s\n", "ID", "NAME", "MODEL", "STARTED", "SUCCESS", "ERRORS")
			for _, run := range runs {
				fmt.Printf("%-5d %-20s %-20s %-20s %7.1f%% %7d\n",
					run.ID, run.Name, run.Model,
					run.StartedAt.Format("2006-01-02 15:04:05"),
					run.WeightedSuccessRate*100, run.TotalErrors)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&historyPath, "history", "bench-history.db", "SQLite history database")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")

	return cmd
}

func benchTrendCmd() *cobra.Command {
	var (
		historyPath string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "trend <scenario>",
		Short: "Show one scenario's metrics across runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := eval.OpenHistory(historyPath)
			if err != nil {
				return err
			}
			defer history.Close()

			points, err := history.ScenarioTrend(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			if len(points) == 0 {
				fmt.Printf("No recorded runs for scenario %q.\n", args[0])
				return nil
			}
			fmt.Printf("%-20s %8s %12s\n", "STARTED", "SUCCESS", "AVG MS")
			for _, point := range points {
				fmt.Printf("%-20s %7.1f%% %12.0f\n",
					point.StartedAt.Format("2006-01-02 15:04:05"),
					point.SuccessRate*100, point.AvgDurationMS)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&historyPath, "history", "bench-history.db", "SQLite history database")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum runs to include")

	return cmd
}
