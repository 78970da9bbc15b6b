package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/astgrep-tools/astgrep-mcp/internal/eval"
)

func snapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect saved evaluation snapshots",
	}

	cmd.AddCommand(snapshotsListCmd())
	cmd.AddCommand(snapshotsSummaryCmd())
	cmd.AddCommand(snapshotsRegressionsCmd())

	return cmd
}

func snapshotsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots in the snapshot directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := eval.NewSnapshotManager(snapshotDir)
			snapshots, err := manager.LoadAll()
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				fmt.Println("No snapshots found.")
				return nil
			}
			for _, snapshot := range snapshots {
				when := time.Unix(snapshot.Metadata.Timestamp, 0).Format(time.RFC3339)
				status := "ok"
				if !snapshot.Result.Success {
					status = "failed"
				}
				fmt.Printf("%-30s %-20s %s  %dms  %s\n",
					snapshot.Metadata.TestName, snapshot.Metadata.ModelName,
					when, snapshot.Result.DurationMS, status)
			}
			return nil
		},
	}
}

func snapshotsSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Aggregate snapshot statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := eval.NewSnapshotManager(snapshotDir)
			summary, err := manager.Summarize()
			if err != nil {
				return err
			}

			fmt.Printf("Snapshots:         %d\n", summary.TotalSnapshots)
			fmt.Printf("Success rate:      %.1f%%\n", summary.SuccessRate*100)
			fmt.Printf("Avg response time: %.0fms\n", summary.AvgResponseTime)
			fmt.Println("\nTests:")
			for name, count := range summary.TestCoverage {
				fmt.Printf("  %-30s %d\n", name, count)
			}
			fmt.Println("\nModels:")
			for name, count := range summary.ModelCoverage {
				fmt.Printf("  %-30s %d\n", name, count)
			}
			if len(summary.MostCommonTools) > 0 {
				fmt.Println("\nTools:")
				for _, usage := range summary.MostCommonTools {
					fmt.Printf("  %-30s %d\n", usage.Tool, usage.Count)
				}
			}
			return nil
		},
	}
}

func snapshotsRegressionsCmd() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "regressions",
		Short: "Compare each test's oldest and newest snapshot",
		Long: `Compare the oldest and newest snapshot of every test and report the
ones whose similarity dropped below the threshold. Exits nonzero when
any regression is found, which makes this usable as a CI gate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := eval.NewSnapshotManager(snapshotDir)
			regressions, err := manager.FindRegressions(threshold)
			if err != nil {
				return err
			}
			if len(regressions) == 0 {
				fmt.Println("No regressions detected.")
				return nil
			}

			for _, regression := range regressions {
				fmt.Printf("REGRESSION %s (similarity %.2f)\n", regression.TestName, regression.SimilarityScore)
				for _, diff := range regression.Differences {
					fmt.Printf("  %s: %q -> %q\n", diff.Field, truncate(diff.Previous, 60), truncate(diff.Current, 60))
				}
			}
			os.Exit(1)
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0.7, "Similarity score below which a change counts as a regression")

	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
