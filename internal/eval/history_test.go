package eval

import (
	"context"
	"testing"
	"time"
)

func testReport(name string, startedAt time.Time, successRate float64) *Report {
	return &Report{
		Name:       name,
		Model:      "test-model",
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Minute),
		Scenarios: []ScenarioReport{
			{
				Scenario: "Basic Function Search",
				Category: "search",
				Metrics: ScenarioMetrics{
					SuccessRate:         successRate,
					AvgDurationMS:       150,
					P95DurationMS:       400,
					ErrorRate:           1 - successRate,
					ToolCallsPerRequest: 1.2,
					ConsistencyScore:    0.9,
				},
			},
		},
		Overall: OverallMetrics{
			TotalEvaluations:    10,
			TotalErrors:         2,
			WeightedSuccessRate: successRate,
			ReliabilityScore:    successRate,
		},
	}
}

func TestHistory_RecordAndRecentRuns(t *testing.T) {
	history, err := OpenHistory("")
	if err != nil {
		t.Fatalf("OpenHistory() error = %v", err)
	}
	defer history.Close()

	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	firstID, err := history.RecordRun(ctx, testReport("first", base, 0.5))
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	secondID, err := history.RecordRun(ctx, testReport("second", base.Add(time.Hour), 0.8))
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if firstID == secondID {
		t.Fatalf("run ids not distinct: %d", firstID)
	}

	runs, err := history.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("RecentRuns() = %d runs, want 2", len(runs))
	}
	if runs[0].Name != "second" || runs[1].Name != "first" {
		t.Errorf("order = %q, %q, want newest first", runs[0].Name, runs[1].Name)
	}
	if runs[0].WeightedSuccessRate != 0.8 {
		t.Errorf("WeightedSuccessRate = %v", runs[0].WeightedSuccessRate)
	}
	if runs[0].TotalEvaluations != 10 || runs[0].TotalErrors != 2 {
		t.Errorf("run = %+v", runs[0])
	}

	limited, err := history.RecentRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("RecentRuns(1) = %d runs, %v", len(limited), err)
	}
}

func TestHistory_ScenarioTrend(t *testing.T) {
	history, err := OpenHistory("")
	if err != nil {
		t.Fatal(err)
	}
	defer history.Close()

	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for i, rate := range []float64{0.4, 0.6, 0.9} {
		if _, err := history.RecordRun(ctx, testReport("run", base.Add(time.Duration(i)*time.Hour), rate)); err != nil {
			t.Fatal(err)
		}
	}

	trend, err := history.ScenarioTrend(ctx, "Basic Function Search", 0)
	if err != nil {
		t.Fatalf("ScenarioTrend() error = %v", err)
	}
	if len(trend) != 3 {
		t.Fatalf("trend points = %d, want 3", len(trend))
	}
	// Oldest first.
	rates := []float64{trend[0].SuccessRate, trend[1].SuccessRate, trend[2].SuccessRate}
	if rates[0] != 0.4 || rates[1] != 0.6 || rates[2] != 0.9 {
		t.Errorf("trend rates = %v", rates)
	}
	if !trend[0].StartedAt.Before(trend[2].StartedAt) {
		t.Errorf("trend not ascending: %v .. %v", trend[0].StartedAt, trend[2].StartedAt)
	}

	empty, err := history.ScenarioTrend(ctx, "missing scenario", 0)
	if err != nil {
		t.Fatalf("ScenarioTrend(missing) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no points for unknown scenario, got %d", len(empty))
	}
}
