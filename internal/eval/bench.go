package eval

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/expr-lang/expr"
	"golang.org/x/sync/errgroup"

	"github.com/astgrep-tools/astgrep-mcp/internal/logging"
)

// Evaluator runs one prompt and returns the outcome. *Client implements it;
// benchmarks accept the interface so tests can stub the LLM round trip.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string) (Result, error)
	ResetConversation()
}

// BenchConfig configures a benchmark run.
type BenchConfig struct {
	Name        string     `yaml:"name" json:"name"`
	Model       string     `yaml:"model" json:"model"`
	Iterations  int        `yaml:"iterations" json:"iterations"`
	Concurrency int        `yaml:"concurrency" json:"concurrency"`
	Scenarios   []Scenario `yaml:"scenarios" json:"scenarios"`
}

// DefaultBenchConfig returns a config over the default scenario suite.
func DefaultBenchConfig(model string) BenchConfig {
	return BenchConfig{
		Name:        "default",
		Model:       model,
		Iterations:  10,
		Concurrency: 2,
		Scenarios:   DefaultScenarios(),
	}
}

// ScenarioMetrics summarizes repeated evaluations of one scenario.
type ScenarioMetrics struct {
	SuccessRate         float64 `yaml:"success_rate" json:"success_rate"`
	AvgDurationMS       float64 `yaml:"avg_duration_ms" json:"avg_duration_ms"`
	StdDeviationMS      float64 `yaml:"std_deviation_ms" json:"std_deviation_ms"`
	MinDurationMS       int64   `yaml:"min_duration_ms" json:"min_duration_ms"`
	MaxDurationMS       int64   `yaml:"max_duration_ms" json:"max_duration_ms"`
	P95DurationMS       float64 `yaml:"p95_duration_ms" json:"p95_duration_ms"`
	P99DurationMS       float64 `yaml:"p99_duration_ms" json:"p99_duration_ms"`
	ToolCallsPerRequest float64 `yaml:"tool_calls_per_request" json:"tool_calls_per_request"`
	ErrorRate           float64 `yaml:"error_rate" json:"error_rate"`
	ConsistencyScore    float64 `yaml:"consistency_score" json:"consistency_score"`
	ToolAccuracy        float64 `yaml:"tool_accuracy" json:"tool_accuracy"`
}

// ScenarioReport is one scenario's evaluations plus derived metrics.
type ScenarioReport struct {
	Scenario    string          `yaml:"scenario" json:"scenario"`
	Category    string          `yaml:"category" json:"category"`
	Evaluations []Result        `yaml:"evaluations" json:"evaluations"`
	Metrics     ScenarioMetrics `yaml:"metrics" json:"metrics"`
}

// OverallMetrics aggregates a whole run.
type OverallMetrics struct {
	WeightedSuccessRate float64 `yaml:"weighted_success_rate" json:"weighted_success_rate"`
	TotalDurationMS     int64   `yaml:"total_duration_ms" json:"total_duration_ms"`
	TotalEvaluations    int     `yaml:"total_evaluations" json:"total_evaluations"`
	TotalErrors         int     `yaml:"total_errors" json:"total_errors"`
	ReliabilityScore    float64 `yaml:"reliability_score" json:"reliability_score"`
}

// Report is the complete outcome of one benchmark run.
type Report struct {
	Name       string           `yaml:"name" json:"name"`
	Model      string           `yaml:"model" json:"model"`
	StartedAt  time.Time        `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time        `yaml:"finished_at" json:"finished_at"`
	Scenarios  []ScenarioReport `yaml:"scenarios" json:"scenarios"`
	Overall    OverallMetrics   `yaml:"overall" json:"overall"`
}

// EvaluatorFactory creates one evaluator per concurrent scenario worker.
// Each worker needs its own conversation history.
type EvaluatorFactory func(ctx context.Context) (Evaluator, error)

// Runner executes a benchmark configuration.
type Runner struct {
	Config     BenchConfig
	NewWorker  EvaluatorFactory
	RetryDelay time.Duration
}

// NewRunner creates a runner.
func NewRunner(config BenchConfig, factory EvaluatorFactory) *Runner {
	if config.Iterations <= 0 {
		config.Iterations = 1
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Runner{
		Config:     config,
		NewWorker:  factory,
		RetryDelay: 200 * time.Millisecond,
	}
}

// Run executes every scenario, with scenarios running concurrently up to the
// configured limit. A failed evaluation becomes a failed Result rather than
// aborting the run.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		Name:      r.Config.Name,
		Model:     r.Config.Model,
		StartedAt: time.Now(),
		Scenarios: make([]ScenarioReport, len(r.Config.Scenarios)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Config.Concurrency)

	for i, scenario := range r.Config.Scenarios {
		i, scenario := i, scenario
		g.Go(func() error {
			logging.Info("running scenario", "scenario", scenario.Name)
			scenarioReport, err := r.runScenario(ctx, scenario)
			if err != nil {
				return err
			}
			report.Scenarios[i] = scenarioReport
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.FinishedAt = time.Now()
	report.Overall = r.overallMetrics(report.Scenarios)
	return report, nil
}

func (r *Runner) runScenario(ctx context.Context, scenario Scenario) (ScenarioReport, error) {
	worker, err := r.NewWorker(ctx)
	if err != nil {
		return ScenarioReport{}, fmt.Errorf("failed to create worker for %s: %w", scenario.Name, err)
	}
	// Workers that hold a server subprocess get torn down with the scenario.
	defer func() {
		if closer, ok := worker.(io.Closer); ok {
			closer.Close()
		}
	}()

	evaluations := make([]Result, 0, r.Config.Iterations)
	for i := 0; i < r.Config.Iterations; i++ {
		worker.ResetConversation()

		// Pace iterations so local endpoints don't get hammered.
		if i > 0 && r.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return ScenarioReport{}, ctx.Err()
			case <-time.After(r.RetryDelay):
			}
		}

		result, err := worker.Evaluate(ctx, scenario.Prompt)
		if err != nil {
			logging.Warn("evaluation failed", "scenario", scenario.Name, "err", err)
			result = Result{
				Prompt:    scenario.Prompt,
				Response:  "Error: " + err.Error(),
				Success:   false,
				Timestamp: time.Now().Unix(),
				ModelName: r.Config.Model,
			}
		} else if passed, perr := scenario.Passed(result); perr != nil {
			return ScenarioReport{}, perr
		} else {
			result.Success = passed
		}
		evaluations = append(evaluations, result)
	}

	return ScenarioReport{
		Scenario:    scenario.Name,
		Category:    scenario.Category,
		Evaluations: evaluations,
		Metrics:     calculateMetrics(scenario, evaluations),
	}, nil
}

func calculateMetrics(scenario Scenario, evaluations []Result) ScenarioMetrics {
	if len(evaluations) == 0 {
		return ScenarioMetrics{}
	}

	n := float64(len(evaluations))
	var metrics ScenarioMetrics

	durations := make([]int64, 0, len(evaluations))
	var durationSum, toolCalls int64
	successes, errors, accurate := 0, 0, 0

	for _, eval := range evaluations {
		durations = append(durations, eval.DurationMS)
		durationSum += eval.DurationMS
		toolCalls += int64(eval.ToolCallsMade)
		if eval.Success {
			successes++
		} else {
			errors++
		}
		if scenario.ExpectedToolUsed(eval) {
			accurate++
		}
	}

	metrics.SuccessRate = float64(successes) / n
	metrics.ErrorRate = float64(errors) / n
	metrics.ToolCallsPerRequest = float64(toolCalls) / n
	metrics.ToolAccuracy = float64(accurate) / n
	metrics.AvgDurationMS = float64(durationSum) / n

	var variance float64
	for _, d := range durations {
		delta := float64(d) - metrics.AvgDurationMS
		variance += delta * delta
	}
	variance /= n
	metrics.StdDeviationMS = math.Sqrt(variance)

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	metrics.MinDurationMS = durations[0]
	metrics.MaxDurationMS = durations[len(durations)-1]
	metrics.P95DurationMS = percentile(durations, 0.95)
	metrics.P99DurationMS = percentile(durations, 0.99)

	// Consistency from tool-usage variance: stable tool counts score near 1.
	avgTools := metrics.ToolCallsPerRequest
	var toolVariance float64
	for _, eval := range evaluations {
		delta := float64(eval.ToolCallsMade) - avgTools
		toolVariance += delta * delta
	}
	toolVariance /= n
	metrics.ConsistencyScore = 1.0 / (1.0 + toolVariance)

	return metrics
}

func percentile(sorted []int64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(math.Round(p * float64(len(sorted)-1)))
	return float64(sorted[index])
}

func (r *Runner) overallMetrics(scenarios []ScenarioReport) OverallMetrics {
	var overall OverallMetrics
	var weightedSum, weightTotal float64

	for i, report := range scenarios {
		weight := 1.0
		if i < len(r.Config.Scenarios) && r.Config.Scenarios[i].Weight > 0 {
			weight = r.Config.Scenarios[i].Weight
		}
		weightedSum += report.Metrics.SuccessRate * weight
		weightTotal += weight

		for _, eval := range report.Evaluations {
			overall.TotalEvaluations++
			overall.TotalDurationMS += eval.DurationMS
			if !eval.Success {
				overall.TotalErrors++
			}
		}
	}

	if weightTotal > 0 {
		overall.WeightedSuccessRate = weightedSum / weightTotal
	}
	if overall.TotalEvaluations > 0 {
		overall.ReliabilityScore = 1.0 - float64(overall.TotalErrors)/float64(overall.TotalEvaluations)
	}
	return overall
}

// FilterScenarios selects scenario reports matching an expression over
// scenario, category, success_rate, avg_duration_ms, error_rate, and
// consistency.
func FilterScenarios(reports []ScenarioReport, filterExpr string) ([]ScenarioReport, error) {
	if filterExpr == "" {
		return reports, nil
	}

	env := scenarioFilterEnv(ScenarioReport{})
	program, err := expr.Compile(filterExpr, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", filterExpr, err)
	}

	var filtered []ScenarioReport
	for _, report := range reports {
		out, err := expr.Run(program, scenarioFilterEnv(report))
		if err != nil {
			return nil, fmt.Errorf("failed to apply filter %q: %w", filterExpr, err)
		}
		if keep, ok := out.(bool); ok && keep {
			filtered = append(filtered, report)
		}
	}
	return filtered, nil
}

func scenarioFilterEnv(report ScenarioReport) map[string]interface{} {
	return map[string]interface{}{
		"scenario":        report.Scenario,
		"category":        report.Category,
		"success_rate":    report.Metrics.SuccessRate,
		"avg_duration_ms": report.Metrics.AvgDurationMS,
		"error_rate":      report.Metrics.ErrorRate,
		"consistency":     report.Metrics.ConsistencyScore,
	}
}

// FormatReport renders a human-readable run summary.
func FormatReport(report *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Benchmark: %s (model %s)\n", report.Name, report.Model)
	fmt.Fprintf(&b, "Started:   %s\n", humanize.Time(report.StartedAt))
	fmt.Fprintf(&b, "Wall time: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(&b, "Evaluations: %s (%s errors)\n\n",
		humanize.Comma(int64(report.Overall.TotalEvaluations)),
		humanize.Comma(int64(report.Overall.TotalErrors)))

	for _, scenario := range report.Scenarios {
		fmt.Fprintf(&b, "%-28s success %5.1f%%  avg %8.1fms  p95 %8.1fms  tools/req %.2f\n",
			scenario.Scenario,
			scenario.Metrics.SuccessRate*100,
			scenario.Metrics.AvgDurationMS,
			scenario.Metrics.P95DurationMS,
			scenario.Metrics.ToolCallsPerRequest)
	}

	fmt.Fprintf(&b, "\nWeighted success rate: %.1f%%\n", report.Overall.WeightedSuccessRate*100)
	fmt.Fprintf(&b, "Reliability:           %.1f%%\n", report.Overall.ReliabilityScore*100)
	return b.String()
}
