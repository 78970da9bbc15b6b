package eval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/gofrs/flock"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/astgrep-tools/astgrep-mcp/internal/logging"
)

// SnapshotMetadata identifies a captured snapshot.
type SnapshotMetadata struct {
	TestName   string `yaml:"test_name"`
	ModelName  string `yaml:"model_name"`
	Timestamp  int64  `yaml:"timestamp"`
	GitCommit  string `yaml:"git_commit,omitempty"`
	PromptHash string `yaml:"prompt_hash"`
}

// ResponseAnalysis is a cheap structural read of a response.
type ResponseAnalysis struct {
	ContainsToolCalls bool `yaml:"contains_tool_calls"`
	ContainsCode      bool `yaml:"contains_code"`
	ContainsError     bool `yaml:"contains_error"`
	WordCount         int  `yaml:"word_count"`
}

// Snapshot is one recorded evaluation, stored as YAML.
type Snapshot struct {
	Metadata SnapshotMetadata `yaml:"metadata"`
	Result   Result           `yaml:"evaluation_result"`
	Analysis ResponseAnalysis `yaml:"response_analysis"`
}

// Difference is one field-level change between two snapshots.
type Difference struct {
	Field    string `yaml:"field"`
	Previous string `yaml:"previous_value"`
	Current  string `yaml:"current_value"`
}

// Comparison is the outcome of comparing two snapshots of the same test.
type Comparison struct {
	TestName        string       `yaml:"test_name,omitempty"`
	Differences     []Difference `yaml:"differences"`
	SimilarityScore float64      `yaml:"similarity_score"`
	ResponseDiff    string       `yaml:"response_diff,omitempty"`
}

// Summary aggregates a snapshot directory.
type Summary struct {
	TotalSnapshots  int            `yaml:"total_snapshots"`
	TestCoverage    map[string]int `yaml:"test_coverage"`
	ModelCoverage   map[string]int `yaml:"model_coverage"`
	AvgResponseTime float64        `yaml:"avg_response_time"`
	SuccessRate     float64        `yaml:"success_rate"`
	MostCommonTools []ToolUsage    `yaml:"most_common_tools"`
}

// ToolUsage counts invocations of one tool across snapshots.
type ToolUsage struct {
	Tool  string `yaml:"tool"`
	Count int    `yaml:"count"`
}

// SnapshotManager reads and writes snapshots under one directory.
type SnapshotManager struct {
	dir string
}

// NewSnapshotManager creates a manager rooted at dir.
func NewSnapshotManager(dir string) *SnapshotManager {
	return &SnapshotManager{dir: dir}
}

// AnalyzeResponse derives a ResponseAnalysis from a result.
func AnalyzeResponse(result Result) ResponseAnalysis {
	lower := strings.ToLower(result.Response)
	return ResponseAnalysis{
		ContainsToolCalls: result.ToolCallsMade > 0,
		ContainsCode:      strings.Contains(result.Response, "```"),
		ContainsError:     strings.Contains(lower, "error") || strings.Contains(lower, "failed"),
		WordCount:         len(strings.Fields(result.Response)),
	}
}

// Capture builds a snapshot from a result and writes it to disk.
func (m *SnapshotManager) Capture(testName string, result Result) (*Snapshot, error) {
	hash := sha256.Sum256([]byte(result.Prompt))
	snapshot := &Snapshot{
		Metadata: SnapshotMetadata{
			TestName:   testName,
			ModelName:  result.ModelName,
			Timestamp:  time.Now().Unix(),
			PromptHash: hex.EncodeToString(hash[:8]),
		},
		Result:   result,
		Analysis: AnalyzeResponse(result),
	}
	if err := m.Save(snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Save writes one snapshot as YAML. Writes are guarded by a file lock so
// concurrent benchmark workers never interleave in the same file.
func (m *SnapshotManager) Save(snapshot *Snapshot) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%d.yaml",
		sanitizeName(snapshot.Metadata.TestName),
		sanitizeName(snapshot.Metadata.ModelName),
		snapshot.Metadata.Timestamp)
	path := filepath.Join(m.dir, name)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock snapshot file: %w", err)
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load reads one snapshot file.
func (m *SnapshotManager) Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	var snapshot Snapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return &snapshot, nil
}

// LoadAll reads every YAML snapshot in the directory. Unparseable files are
// logged and skipped.
func (m *SnapshotManager) LoadAll() ([]*Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snapshots []*Snapshot
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		snapshot, err := m.Load(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			logging.Warn("skipping unreadable snapshot", "file", entry.Name(), "err", err)
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// Compare reports field-level differences between two snapshots plus a
// unified text diff of the response content.
func (m *SnapshotManager) Compare(previous, current *Snapshot) Comparison {
	var diffs []Difference
	var penalty float64

	if previous.Result.Response != current.Result.Response {
		diffs = append(diffs, Difference{
			Field:    "response_content",
			Previous: previous.Result.Response,
			Current:  current.Result.Response,
		})
		penalty += 0.3
	}
	if previous.Result.ToolCallsMade != current.Result.ToolCallsMade {
		diffs = append(diffs, Difference{
			Field:    "tool_calls_count",
			Previous: fmt.Sprint(previous.Result.ToolCallsMade),
			Current:  fmt.Sprint(current.Result.ToolCallsMade),
		})
		penalty += 0.2
	}
	// Duration only counts when it moved by more than a second.
	durationDelta := previous.Result.DurationMS - current.Result.DurationMS
	if durationDelta < 0 {
		durationDelta = -durationDelta
	}
	if durationDelta > 1000 {
		diffs = append(diffs, Difference{
			Field:    "duration_ms",
			Previous: fmt.Sprint(previous.Result.DurationMS),
			Current:  fmt.Sprint(current.Result.DurationMS),
		})
	}
	if previous.Analysis.ContainsError != current.Analysis.ContainsError {
		diffs = append(diffs, Difference{
			Field:    "contains_error",
			Previous: fmt.Sprint(previous.Analysis.ContainsError),
			Current:  fmt.Sprint(current.Analysis.ContainsError),
		})
		penalty += 0.1
	}
	if previous.Analysis.WordCount != current.Analysis.WordCount {
		diffs = append(diffs, Difference{
			Field:    "word_count",
			Previous: fmt.Sprint(previous.Analysis.WordCount),
			Current:  fmt.Sprint(current.Analysis.WordCount),
		})
		penalty += 0.1
	}

	score := 1.0 - float64(len(diffs))*0.1 - penalty
	if score < 0 {
		score = 0
	}

	comparison := Comparison{Differences: diffs, SimilarityScore: score}
	if previous.Result.Response != current.Result.Response {
		dmp := diffmatchpatch.New()
		patches := dmp.PatchMake(previous.Result.Response, current.Result.Response)
		comparison.ResponseDiff = dmp.PatchToText(patches)
	}
	return comparison
}

// FindRegressions compares the oldest and newest snapshot of each test and
// returns the ones whose similarity dropped below threshold.
func (m *SnapshotManager) FindRegressions(threshold float64) ([]Comparison, error) {
	snapshots, err := m.LoadAll()
	if err != nil {
		return nil, err
	}

	byTest := make(map[string][]*Snapshot)
	for _, snapshot := range snapshots {
		byTest[snapshot.Metadata.TestName] = append(byTest[snapshot.Metadata.TestName], snapshot)
	}

	var regressions []Comparison
	for name, group := range byTest {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].Metadata.Timestamp < group[j].Metadata.Timestamp
		})
		comparison := m.Compare(group[0], group[len(group)-1])
		comparison.TestName = name
		if comparison.SimilarityScore < threshold {
			regressions = append(regressions, comparison)
		}
	}
	return regressions, nil
}

// Summarize aggregates the snapshot directory.
func (m *SnapshotManager) Summarize() (Summary, error) {
	snapshots, err := m.LoadAll()
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		TotalSnapshots: len(snapshots),
		TestCoverage:   make(map[string]int),
		ModelCoverage:  make(map[string]int),
	}
	if len(snapshots) == 0 {
		return summary, nil
	}

	var totalDuration int64
	successCount := 0
	toolCounts := make(map[string]int)

	for _, snapshot := range snapshots {
		summary.TestCoverage[snapshot.Metadata.TestName]++
		summary.ModelCoverage[snapshot.Metadata.ModelName]++
		totalDuration += snapshot.Result.DurationMS
		if snapshot.Result.Success {
			successCount++
		}
		for _, call := range snapshot.Result.ToolCalls {
			toolCounts[call.ToolName]++
		}
	}

	summary.AvgResponseTime = float64(totalDuration) / float64(len(snapshots))
	summary.SuccessRate = float64(successCount) / float64(len(snapshots))

	for tool, count := range toolCounts {
		summary.MostCommonTools = append(summary.MostCommonTools, ToolUsage{Tool: tool, Count: count})
	}
	sort.Slice(summary.MostCommonTools, func(i, j int) bool {
		if summary.MostCommonTools[i].Count != summary.MostCommonTools[j].Count {
			return summary.MostCommonTools[i].Count > summary.MostCommonTools[j].Count
		}
		return summary.MostCommonTools[i].Tool < summary.MostCommonTools[j].Tool
	})
	if len(summary.MostCommonTools) > 10 {
		summary.MostCommonTools = summary.MostCommonTools[:10]
	}
	return summary, nil
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
