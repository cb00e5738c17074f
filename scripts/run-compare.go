//go:build ignore

// Package main compares two reconcile run summaries for regressions.
// Usage: go run scripts/run-compare.go <current.json> <baseline.json>
//
// Both inputs are the JSON summaries printed by 'brewindex reconcile
// --json'. A phase that runs > 20% slower than the baseline fails the
// comparison, unless the two runs did different amounts of work.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// RegressionThreshold is the maximum allowed slowdown (20%)
	RegressionThreshold = 0.20

	// ImprovementThreshold for highlighting significant speedups
	ImprovementThreshold = 0.10
)

// runSummary mirrors the fields of the reconcile summary this tool
// cares about. Durations arrive as nanosecond integers.
type runSummary struct {
	RunID          string        `json:"run_id"`
	DryRun         bool          `json:"dry_run"`
	FilesChecked   int           `json:"files_checked"`
	FilesProcessed int           `json:"files_processed"`
	FilesSkipped   int           `json:"files_skipped"`
	ChunksCreated  int           `json:"chunks_created"`
	Duration       time.Duration `json:"duration"`
	Timings        struct {
		Snapshot time.Duration `json:"snapshot"`
		Scan     time.Duration `json:"scan"`
		Cleanup  time.Duration `json:"cleanup"`
		Process  time.Duration `json:"process"`
	} `json:"timings"`
}

// ComparisonResult represents one phase compared against the baseline.
type ComparisonResult struct {
	Phase       string  `json:"phase"`
	Current     float64 `json:"current_ms"`
	Baseline    float64 `json:"baseline_ms"`
	DeltaPct    float64 `json:"delta_percent"`
	IsRegressed bool    `json:"is_regressed"`
	IsImproved  bool    `json:"is_improved"`
	Status      string  `json:"status"`
}

// Report contains all comparison results.
type Report struct {
	Regressions      int                 `json:"regressions"`
	Improvements     int                 `json:"improvements"`
	Unchanged        int                 `json:"unchanged"`
	WorkloadMismatch bool                `json:"workload_mismatch"`
	Results          []*ComparisonResult `json:"results"`
	RegressionFailed bool                `json:"regression_failed"`
}

var (
	outputJSON    = flag.Bool("json", false, "Output results as JSON")
	threshold     = flag.Float64("threshold", RegressionThreshold, "Regression threshold (0.0-1.0)")
	failOnRegress = flag.Bool("fail", true, "Exit with code 1 on regression")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <current.json> <baseline.json>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Compares reconcile run summaries and detects regressions.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	current, err := parseSummaryFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing current file %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	baseline, err := parseSummaryFile(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing baseline file %s: %v\n", flag.Arg(1), err)
		os.Exit(1)
	}

	report := compare(current, baseline, *threshold)

	if *outputJSON {
		outputJSONReport(report)
	} else {
		outputTextReport(current, baseline, report)
	}

	if *failOnRegress && report.RegressionFailed {
		os.Exit(1)
	}
}

// parseSummaryFile reads one reconcile summary JSON file.
func parseSummaryFile(path string) (*runSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	summary := new(runSummary)
	if err := json.Unmarshal(data, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// compare walks the run phases and flags slowdowns past the threshold.
// Runs that did different amounts of work never fail the comparison;
// a reprocess-everything run is always slower than a skip-everything
// run and that is not a regression.
func compare(current, baseline *runSummary, threshold float64) *Report {
	report := &Report{
		Results: make([]*ComparisonResult, 0),
	}

	report.WorkloadMismatch = current.FilesChecked != baseline.FilesChecked ||
		current.FilesProcessed != baseline.FilesProcessed

	phases := []struct {
		name     string
		current  time.Duration
		baseline time.Duration
	}{
		{"snapshot", current.Timings.Snapshot, baseline.Timings.Snapshot},
		{"scan", current.Timings.Scan, baseline.Timings.Scan},
		{"cleanup", current.Timings.Cleanup, baseline.Timings.Cleanup},
		{"process", current.Timings.Process, baseline.Timings.Process},
		{"total", current.Duration, baseline.Duration},
	}

	for _, p := range phases {
		result := &ComparisonResult{
			Phase:    p.name,
			Current:  float64(p.current) / float64(time.Millisecond),
			Baseline: float64(p.baseline) / float64(time.Millisecond),
		}

		// Delta percentage (positive = slower)
		deltaPct := 0.0
		if p.baseline > 0 {
			deltaPct = float64(p.current-p.baseline) / float64(p.baseline)
		}
		result.DeltaPct = deltaPct * 100

		switch {
		case p.baseline == 0 && p.current == 0:
			result.Status = "OK"
			report.Unchanged++
		case deltaPct > threshold:
			result.IsRegressed = true
			result.Status = "REGRESSION"
			report.Regressions++
			if !report.WorkloadMismatch {
				report.RegressionFailed = true
			}
		case deltaPct < -ImprovementThreshold:
			result.IsImproved = true
			result.Status = "IMPROVED"
			report.Improvements++
		default:
			result.Status = "OK"
			report.Unchanged++
		}

		report.Results = append(report.Results, result)
	}

	return report
}

// outputTextReport prints a human-readable report.
func outputTextReport(current, baseline *runSummary, report *Report) {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("RECONCILE RUN COMPARISON")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()

	fmt.Printf("Current:  run %s, %d files checked, %d processed, %d chunks\n",
		current.RunID, current.FilesChecked, current.FilesProcessed, current.ChunksCreated)
	fmt.Printf("Baseline: run %s, %d files checked, %d processed, %d chunks\n",
		baseline.RunID, baseline.FilesChecked, baseline.FilesProcessed, baseline.ChunksCreated)
	if tp, ok := throughput(current); ok {
		fmt.Printf("Throughput: %.1f chunks/s", tp)
		if btp, ok := throughput(baseline); ok {
			fmt.Printf(" (baseline %.1f chunks/s)", btp)
		}
		fmt.Println()
	}
	fmt.Println()

	fmt.Println(strings.Repeat("-", 72))
	fmt.Printf("%-12s %14s %14s %10s\n", "PHASE", "CURRENT", "BASELINE", "DELTA")
	fmt.Println(strings.Repeat("-", 72))

	for _, r := range report.Results {
		fmt.Printf("%-12s %11.1f ms %11.1f ms %+8.1f%%   %s\n",
			r.Phase, r.Current, r.Baseline, r.DeltaPct, r.Status)
	}
	fmt.Println(strings.Repeat("-", 72))
	fmt.Println()

	switch {
	case report.WorkloadMismatch && report.Regressions > 0:
		fmt.Println("SKIPPED: runs did different amounts of work, timing deltas not comparable.")
	case report.RegressionFailed:
		fmt.Println("FAILED: performance regression detected.")
		fmt.Printf("  %d phase(s) regressed by more than %.0f%%\n", report.Regressions, *threshold*100)
	default:
		fmt.Println("PASSED: no significant regressions detected.")
	}
	fmt.Println()
}

// throughput derives chunks per second from the process phase.
func throughput(s *runSummary) (float64, bool) {
	if s.ChunksCreated == 0 || s.Timings.Process <= 0 {
		return 0, false
	}
	return float64(s.ChunksCreated) / s.Timings.Process.Seconds(), true
}

// outputJSONReport outputs the report as JSON.
func outputJSONReport(report *Report) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
