// Package main benchmarks the teampulse CLI against an already seeded store.
// Each dashboard is rendered several times without a cache, then with the
// SQLite dashboard cache, treating the first cached run as cold and averaging
// the rest as warm. Alert scans and syncs are timed once per round.
//
// Prerequisites:
// - teampulse binary installed and available in PATH
// - A store reachable through the usual TEAMPULSE_* settings, already seeded and synced
//
// Usage: go run benchmark/main.go project-id [project-id...]
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// BenchmarkResult holds the timings of one command on one project.
type BenchmarkResult struct {
	Project     string
	Command     string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	Projects    []string
	Timeout     time.Duration
	NoCacheRuns int
	CacheRuns   int
}

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("Usage: %s project-id [project-id...]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		Projects:    os.Args[1:],
		Timeout:     2 * time.Minute,
		NoCacheRuns: 3,
		CacheRuns:   4,
	}

	if _, err := exec.LookPath("teampulse"); err != nil {
		fmt.Printf("Prerequisites check failed: teampulse binary not found in PATH\n")
		os.Exit(1)
	}

	fmt.Printf("Clearing cache...\n")
	if _, err := run(config.Timeout, "cache", "clear", "--cache-backend", "sqlite"); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\n", err)
	}

	results := runBenchmarks(config)
	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}
	printSummary(results)
}

// runBenchmarks times dashboards per project, then the project-wide commands.
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	fmt.Printf("Starting benchmark: %d projects, %v timeout, no-cache: %d runs, cache: %d runs\n",
		len(config.Projects), config.Timeout, config.NoCacheRuns, config.CacheRuns)

	var results []BenchmarkResult
	for _, project := range config.Projects {
		fmt.Printf("Benchmarking dashboard for %s\n", project)
		_, noCache := timeRuns(config, config.NoCacheRuns, "Generated at", "dashboard", project, "--cache-backend", "none")
		cold, warm := timeRuns(config, config.CacheRuns, "Generated at", "dashboard", project, "--cache-backend", "sqlite")
		results = append(results, BenchmarkResult{
			Project:     project,
			Command:     "dashboard",
			NoCacheTime: noCache,
			ColdTime:    cold,
			WarmTime:    warm,
		})
	}

	for _, c := range []struct {
		command string
		marker  string
		args    []string
	}{
		{"sync", "Synced", append([]string{"sync"}, config.Projects...)},
		{"alerts", "Scanned", []string{"alerts", "scan"}},
	} {
		fmt.Printf("Benchmarking %s\n", c.command)
		cold, warm := timeRuns(config, config.NoCacheRuns, c.marker, c.args...)
		results = append(results, BenchmarkResult{Project: "*", Command: c.command, NoCacheTime: "-", ColdTime: cold, WarmTime: warm})
	}
	return results
}

// timeRuns runs a command numRuns times and returns the first and the average of the remaining timings.
func timeRuns(config BenchmarkConfig, numRuns int, marker string, args ...string) (string, string) {
	var times []float64
	for range numRuns {
		start := time.Now()
		output, err := run(config.Timeout, args...)
		if err != nil || !strings.Contains(output, marker) {
			continue
		}
		times = append(times, time.Since(start).Seconds())
	}
	if len(times) == 0 {
		return "TIMEOUT", "TIMEOUT"
	}
	first := fmt.Sprintf("%.3fs", times[0])
	if len(times) == 1 {
		return first, first
	}
	var sum float64
	for _, t := range times[1:] {
		sum += t
	}
	return first, fmt.Sprintf("%.3fs", sum/float64(len(times)-1))
}

// run executes teampulse with a deadline and returns its combined output.
func run(timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, "teampulse", args...).CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return string(output), ctx.Err()
	}
	return string(output), err
}

// saveResults writes benchmark results to a timestamped CSV file.
func saveResults(results []BenchmarkResult) error {
	filename := fmt.Sprintf("/tmp/teampulse_benchmark_%s.csv", time.Now().Format("20060102_150405"))
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"project", "cmd", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		if err := writer.Write([]string{r.Project, r.Command, r.NoCacheTime, r.ColdTime, r.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, r := range results {
		fmt.Printf("  %-10s %-12s: No-cache: %s, Cold: %s, Warm: %s\n", r.Command, r.Project, r.NoCacheTime, r.ColdTime, r.WarmTime)
	}
}
