// Package output renders run results as text and JSON reports.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/inferfire/internal/metrics"
)

// Report is the JSON document written for one run.
type Report struct {
	RunID       string        `json:"run_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Strategy    string        `json:"strategy"`
	Model       string        `json:"model"`
	Stats       metrics.Stats `json:"stats"`
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Inference Run Results ---")
	fmt.Fprintf(w, "Total Queries:     %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Queries/sec:       %.2f\n", stats.QueriesPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nError Breakdown:")
		types := make([]string, 0, len(stats.Errors))
		for typ := range stats.Errors {
			types = append(types, typ)
		}
		sort.Slice(types, func(i, j int) bool {
			if stats.Errors[types[i]] != stats.Errors[types[j]] {
				return stats.Errors[types[i]] > stats.Errors[types[j]]
			}
			return types[i] < types[j]
		})
		for _, typ := range types {
			fmt.Fprintf(w, "  %s: %d\n", typ, stats.Errors[typ])
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// WriteReportFile writes the JSON report to path. A sidecar file lock keeps
// concurrent runs pointed at the same path from interleaving writes.
func WriteReportFile(path string, report Report) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock report file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}
