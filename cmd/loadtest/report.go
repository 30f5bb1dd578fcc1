package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type report struct {
	StartedAt       time.Time      `json:"started_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	Calls           int            `json:"calls"`
	RPS             float64        `json:"rps"`
	Outcomes        map[string]int `json:"outcomes"`
	LatencyMs       latencySummary `json:"latency_ms"`
	Stock           int            `json:"stock"`
	SoldUnits       int            `json:"sold_units"`
	// Oversold: списано больше единиц, чем было на складе.
	Oversold bool `json:"oversold"`
	// Unexpected: исходы кроме created, stock_pending и insufficient_stock.
	Unexpected int `json:"unexpected"`
}

type collector struct {
	mu        sync.Mutex
	outcomes  map[string]int
	latencies []float64
}

func newCollector() *collector {
	return &collector{outcomes: make(map[string]int)}
}

func (c *collector) record(outcome string, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[outcome]++
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration, stock, quantity int) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Outcomes:        make(map[string]int, len(c.outcomes)),
		LatencyMs:       buildLatencySummary(c.latencies),
		Stock:           stock,
	}
	for outcome, count := range c.outcomes {
		result.Outcomes[outcome] = count
		result.Calls += count
		switch outcome {
		case outcomeCreated, outcomeStockPending, outcomeInsufficientStock:
		default:
			result.Unexpected += count
		}
	}
	result.SoldUnits = c.outcomes[outcomeCreated] * quantity
	result.Oversold = result.SoldUnits > stock
	if duration > 0 {
		result.RPS = float64(result.Calls) / duration.Seconds()
	}
	return result
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "transport=%s product=%s calls=%d duration=%.2fs rps=%.2f\n",
		cfg.transport, cfg.productID, result.Calls, result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.LatencyMs.Min, result.LatencyMs.Avg, result.LatencyMs.P50,
		result.LatencyMs.P95, result.LatencyMs.P99, result.LatencyMs.Max)

	outcomes := make([]string, 0, len(result.Outcomes))
	for outcome := range result.Outcomes {
		outcomes = append(outcomes, outcome)
	}
	slices.Sort(outcomes)
	for _, outcome := range outcomes {
		_, _ = fmt.Fprintf(w, "%s: %d\n", outcome, result.Outcomes[outcome])
	}

	verdict := "OK"
	if result.Oversold {
		verdict = "OVERSOLD"
	}
	_, _ = fmt.Fprintf(w, "stock=%d sold_units=%d unexpected=%d verdict=%s\n",
		result.Stock, result.SoldUnits, result.Unexpected, verdict)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
