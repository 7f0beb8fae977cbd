// Package benchmark measures detector throughput over a set of decoded images.
package benchmark

import (
	"context"
	"image"
	"runtime"
	"sort"
	"time"

	"github.com/nvr-ai/go-detect/detector"
	"github.com/pkg/errors"
)

// ErrNoImages is returned when a scenario is run without input images.
var ErrNoImages = errors.New("no images to benchmark")

// Scenario defines a specific test configuration.
type Scenario struct {
	Name       string            `json:"name"`
	Detector   detector.Kind     `json:"detector"`
	Iterations int               `json:"iterations"`
	WarmupRuns int               `json:"warmup_runs"`
	Options    []detector.Option `json:"-"`
}

// PerformanceMetrics captures the timing and memory data of one scenario run.
type PerformanceMetrics struct {
	Scenario        Scenario      `json:"scenario"`
	Timestamp       time.Time     `json:"timestamp"`
	TotalDuration   time.Duration `json:"total_duration"`
	MeanLatency     time.Duration `json:"mean_latency"`
	P50Latency      time.Duration `json:"p50_latency"`
	P95Latency      time.Duration `json:"p95_latency"`
	MaxLatency      time.Duration `json:"max_latency"`
	FramesPerSecond float64       `json:"frames_per_second"`
	DetectionCount  int           `json:"detection_count"`
	ErrorRate       float64       `json:"error_rate"`
	MemoryStats     MemoryMetrics `json:"memory_stats"`
}

// MemoryMetrics captures memory usage statistics.
type MemoryMetrics struct {
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
}

// Run executes a scenario against d, cycling through imgs.
//
// Warmup errors are ignored. Failed iterations count towards ErrorRate and are left out of the
// latency percentiles.
//
// Arguments:
//   - ctx: Cancels the run between iterations.
//   - d: The detector under test.
//   - imgs: Decoded input images.
//   - scenario: Iteration counts and detect options.
//
// Returns:
//   - *PerformanceMetrics: The measurements.
//   - error: ErrNoImages, an invalid iteration count, or ctx.Err().
func Run(ctx context.Context, d detector.Detector, imgs []image.Image, scenario Scenario) (*PerformanceMetrics, error) {
	if len(imgs) == 0 {
		return nil, ErrNoImages
	}
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("iterations must be positive, got %d", scenario.Iterations)
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		_, _ = d.Detect(ctx, imgs[i%len(imgs)], scenario.Options...)
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}
	latencies := make([]time.Duration, 0, scenario.Iterations)
	failures := 0

	start := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t := time.Now()
		dets, err := d.Detect(ctx, imgs[i%len(imgs)], scenario.Options...)
		if err != nil {
			failures++
			continue
		}
		latencies = append(latencies, time.Since(t))
		metrics.DetectionCount += len(dets)
	}
	metrics.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)

	metrics.FramesPerSecond = float64(len(latencies)) / metrics.TotalDuration.Seconds()
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	metrics.MemoryStats = MemoryMetrics{
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		HeapAllocBytes:  endMem.HeapAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
	}
	summarize(metrics, latencies)

	return metrics, nil
}

func summarize(m *PerformanceMetrics, latencies []time.Duration) {
	if len(latencies) == 0 {
		return
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	m.MeanLatency = total / time.Duration(len(latencies))
	m.P50Latency = percentile(latencies, 0.50)
	m.P95Latency = percentile(latencies, 0.95)
	m.MaxLatency = latencies[len(latencies)-1]
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(p*float64(len(sorted))+0.999999) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
