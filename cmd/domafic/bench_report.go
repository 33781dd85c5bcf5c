package main

import (
	"fmt"
	"io"
	"math"
	"runtime"
	"time"
)

type benchReport struct {
	Version    string         `json:"version"`
	Run        runInfo        `json:"run"`
	Workload   workloadInfo   `json:"workload"`
	LatencyMS  latencyInfo    `json:"latency_ms"`
	Throughput throughputInfo `json:"throughput"`
	GC         gcInfo         `json:"gc"`
	Frames     frameInfo      `json:"frames"`
	Errors     errorInfo      `json:"errors"`
}

type runInfo struct {
	Timestamp string `json:"timestamp"`
	Go        string `json:"go"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUCount  int    `json:"cpu_count"`
	Version   string `json:"domafic_version"`
}

type workloadInfo struct {
	Profile        string  `json:"profile"`
	Clients        int     `json:"clients"`
	DurationMS     int64   `json:"duration_ms"`
	RPSPerClient   float64 `json:"rps_per_client"`
	ListSize       int     `json:"list_size"`
	PayloadBytes   int     `json:"payload_bytes"`
	MaxProcs       int     `json:"max_procs"`
	EventTimeoutMS int64   `json:"event_timeout_ms"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

type throughputInfo struct {
	EventsTotal        uint64  `json:"events_total"`
	EventsPerSec       float64 `json:"events_per_sec"`
	EventsPerSecClient float64 `json:"events_per_sec_per_client"`
}

type gcInfo struct {
	AllocMB      float64 `json:"alloc_mb"`
	HeapLiveMB   float64 `json:"heap_live_mb"`
	NumGC        uint32  `json:"num_gc"`
	PauseTotalMS float64 `json:"pause_total_ms"`
	PauseAvgMS   float64 `json:"pause_avg_ms"`
}

type frameInfo struct {
	EventBytesTotal uint64            `json:"event_bytes_total"`
	FrameBytesTotal uint64            `json:"frame_bytes_total"`
	Frames          uint64            `json:"frames_total"`
	OpsTotal        uint64            `json:"ops_total"`
	AvgEventBytes   float64           `json:"avg_event_bytes"`
	AvgFrameBytes   float64           `json:"avg_frame_bytes"`
	OpsPerEvent     float64           `json:"ops_per_event"`
	Ops             map[string]uint64 `json:"ops"`
}

type errorInfo struct {
	Total              uint64 `json:"total"`
	DialFailures       uint64 `json:"dial_failures"`
	MountFailures      uint64 `json:"mount_failures"`
	EventWriteFailures uint64 `json:"event_write_failures"`
	FrameFailures      uint64 `json:"frame_failures"`
	TokenMissing       uint64 `json:"token_missing"`
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func ratio(n, d uint64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func buildReport(
	cfg benchConfig,
	elapsed time.Duration,
	latencies []time.Duration,
	counters *benchCounters,
	errs *benchErrors,
	ops *opCounts,
	before, after runtime.MemStats,
) benchReport {
	events := counters.eventsComplete.Load()
	sent := counters.eventsSent.Load()
	perSec := float64(events) / math.Max(0.001, elapsed.Seconds())

	var latency latencyInfo
	if len(latencies) > 0 {
		latency = latencyInfo{
			Min: ms(latencies[0]),
			P50: ms(percentile(latencies, 0.50)),
			P95: ms(percentile(latencies, 0.95)),
			P99: ms(percentile(latencies, 0.99)),
			Max: ms(latencies[len(latencies)-1]),
		}
	}

	var pauseAvg time.Duration
	numGC := after.NumGC - before.NumGC
	if numGC > 0 {
		pauseAvg = time.Duration((after.PauseTotalNs - before.PauseTotalNs) / uint64(numGC))
	}

	return benchReport{
		Version: "1",
		Run: runInfo{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Go:        runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			CPUCount:  runtime.NumCPU(),
			Version:   version,
		},
		Workload: workloadInfo{
			Profile:        cfg.Name,
			Clients:        cfg.Clients,
			DurationMS:     cfg.Duration.Milliseconds(),
			RPSPerClient:   cfg.RPS,
			ListSize:       cfg.ListSize,
			PayloadBytes:   cfg.Payload,
			MaxProcs:       cfg.MaxProcs,
			EventTimeoutMS: cfg.EventTimeout.Milliseconds(),
		},
		LatencyMS: latency,
		Throughput: throughputInfo{
			EventsTotal:        events,
			EventsPerSec:       perSec,
			EventsPerSecClient: perSec / float64(cfg.Clients),
		},
		GC: gcInfo{
			AllocMB:      float64(after.TotalAlloc-before.TotalAlloc) / (1024 * 1024),
			HeapLiveMB:   float64(after.HeapAlloc) / (1024 * 1024),
			NumGC:        numGC,
			PauseTotalMS: ms(time.Duration(after.PauseTotalNs - before.PauseTotalNs)),
			PauseAvgMS:   ms(pauseAvg),
		},
		Frames: frameInfo{
			EventBytesTotal: counters.eventBytes.Load(),
			FrameBytesTotal: counters.frameBytes.Load(),
			Frames:          counters.frames.Load(),
			OpsTotal:        counters.opsTotal.Load(),
			AvgEventBytes:   ratio(counters.eventBytes.Load(), sent),
			AvgFrameBytes:   ratio(counters.frameBytes.Load(), events),
			OpsPerEvent:     ratio(counters.opsTotal.Load(), events),
			Ops:             ops.snapshot(),
		},
		Errors: errorInfo{
			Total:              errs.total.Load(),
			DialFailures:       errs.dialFailures.Load(),
			MountFailures:      errs.mountFailures.Load(),
			EventWriteFailures: errs.eventWriteFailures.Load(),
			FrameFailures:      errs.frameFailures.Load(),
			TokenMissing:       errs.tokenMissing.Load(),
		},
	}
}

func writeSummary(w io.Writer, r benchReport) {
	fmt.Fprintln(w, "=== domafic load benchmark ===")
	fmt.Fprintf(w, "Profile: %s\n", r.Workload.Profile)
	fmt.Fprintf(w, "Clients: %d\n", r.Workload.Clients)
	fmt.Fprintf(w, "Duration: %s\n", time.Duration(r.Workload.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Target per-client rate: %.2f events/s\n", r.Workload.RPSPerClient)
	fmt.Fprintf(w, "List size: %d\n", r.Workload.ListSize)
	if r.Workload.MaxProcs > 0 {
		fmt.Fprintf(w, "GOMAXPROCS cap: %d\n", r.Workload.MaxProcs)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total events: %d\n", r.Throughput.EventsTotal)
	fmt.Fprintf(w, "Throughput: %.1f events/s (%.2f per client)\n", r.Throughput.EventsPerSec, r.Throughput.EventsPerSecClient)
	fmt.Fprintf(w, "Errors: %d\n", r.Errors.Total)
	fmt.Fprintln(w)

	if r.LatencyMS.Max == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "RTT (event frame -> update -> op frame):")
		fmt.Fprintf(w, "  min: %.2f ms\n", r.LatencyMS.Min)
		fmt.Fprintf(w, "  p50: %.2f ms\n", r.LatencyMS.P50)
		fmt.Fprintf(w, "  p95: %.2f ms\n", r.LatencyMS.P95)
		fmt.Fprintf(w, "  p99: %.2f ms\n", r.LatencyMS.P99)
		fmt.Fprintf(w, "  max: %.2f ms\n", r.LatencyMS.Max)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Frames (avg per event):")
	fmt.Fprintf(w, "  event bytes: %.1f\n", r.Frames.AvgEventBytes)
	fmt.Fprintf(w, "  frame bytes: %.1f\n", r.Frames.AvgFrameBytes)
	fmt.Fprintf(w, "  ops/event:   %.2f\n", r.Frames.OpsPerEvent)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime / GC (process-wide):")
	fmt.Fprintf(w, "  alloc:     %.2f MB\n", r.GC.AllocMB)
	fmt.Fprintf(w, "  heap_live: %.2f MB\n", r.GC.HeapLiveMB)
	fmt.Fprintf(w, "  num_gc:    %d\n", r.GC.NumGC)
	fmt.Fprintf(w, "  gc_pause:  %.2f ms (total), %.2f ms (avg)\n", r.GC.PauseTotalMS, r.GC.PauseAvgMS)
}
