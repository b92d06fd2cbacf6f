package pipeline

import (
	"runtime"
	"sync/atomic"
)

// MemStats summarizes process memory usage for benchmark reports.
type MemStats struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	Goroutines      int    `json:"goroutines"`
}

// GetMemStats captures current memory statistics.
func GetMemStats() MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		Goroutines:      runtime.NumGoroutine(),
	}
}

// Profiler aggregates decode counters across runs. Safe for concurrent
// recording.
type Profiler struct {
	DecodeTimeNs  atomic.Int64
	ImagesScanned atomic.Int64
	BarcodesFound atomic.Int64
	Misses        atomic.Int64
	Attempts      atomic.Int64
}

// Record folds one scan result into the counters.
func (p *Profiler) Record(res *ScanResult) {
	if res == nil {
		return
	}
	p.DecodeTimeNs.Add(res.Processing.TotalNs)
	p.ImagesScanned.Add(1)
	p.Attempts.Add(int64(len(res.Attempts)))
	if res.Found() {
		p.BarcodesFound.Add(int64(len(res.Barcodes)))
	} else {
		p.Misses.Add(1)
	}
}

// Snapshot returns cumulative metrics, durations in milliseconds.
func (p *Profiler) Snapshot() map[string]any {
	images := p.ImagesScanned.Load()
	decodeNs := p.DecodeTimeNs.Load()
	out := map[string]any{
		"images":    images,
		"barcodes":  p.BarcodesFound.Load(),
		"misses":    p.Misses.Load(),
		"attempts":  p.Attempts.Load(),
		"decode_ms": decodeNs / 1e6,
	}
	if images > 0 {
		out["avg_decode_ms"] = float64(decodeNs) / float64(images) / 1e6
	}
	return out
}
