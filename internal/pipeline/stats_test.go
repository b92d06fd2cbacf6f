package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMemStats(t *testing.T) {
	stats := GetMemStats()
	assert.Positive(t, stats.AllocBytes)
	assert.Positive(t, stats.SysBytes)
	assert.Positive(t, stats.Goroutines)
	assert.GreaterOrEqual(t, stats.TotalAllocBytes, stats.AllocBytes)
}

func TestProfilerRecord(t *testing.T) {
	var prof Profiler
	prof.Record(nil)
	prof.Record(sampleScan())
	prof.Record(failedScan())

	assert.Equal(t, int64(2), prof.ImagesScanned.Load())
	assert.Equal(t, int64(1), prof.BarcodesFound.Load())
	assert.Equal(t, int64(1), prof.Misses.Load())
	assert.Equal(t, int64(5), prof.Attempts.Load())
	assert.Equal(t, int64(10_000_000), prof.DecodeTimeNs.Load())
}

func TestProfilerSnapshot(t *testing.T) {
	var prof Profiler
	snap := prof.Snapshot()
	assert.Equal(t, int64(0), snap["images"])
	assert.NotContains(t, snap, "avg_decode_ms", "no average before the first scan")

	prof.Record(sampleScan())
	prof.Record(sampleScan())
	snap = prof.Snapshot()
	assert.Equal(t, int64(2), snap["images"])
	assert.Equal(t, int64(2), snap["barcodes"])
	assert.Equal(t, int64(20), snap["decode_ms"])
	require.Contains(t, snap, "avg_decode_ms")
	assert.InDelta(t, 10.0, snap["avg_decode_ms"].(float64), 1e-9)
}

func TestProfilerConcurrentRecord(t *testing.T) {
	var prof Profiler
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				prof.Record(sampleScan())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(400), prof.ImagesScanned.Load())
	assert.Equal(t, int64(400), prof.BarcodesFound.Load())
	assert.Equal(t, int64(1200), prof.Attempts.Load())
}
