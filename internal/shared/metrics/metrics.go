package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	cacheHitsTotal          atomic.Uint64
	cacheMissesTotal        atomic.Uint64
	cacheCorruptTotal       atomic.Uint64
	cacheInvalidatedTotal   atomic.Uint64
	cacheWriteFailuresTotal atomic.Uint64
	uploadsTotal            atomic.Uint64
	uploadsFailedTotal      atomic.Uint64

	backendDuration = newHistogram([]float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000})
)

// IncCacheHit counts a cache read served from a scope.
func IncCacheHit() { cacheHitsTotal.Add(1) }

// IncCacheMiss counts a cache read that requires a fetch.
func IncCacheMiss() { cacheMissesTotal.Add(1) }

// IncCacheCorrupt counts an entry that could not be decoded.
func IncCacheCorrupt() { cacheCorruptTotal.Add(1) }

// AddCacheInvalidated counts keys removed by an invalidation pass.
func AddCacheInvalidated(n int) {
	if n > 0 {
		cacheInvalidatedTotal.Add(uint64(n))
	}
}

// IncCacheWriteFailure counts a best-effort write that failed.
func IncCacheWriteFailure() { cacheWriteFailuresTotal.Add(1) }

// IncUpload counts an accepted upload.
func IncUpload() { uploadsTotal.Add(1) }

// IncUploadFailed counts an upload rejected by validation or the backend.
func IncUploadFailed() { uploadsFailedTotal.Add(1) }

// ObserveBackendDurationMs records an analysis service call duration in milliseconds.
func ObserveBackendDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	backendDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "cache_hits_total", "Cache reads served without a fetch", cacheHitsTotal.Load())
	writeCounter(&buf, "cache_misses_total", "Cache reads that required a fetch", cacheMissesTotal.Load())
	writeCounter(&buf, "cache_corrupt_total", "Cache entries that failed to decode", cacheCorruptTotal.Load())
	writeCounter(&buf, "cache_invalidated_total", "Cache keys removed by invalidation", cacheInvalidatedTotal.Load())
	writeCounter(&buf, "cache_write_failures_total", "Best-effort cache writes that failed", cacheWriteFailuresTotal.Load())
	writeCounter(&buf, "uploads_total", "Uploads recorded", uploadsTotal.Load())
	writeCounter(&buf, "uploads_failed_total", "Uploads rejected or failed", uploadsFailedTotal.Load())
	writeHistogram(&buf, "backend_request_duration_ms", "Analysis service call duration in milliseconds", backendDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe counts value in the first bucket whose bound contains it.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// Since returns the milliseconds elapsed since start.
func Since(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
