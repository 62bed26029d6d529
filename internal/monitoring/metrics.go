package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	RequestCount     int64
	ErrorCount       int64
	CacheHits        int64
	CacheMisses      int64
	PredictionCount  int64
	ExplanationCount int64
	StartTime        time.Time

	// Response time samples for percentile reporting
	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	// Status code tracking
	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	// Rate limit metrics
	RateLimitIPBlocks      int64
	RateLimitRedisErrors   int64
	RateLimitFallbackCount int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		ResponseTimes:        make([]time.Duration, 0, 1000),
		RequestCountByStatus: make(map[int]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncrementPrediction increments the served-prediction count
func (m *Metrics) IncrementPrediction() {
	atomic.AddInt64(&m.PredictionCount, 1)
}

// IncrementExplanation increments the served-explanation count
func (m *Metrics) IncrementExplanation() {
	atomic.AddInt64(&m.ExplanationCount, 1)
}

// IncrementRateLimitIPBlock increments blocked-request count
func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

// IncrementRateLimitRedisError increments redis failure count
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback increments in-memory fallback count
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// RecordResponseTime records a response time sample, keeping a bounded window
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.ResponseTimesMutex.Lock()
	defer m.ResponseTimesMutex.Unlock()

	m.ResponseTimes = append(m.ResponseTimes, duration)
	if len(m.ResponseTimes) > 1000 {
		m.ResponseTimes = m.ResponseTimes[len(m.ResponseTimes)-1000:]
	}
}

// RecordRequestByStatus tracks requests per status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()

	m.RequestCountByStatus[statusCode]++
}

// GetStats returns a snapshot of all metrics
func (m *Metrics) GetStats() map[string]interface{} {
	m.ResponseTimesMutex.RLock()
	samples := append([]time.Duration(nil), m.ResponseTimes...)
	m.ResponseTimesMutex.RUnlock()

	m.StatusMutex.RLock()
	byStatus := make(map[int]int64, len(m.RequestCountByStatus))
	for k, v := range m.RequestCountByStatus {
		byStatus[k] = v
	}
	m.StatusMutex.RUnlock()

	stats := map[string]interface{}{
		"request_count":       atomic.LoadInt64(&m.RequestCount),
		"error_count":         atomic.LoadInt64(&m.ErrorCount),
		"cache_hits":          atomic.LoadInt64(&m.CacheHits),
		"cache_misses":        atomic.LoadInt64(&m.CacheMisses),
		"prediction_count":    atomic.LoadInt64(&m.PredictionCount),
		"explanation_count":   atomic.LoadInt64(&m.ExplanationCount),
		"requests_by_status":  byStatus,
		"uptime_seconds":      time.Since(m.StartTime).Seconds(),
		"rate_limit_blocks":   atomic.LoadInt64(&m.RateLimitIPBlocks),
		"rate_limit_fallback": atomic.LoadInt64(&m.RateLimitFallbackCount),
	}

	if len(samples) > 0 {
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		stats["response_time_p50_ms"] = samples[len(samples)/2].Milliseconds()
		stats["response_time_p95_ms"] = samples[len(samples)*95/100].Milliseconds()
		stats["response_time_p99_ms"] = samples[len(samples)*99/100].Milliseconds()
	}

	return stats
}
