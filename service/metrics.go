package service

import (
	"sort"
	"sync"
	"time"
)

// MetricsCollector tracks call counts, failures and latency per operation.
type MetricsCollector struct {
	mu         sync.RWMutex
	since      time.Time
	operations map[string]*operationStats
}

type operationStats struct {
	startTime time.Time
	endTime   time.Time
	count     int
	failures  int
	outcomes  map[string]int
	totalTime time.Duration
}

// OperationMetrics contains timing information for an operation
type OperationMetrics struct {
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Count          int            `json:"count"`
	Failures       int            `json:"failures"`
	Outcomes       map[string]int `json:"outcomes,omitempty"`
	ProcessingTime int64          `json:"processing_time_ms"`
}

// MetricsResponse provides the metrics for all operations
type MetricsResponse struct {
	Since      time.Time                   `json:"since"`
	Operations map[string]OperationMetrics `json:"operations"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		since:      time.Now(),
		operations: make(map[string]*operationStats),
	}
}

// Record adds one completed call of op. A non-nil err counts as a failure
// under its taxonomy kind.
func (mc *MetricsCollector) Record(op string, duration time.Duration, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	stats, ok := mc.operations[op]
	if !ok {
		stats = &operationStats{startTime: now.Add(-duration), outcomes: make(map[string]int)}
		mc.operations[op] = stats
	}

	stats.count++
	stats.endTime = now
	stats.totalTime += duration
	if err != nil {
		stats.failures++
		stats.outcomes[Kind(err)]++
	}
}

// GetMetrics returns current metrics for all operations
func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	resp := MetricsResponse{
		Since:      mc.since,
		Operations: make(map[string]OperationMetrics, len(mc.operations)),
	}
	for op, stats := range mc.operations {
		resp.Operations[op] = stats.snapshot()
	}
	return resp
}

// GetOperationMetrics returns metrics for a single operation. Unknown
// operations yield the zero value.
func (mc *MetricsCollector) GetOperationMetrics(op string) OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	stats, ok := mc.operations[op]
	if !ok {
		return OperationMetrics{}
	}
	return stats.snapshot()
}

// OperationNames lists the operations recorded so far in lexical order.
func (mc *MetricsCollector) OperationNames() []string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	names := make([]string, 0, len(mc.operations))
	for op := range mc.operations {
		names = append(names, op)
	}
	sort.Strings(names)
	return names
}

func (s *operationStats) snapshot() OperationMetrics {
	m := OperationMetrics{
		StartTime:      s.startTime,
		EndTime:        s.endTime,
		Count:          s.count,
		Failures:       s.failures,
		ProcessingTime: s.totalTime.Milliseconds(),
	}
	if len(s.outcomes) > 0 {
		m.Outcomes = make(map[string]int, len(s.outcomes))
		for k, v := range s.outcomes {
			m.Outcomes[k] = v
		}
	}
	return m
}

// Reset clears all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.since = time.Now()
	mc.operations = make(map[string]*operationStats)
}
