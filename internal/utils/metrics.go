package utils

import (
	"sort"
	"sync"
	"time"
)

// Tracks request metrics for a client or a whole simulation run
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	// Maps operation name to list of latencies in nanoseconds
	operationTimes map[string][]int64

	systemStartTime time.Time
}

// MetricsSnapshot is a point-in-time copy of the collector's counters.
type MetricsSnapshot struct {
	Requests          uint64
	Errors            uint64
	Uptime            time.Duration
	RequestsPerSecond float64
	// Average latency per operation name
	AverageLatency map[string]time.Duration
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operationTimes:  make(map[string][]int64),
		systemStartTime: time.Now(),
	}
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.operationTimes[operationName] = append(
		mc.operationTimes[operationName],
		duration.Nanoseconds(),
	)
}

// RecordRequest counts one finished request for operationName.
func (mc *MetricsCollector) RecordRequest(operationName string, start time.Time, err error) {
	latency := time.Since(start)

	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
	if err != nil {
		mc.errorCount++
	}
	mc.operationTimes[operationName] = append(mc.operationTimes[operationName], latency.Nanoseconds())
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	uptime := time.Since(mc.systemStartTime)
	snap := MetricsSnapshot{
		Requests:       mc.requestCount,
		Errors:         mc.errorCount,
		Uptime:         uptime,
		AverageLatency: make(map[string]time.Duration, len(mc.operationTimes)),
	}
	if uptime > 0 {
		snap.RequestsPerSecond = float64(mc.requestCount) / uptime.Seconds()
	}
	for name, samples := range mc.operationTimes {
		if len(samples) == 0 {
			continue
		}
		var total int64
		for _, ns := range samples {
			total += ns
		}
		snap.AverageLatency[name] = time.Duration(total / int64(len(samples)))
	}
	return snap
}

// Operations returns the recorded operation names in sorted order.
func (s MetricsSnapshot) Operations() []string {
	names := make([]string, 0, len(s.AverageLatency))
	for name := range s.AverageLatency {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
