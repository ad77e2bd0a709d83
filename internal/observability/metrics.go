package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for the workflow pipeline.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	stageCount     map[string]int64
	toolCount      map[string]int64
	modelCallCount map[string]int64
	modelTokens    map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		stageCount:     make(map[string]int64),
		toolCount:      make(map[string]int64),
		modelCallCount: make(map[string]int64),
		modelTokens:    make(map[string]int64),
	}
}

// RecordRequest increments counters for HTTP requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordStageTransition counts orchestrator transitions by edge.
func (m *Metrics) RecordStageTransition(from, to string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stageCount[from+"->"+to]++
}

// RecordToolExecution counts tool runs by outcome.
func (m *Metrics) RecordToolExecution(tool string, success bool) {
	if m == nil {
		return
	}
	key := tool + "|" + strconv.FormatBool(success)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCount[key]++
}

// RecordModelCall counts model invocations and granted tokens per agent.
func (m *Metrics) RecordModelCall(agent string, tokens int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelCallCount[agent]++
	m.modelTokens[agent] += int64(tokens)
}

// Snapshot returns a copy of all counters for the status endpoint.
func (m *Metrics) Snapshot() map[string]map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]map[string]int64{
		"requests":    copyCounters(m.requestCount),
		"errors":      copyCounters(m.errorCount),
		"stages":      copyCounters(m.stageCount),
		"tools":       copyCounters(m.toolCount),
		"model_calls": copyCounters(m.modelCallCount),
		"model_tokens": copyCounters(m.modelTokens),
	}
}

func copyCounters(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
