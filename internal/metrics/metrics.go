package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex         sync.RWMutex
	cascades      int64
	attempts      map[string]int64
	wins          map[string]int64
	failures      map[string]map[string]int64
	responseTimes map[string][]time.Duration
	rejections    map[string]int64
	evictions     int64
	startTime     time.Time
}

type Snapshot struct {
	TotalCascades   int64                     `json:"total_cascades"`
	Uptime          time.Duration             `json:"uptime"`
	Backends        map[string]BackendMetrics `json:"backends"`
	Rejections      map[string]int64          `json:"rejections"`
	SessionsEvicted int64                     `json:"sessions_evicted"`
}

type BackendMetrics struct {
	Attempts    int64            `json:"attempts"`
	Wins        int64            `json:"wins"`
	Failures    map[string]int64 `json:"failures"`
	AvgResponse time.Duration    `json:"avg_response"`
	P50Response time.Duration    `json:"p50_response"`
	P95Response time.Duration    `json:"p95_response"`
	P99Response time.Duration    `json:"p99_response"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		attempts:      make(map[string]int64),
		wins:          make(map[string]int64),
		failures:      make(map[string]map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		rejections:    make(map[string]int64),
		startTime:     time.Now(),
	}
}

func (m *Metrics) IncrementCascades() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.cascades++
}

func (m *Metrics) RecordAttempt(backend string, duration time.Duration, success bool, kind string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.attempts[backend]++

	m.responseTimes[backend] = append(m.responseTimes[backend], duration)
	if len(m.responseTimes[backend]) > 1000 {
		m.responseTimes[backend] = m.responseTimes[backend][1:]
	}

	if !success {
		if m.failures[backend] == nil {
			m.failures[backend] = make(map[string]int64)
		}
		m.failures[backend][kind]++
	}
}

func (m *Metrics) RecordWin(backend string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.wins[backend]++
}

func (m *Metrics) RecordRejection(reason string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejections[reason]++
}

func (m *Metrics) RecordEviction() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.evictions++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalCascades:   m.cascades,
		Uptime:          time.Since(m.startTime),
		Backends:        make(map[string]BackendMetrics),
		Rejections:      make(map[string]int64, len(m.rejections)),
		SessionsEvicted: m.evictions,
	}

	for reason, count := range m.rejections {
		snap.Rejections[reason] = count
	}

	// Collect all backend names seen on any path
	allBackends := make(map[string]bool)
	for backend := range m.attempts {
		allBackends[backend] = true
	}
	for backend := range m.wins {
		allBackends[backend] = true
	}
	for backend := range m.failures {
		allBackends[backend] = true
	}

	for backend := range allBackends {
		bm := BackendMetrics{
			Attempts: m.attempts[backend],
			Wins:     m.wins[backend],
			Failures: make(map[string]int64, len(m.failures[backend])),
		}
		for kind, count := range m.failures[backend] {
			bm.Failures[kind] = count
		}

		durations := m.responseTimes[backend]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			bm.AvgResponse = average(sorted)
			bm.P50Response = percentile(sorted, 0.50)
			bm.P95Response = percentile(sorted, 0.95)
			bm.P99Response = percentile(sorted, 0.99)
		}

		snap.Backends[backend] = bm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
