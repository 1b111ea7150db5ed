package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rttDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "rtt_ewma_milliseconds"),
		"Smoothed round trip to the disk agent.",
		[]string{"addr"}, nil)
	callsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "agent", "calls_total"),
		"Free space calls to the disk agent by result.",
		[]string{"addr", "result"}, nil)
)

// AgentLatency summarizes the round trips to one disk agent.
type AgentLatency struct {
	// EWMA of the round trip in milliseconds.
	EWMAms float64

	OK    uint64
	Error uint64

	LastRTT time.Duration
	LastAt  time.Time
}

// LatencyTracker keeps a smoothed round-trip time per agent address. It is
// a prometheus.Collector.
type LatencyTracker struct {
	mu     sync.RWMutex
	alpha  float64
	agents map[string]*AgentLatency
}

// NewLatencyTracker creates a tracker with EWMA smoothing factor alpha.
// Typical alpha: 0.1..0.3 (higher reacts faster).
func NewLatencyTracker(alpha float64) *LatencyTracker {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.2
	}
	return &LatencyTracker{
		alpha:  alpha,
		agents: map[string]*AgentLatency{},
	}
}

func (t *LatencyTracker) Observe(addr string, rtt time.Duration, ok bool) {
	if t == nil {
		return
	}
	ms := max(float64(rtt.Microseconds())/1000, 0)

	t.mu.Lock()
	defer t.mu.Unlock()

	a := t.agents[addr]
	if a == nil {
		a = &AgentLatency{EWMAms: ms}
		t.agents[addr] = a
	} else {
		a.EWMAms = t.alpha*ms + (1-t.alpha)*a.EWMAms
	}

	a.LastRTT = rtt
	a.LastAt = time.Now()
	if ok {
		a.OK++
	} else {
		a.Error++
	}
}

func (t *LatencyTracker) Get(addr string) (AgentLatency, bool) {
	if t == nil {
		return AgentLatency{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	a := t.agents[addr]
	if a == nil {
		return AgentLatency{}, false
	}
	return *a, true
}

func (t *LatencyTracker) Describe(ch chan<- *prometheus.Desc) {
	ch <- rttDesc
	ch <- callsDesc
}

func (t *LatencyTracker) Collect(ch chan<- prometheus.Metric) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for addr, a := range t.agents {
		ch <- prometheus.MustNewConstMetric(rttDesc, prometheus.GaugeValue, a.EWMAms, addr)
		ch <- prometheus.MustNewConstMetric(callsDesc, prometheus.CounterValue, float64(a.OK), addr, "ok")
		ch <- prometheus.MustNewConstMetric(callsDesc, prometheus.CounterValue, float64(a.Error), addr, "error")
	}
}
