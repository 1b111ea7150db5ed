package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Agent counts disk agent requests by gRPC status code.
type Agent struct {
	requests *prometheus.CounterVec
	free     *prometheus.GaugeVec
}

func NewAgent(reg prometheus.Registerer) *Agent {
	f := promauto.With(reg)
	return &Agent{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "requests_total",
			Help:      "FreeSpace requests by status code.",
		}, []string{"code"}),
		free: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "free_bytes",
			Help:      "Last free space reading per directory.",
		}, []string{"dir"}),
	}
}

func (m *Agent) Request(code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(code).Inc()
}

func (m *Agent) Free(dir string, bytes int64) {
	if m == nil {
		return
	}
	m.free.WithLabelValues(dir).Set(float64(bytes))
}
