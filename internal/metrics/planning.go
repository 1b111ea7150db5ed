// Package metrics holds the Prometheus collectors of seedplan.
//
// A nil *Planning or *Agent is valid and records nothing, so callers never
// branch on whether metrics are enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "seedplan"

type Planning struct {
	runs          *prometheus.CounterVec
	evicted       prometheus.Counter
	admitted      prometheus.Counter
	evictedBytes  prometheus.Counter
	admittedBytes prometheus.Counter
	capacity      prometheus.Gauge
	used          prometheus.Gauge
	free          prometheus.Gauge
	planned       prometheus.Gauge
}

// NewPlanning registers the planning collectors with reg.
func NewPlanning(reg prometheus.Registerer) *Planning {
	f := promauto.With(reg)
	return &Planning{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_runs_total",
			Help:      "Planning runs by result.",
		}, []string{"result"}),
		evicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_evicted_torrents_total",
			Help:      "Held torrents selected for deletion.",
		}),
		admitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_admitted_torrents_total",
			Help:      "Remote torrents selected for download.",
		}),
		evictedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_evicted_bytes_total",
			Help:      "Bytes of held torrents selected for deletion.",
		}),
		admittedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_admitted_bytes_total",
			Help:      "Bytes of remote torrents selected for download.",
		}),
		capacity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capacity_bytes",
			Help:      "Storage budget of the download directory.",
		}),
		used: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "used_bytes",
			Help:      "Deduplicated size of the held torrents.",
		}),
		free: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "free_bytes",
			Help:      "Free space reported for the download directory.",
		}),
		planned: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "planned_bytes",
			Help:      "Size of the held torrents once the last plan is applied.",
		}),
	}
}

func (m *Planning) RunFailed() {
	if m == nil {
		return
	}
	m.runs.WithLabelValues("error").Inc()
}

// ObserveRun records a successful run. evicted and admitted are byte sizes
// of the individual torrents.
func (m *Planning) ObserveRun(evicted, admitted []int64, used, free, capacity, planned int64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues("ok").Inc()
	for _, b := range evicted {
		m.evicted.Inc()
		m.evictedBytes.Add(float64(b))
	}
	for _, b := range admitted {
		m.admitted.Inc()
		m.admittedBytes.Add(float64(b))
	}
	m.used.Set(float64(used))
	m.free.Set(float64(free))
	m.capacity.Set(float64(capacity))
	m.planned.Set(float64(planned))
}

// Usage records a space reading without a plan.
func (m *Planning) Usage(used, free, capacity int64) {
	if m == nil {
		return
	}
	m.used.Set(float64(used))
	m.free.Set(float64(free))
	m.capacity.Set(float64(capacity))
}
