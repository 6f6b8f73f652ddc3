package report

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts push outcomes.
type Metrics struct {
	pushes   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the push collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goveebridge",
			Subsystem: "report",
			Name:      "pushes_total",
			Help:      "Status pushes by transport and outcome.",
		}, []string{"transport", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "goveebridge",
			Subsystem: "report",
			Name:      "push_duration_seconds",
			Help:      "Time spent delivering a status push.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport"}),
	}
	reg.MustRegister(m.pushes, m.duration)
	return m
}

func (m *Metrics) observe(res Result) {
	if m == nil {
		return
	}
	transport := res.Transport
	if transport == "" {
		transport = "none"
	}
	m.pushes.WithLabelValues(transport, string(res.Status)).Inc()
	if res.Status != StatusSkipped {
		m.duration.WithLabelValues(transport).Observe(res.Duration.Seconds())
	}
}
