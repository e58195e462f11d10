package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	RoundsSubmitted prometheus.Counter
	PublishFailures prometheus.Counter
	Reports         *prometheus.CounterVec
}

// NewMetrics registers the orchestrator collectors on reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoundsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_rounds_submitted_total",
			Help: "Rounds created through Submit.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_publish_failures_total",
			Help: "Rounds whose play request could not be published.",
		}),
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contest_reports_total",
			Help: "Run reports received, by ledger result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.RoundsSubmitted, m.PublishFailures, m.Reports)
	}
	return m
}
