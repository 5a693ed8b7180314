package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry *prometheus.Registry
	actions  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheetchat",
			Name:      "actions_total",
			Help:      "Action messages handled, by action and outcome.",
		}, []string{"action", "outcome"}),
	}
	m.Registry.MustRegister(m.actions)
	return m
}

func (m *Metrics) observe(action Action, env Envelope) {
	outcome := "success"
	if !env.Success {
		outcome = "failure"
	}
	m.actions.WithLabelValues(string(action), outcome).Inc()
}
