package rtd

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Poll outcomes recorded by Metrics.
const (
	pollChanged   = "changed"
	pollUnchanged = "unchanged"
	pollError     = "error"
	pollDiscarded = "discarded"
)

// Metrics is shared by every Server of a process.
type Metrics struct {
	polls         *prometheus.CounterVec
	notifications prometheus.Counter
	running       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtd",
			Name:      "polls_total",
			Help:      "Poll ticks by outcome.",
		}, []string{"result"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtd",
			Name:      "notifications_total",
			Help:      "Update notifications delivered to listeners.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtd",
			Name:      "servers_running",
			Help:      "Servers currently in the running state.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.polls, m.notifications, m.running)
	}
	return m
}

func (m *Metrics) observePoll(result string) { m.polls.WithLabelValues(result).Inc() }

// Notifications counts update signals sent to listeners.
func (m *Metrics) Notifications() prometheus.Counter { return m.notifications }

// Running tracks servers in the running state.
func (m *Metrics) Running() prometheus.Gauge { return m.running }
