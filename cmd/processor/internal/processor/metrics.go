package processor

import "github.com/prometheus/client_golang/prometheus"

// Message outcomes recorded by Metrics.
const (
	ResultStored    = "stored"
	ResultDuplicate = "duplicate"
	ResultMalformed = "malformed"
	ResultDropped   = "dropped"
	ResultFailed    = "failed"
)

type Metrics struct {
	messages *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "processor",
			Name:      "messages_total",
			Help:      "Feed messages by outcome.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.messages)
	}
	return m
}

// Messages returns the counter for one outcome.
func (m *Metrics) Messages(result string) prometheus.Counter {
	return m.messages.WithLabelValues(result)
}
