package prometheus

import (
	"github.com/deskhive/api/internal/instance"
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	Labels prometheus.Labels
}

func New(o Options) instance.Prometheus {
	return &Instance{
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "api_realtime_connections_open",
			Help:        "The number of websocket connections currently open",
			ConstLabels: o.Labels,
		}),
		eventsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "api_realtime_events_dispatched",
			Help:        "The number of events dispatched to connections",
			ConstLabels: o.Labels,
		}),
		callsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "api_realtime_calls_started",
			Help:        "The number of call sessions opened",
			ConstLabels: o.Labels,
		}),
	}
}

type Instance struct {
	connectionsOpen  prometheus.Gauge
	eventsDispatched prometheus.Counter
	callsStarted     prometheus.Counter
}

func (m *Instance) Register(r prometheus.Registerer) {
	r.MustRegister(
		m.connectionsOpen,
		m.eventsDispatched,
		m.callsStarted,
	)
}

func (m *Instance) ConnectionsOpen() prometheus.Gauge {
	return m.connectionsOpen
}

func (m *Instance) EventsDispatched() prometheus.Counter {
	return m.eventsDispatched
}

func (m *Instance) CallsStarted() prometheus.Counter {
	return m.callsStarted
}
