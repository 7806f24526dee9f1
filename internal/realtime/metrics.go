// Package realtime – Prometheus instrumentation.
//
// Gauges and counters for the realtime plane, registered at package init
// like the HTTP middleware collectors. Label cardinality is bounded: event
// names come from the closed server-event vocabulary and direction is one
// of two values.
package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	// sessionsGauge tracks live admitted sessions on this process.
	sessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_sessions_active",
		Help: "Current number of live realtime sessions.",
	})

	// subscriptionsGauge tracks total topic memberships on this process.
	subscriptionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_subscriptions_active",
		Help: "Current number of topic subscriptions across all sessions.",
	})

	// deliveredCounter counts events enqueued to local sessions, by event name.
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_delivered_total",
		Help: "Events delivered to local session queues.",
	}, []string{"event"})

	// droppedCounter counts frames dropped because a session's buffer was full.
	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_events_dropped_total",
		Help: "Events dropped due to slow session consumers.",
	})

	// brokerCounter counts broker traffic by direction (published/received).
	brokerCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_broker_messages_total",
		Help: "Envelopes exchanged with the shared broker.",
	}, []string{"direction"})
)

func init() {
	prometheus.MustRegister(
		sessionsGauge,
		subscriptionsGauge,
		deliveredCounter,
		droppedCounter,
		brokerCounter,
	)
}

// SessionOpened increments the live-session gauge.
func SessionOpened() { sessionsGauge.Inc() }

// SessionClosed decrements the live-session gauge.
func SessionClosed() { sessionsGauge.Dec() }
