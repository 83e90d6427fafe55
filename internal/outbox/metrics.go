package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "entry_events",
		Name:      "published_total",
		Help:      "Entry events published to Kafka, by event type.",
	}, []string{"event_type"})

	eventsDeadLettered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "entry_events",
		Name:      "dead_lettered_total",
		Help:      "Entry events moved to outbox_dlq after a failed publish, by topic.",
	}, []string{"topic"})

	relayBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitlog",
		Subsystem: "entry_events",
		Name:      "relay_batch_seconds",
		Help:      "Time to publish and mark one claimed batch of entry events.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(eventsPublished, eventsDeadLettered, relayBatchSeconds)
}
