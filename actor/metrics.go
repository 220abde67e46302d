package actor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics describing actor lifecycle and mailbox throughput,
// labeled by subsystem and actor id so a single process hosting many actor
// systems (or forked workers sharing a registry) still yields per-actor
// detail.
var (
	actorsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actorkit_actors_started_total",
		Help: "The total number of actors constructed",
	}, []string{"subsystem", "actor"})

	actorsDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actorkit_actors_destroyed_total",
		Help: "The total number of actors that reached the Destroyed state",
	}, []string{"subsystem", "actor"})

	actorsAlive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "actorkit_actors_alive",
		Help: "The number of actors currently between Constructed and Destroyed",
	}, []string{"subsystem", "actor"})

	handlerPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actorkit_handler_panics_total",
		Help: "The total number of handler invocations that recovered from a panic",
	}, []string{"subsystem", "actor"})

	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actorkit_messages_processed_total",
		Help: "The total number of deliveries handled, successful or not",
	}, []string{"subsystem", "actor", "topic"})

	processingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "actorkit_processing_seconds",
		Help:    "Time spent inside a handler invocation",
		Buckets: prometheus.DefBuckets,
	}, []string{"subsystem", "actor", "topic"})
)

func observeProcessing(actorID, topic string, start time.Time) {
	processingTime.WithLabelValues(Subsystem, actorID, topic).
		Observe(time.Since(start).Seconds())
	messagesProcessed.WithLabelValues(Subsystem, actorID, topic).Inc()
}
