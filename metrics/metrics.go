// Package metrics holds the prometheus collectors of the notifier.
//
// Collectors are process wide. Counters aggregate every engine and consumer
// living in the process; per-replica views are labelled, as IsLeader is by
// instance id.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Election metrics
	ElectionMessagesPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_election_messages_published_total",
		Help: "Total number of election messages broadcast",
	}, []string{"type"})
	ElectionMessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_election_messages_received_total",
		Help: "Total number of election messages received",
	}, []string{"type"})
	ElectionMessagesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_election_messages_dropped_total",
		Help: "Total number of malformed election messages dropped",
	})
	ElectionPublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_election_publish_failures_total",
		Help: "Total number of election broadcasts the transport rejected",
	}, []string{"type"})
	ElectionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_elections_started_total",
		Help: "Total number of election rounds started by this replica",
	})
	ElectionResubscriptions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_election_resubscriptions_total",
		Help: "Total number of times the election subscription was re-established",
	})
	LeaderChanges = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_leader_changes_total",
		Help: "Total number of times the known leader changed",
	})
	IsLeader = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "notifier_is_leader",
		Help: "1 when the replica believes it is the leader",
	}, []string{"instance_id"})

	// Consumer metrics
	ConsumerRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "notifier_consumer_running",
		Help: "1 when the named consumer is consuming",
	}, []string{"consumer"})
	ConsumerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_consumer_transitions_total",
		Help: "Total number of consumer starts and stops",
	}, []string{"consumer", "action"})

	// Mail metrics
	NotificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_notifications_sent_total",
		Help: "Total number of notifications delivered",
	}, []string{"host"})
	NotificationsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_notifications_failed_total",
		Help: "Total number of notifications that could not be delivered",
	}, []string{"host"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ElectionMessagesPublished,
		ElectionMessagesReceived,
		ElectionMessagesDropped,
		ElectionPublishFailures,
		ElectionsStarted,
		ElectionResubscriptions,
		LeaderChanges,
		IsLeader,
		ConsumerRunning,
		ConsumerTransitions,
		NotificationsSent,
		NotificationsFailed,
	}
}

// Register registers every collector on reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}

	return nil
}

// Handler returns an http.Handler exposing the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
