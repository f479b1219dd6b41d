package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tokenguard/jwtguard/pkg/events"
)

// EventCollector exports an events.Counter's taxonomy as a single
// Prometheus counter vector, labeled by event type. Unlike the
// package-level metrics in metrics.go, it is instance-scoped: register one per
// events.Counter, so embedding applications that run several
// TokenValidators (one per tenant, say) can tell their rejections apart.
type EventCollector struct {
	counter *events.Counter
	desc    *prometheus.Desc
}

// NewEventCollector wraps counter for Prometheus registration.
func NewEventCollector(counter *events.Counter) *EventCollector {
	return &EventCollector{
		counter: counter,
		desc: prometheus.NewDesc(
			"jwtguard_validation_events_total",
			"Validation pipeline outcomes by event type",
			[]string{"event"},
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *EventCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector, emitting one sample per event
// type in the closed taxonomy on every scrape.
func (c *EventCollector) Collect(ch chan<- prometheus.Metric) {
	for event, count := range c.counter.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(count), string(event))
	}
}
