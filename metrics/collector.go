// Package metrics exports producer and consumer statistics to Prometheus.
//
//	collector := metrics.NewCollector()
//	collector.Add("orders", producer)
//	prometheus.MustRegister(collector)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/simplequeue/sqs"
)

// Source is implemented by *sqs.Producer and *sqs.Consumer.
type Source interface {
	Stats() sqs.Stats
	State() sqs.ConnectionState
	Role() sqs.Role
	Queue() string
	Addr() string
	CircuitBreakerState(addr string) (gobreaker.State, bool)
}

// Collector is a prometheus.Collector reading the stats of named sources at
// scrape time.
type Collector struct {
	mu      sync.Mutex
	sources map[string]Source

	connects        *prometheus.Desc
	connectFailures *prometheus.Desc
	messages        *prometheus.Desc
	errors          *prometheus.Desc
	subscriptions   *prometheus.Desc
	sessionAcquires *prometheus.Desc
	sessionWaits    *prometheus.Desc
	sessionWaitTime *prometheus.Desc
	state           *prometheus.Desc
	circuitState    *prometheus.Desc
}

// NewCollector returns a collector without sources.
func NewCollector() *Collector {
	labels := []string{"name", "role", "queue"}
	return &Collector{
		sources: make(map[string]Source),

		connects: prometheus.NewDesc("sqs_connects_total",
			"Successful connections to the broker", labels, nil),
		connectFailures: prometheus.NewDesc("sqs_connect_failures_total",
			"Failed connections to the broker, including open circuit breakers", labels, nil),
		messages: prometheus.NewDesc("sqs_messages_total",
			"Messages sent or received", append(labels, "direction"), nil), // sent, received
		errors: prometheus.NewDesc("sqs_errors_total",
			"Errors by kind", append(labels, "kind"), nil), // connection, protocol, encoding, subscription
		subscriptions: prometheus.NewDesc("sqs_subscriptions_started_total",
			"Subscription loops started", labels, nil),
		sessionAcquires: prometheus.NewDesc("sqs_session_acquires_total",
			"Exchanges that acquired the current session", labels, nil),
		sessionWaits: prometheus.NewDesc("sqs_session_waits_total",
			"Exchanges that waited for the current session", labels, nil),
		sessionWaitTime: prometheus.NewDesc("sqs_session_wait_seconds_total",
			"Time spent waiting for the current session", labels, nil),
		state: prometheus.NewDesc("sqs_connection_state",
			"Connection state (0=not wanting connection, 1=not connected, 2=connected before config, 3=connected after config)", labels, nil),
		circuitState: prometheus.NewDesc("sqs_circuit_breaker_state",
			"Circuit breaker state (0=closed, 1=half-open, 2=open)", []string{"name", "server"}, nil),
	}
}

// Add registers source under name, replacing any source with the same name.
func (c *Collector) Add(name string, source Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[name] = source
}

// Remove unregisters the source named name.
func (c *Collector) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, name)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connects
	ch <- c.connectFailures
	ch <- c.messages
	ch <- c.errors
	ch <- c.subscriptions
	ch <- c.sessionAcquires
	ch <- c.sessionWaits
	ch <- c.sessionWaitTime
	ch <- c.state
	ch <- c.circuitState
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	sources := make(map[string]Source, len(c.sources))
	for name, source := range c.sources {
		sources[name] = source
	}
	c.mu.Unlock()

	for name, source := range sources {
		c.collectSource(ch, name, source)
	}
}

func (c *Collector) collectSource(ch chan<- prometheus.Metric, name string, source Source) {
	stats := source.Stats()
	labels := []string{name, source.Role().String(), source.Queue()}

	counter := func(desc *prometheus.Desc, value uint64, extra ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value), append(labels, extra...)...)
	}

	counter(c.connects, stats.Connects)
	counter(c.connectFailures, stats.ConnectFailures)
	counter(c.messages, stats.MessagesSent, "sent")
	counter(c.messages, stats.MessagesReceived, "received")
	counter(c.errors, stats.ConnectionErrors, "connection")
	counter(c.errors, stats.ProtocolErrors, "protocol")
	counter(c.errors, stats.EncodingErrors, "encoding")
	counter(c.errors, stats.SubscriptionErrors, "subscription")
	counter(c.subscriptions, stats.SubscriptionsStarted)
	counter(c.sessionAcquires, stats.SessionAcquires)
	counter(c.sessionWaits, stats.SessionWaits)

	ch <- prometheus.MustNewConstMetric(c.sessionWaitTime, prometheus.CounterValue, stats.SessionWaitTime.Seconds(), labels...)
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(source.State()), labels...)

	if addr := source.Addr(); addr != "" {
		if state, ok := source.CircuitBreakerState(addr); ok {
			ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, circuitStateValue(state), name, addr)
		}
	}
}

func circuitStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
