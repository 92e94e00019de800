package sqs

import (
	"sync/atomic"
	"time"
)

// Stats contains statistics about a producer or consumer, across all of its
// sessions. Session fields describe the current session only.
//
// For Prometheus integration, see the metrics package.
type Stats struct {
	Connects             uint64 // Successful Connect calls
	ConnectFailures      uint64 // Failed Connect calls, including open circuit breakers
	MessagesSent         uint64
	MessagesReceived     uint64
	ConnectionErrors     uint64 // I/O failures that ended a session
	ProtocolErrors       uint64 // Unexpected broker replies
	EncodingErrors       uint64 // Body codec failures
	SubscriptionsStarted uint64 // Background loops started
	SubscriptionErrors   uint64 // Errors reported by background loops

	SessionAcquires uint64        // Exchanges that acquired the session
	SessionWaits    uint64        // Exchanges that had to wait for another one
	SessionWaitTime time.Duration // Total time spent waiting for the session
}

// statsCollector updates Stats atomically.
type statsCollector struct {
	connects             atomic.Uint64
	connectFailures      atomic.Uint64
	messagesSent         atomic.Uint64
	messagesReceived     atomic.Uint64
	connectionErrors     atomic.Uint64
	protocolErrors       atomic.Uint64
	encodingErrors       atomic.Uint64
	subscriptionsStarted atomic.Uint64
	subscriptionErrors   atomic.Uint64
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

func (c *statsCollector) recordConnect()           { c.connects.Add(1) }
func (c *statsCollector) recordConnectFailure()    { c.connectFailures.Add(1) }
func (c *statsCollector) recordSent()              { c.messagesSent.Add(1) }
func (c *statsCollector) recordReceived()          { c.messagesReceived.Add(1) }
func (c *statsCollector) recordConnectionError()   { c.connectionErrors.Add(1) }
func (c *statsCollector) recordProtocolError()     { c.protocolErrors.Add(1) }
func (c *statsCollector) recordEncodingError()     { c.encodingErrors.Add(1) }
func (c *statsCollector) recordSubscriptionStart() { c.subscriptionsStarted.Add(1) }
func (c *statsCollector) recordSubscriptionError() { c.subscriptionErrors.Add(1) }

func (c *statsCollector) snapshot() Stats {
	return Stats{
		Connects:             c.connects.Load(),
		ConnectFailures:      c.connectFailures.Load(),
		MessagesSent:         c.messagesSent.Load(),
		MessagesReceived:     c.messagesReceived.Load(),
		ConnectionErrors:     c.connectionErrors.Load(),
		ProtocolErrors:       c.protocolErrors.Load(),
		EncodingErrors:       c.encodingErrors.Load(),
		SubscriptionsStarted: c.subscriptionsStarted.Load(),
		SubscriptionErrors:   c.subscriptionErrors.Load(),
	}
}
