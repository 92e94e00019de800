package sqs

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreakerConfig returns a Config.NewCircuitBreaker function with
// common settings: the breaker opens when at least 3 connection attempts
// were made in interval and 60% of them failed, and stays open for timeout.
//
// An open breaker makes Connect fail fast with a KindConnection error. It
// never retries on its own.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) *gobreaker.CircuitBreaker[bool] {
	return func(addr string) *gobreaker.CircuitBreaker[bool] {
		return gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
			Name:        addr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: func(err error) bool {
				// A broker that answers, even wrongly, is reachable
				return err == nil || KindOf(err) != KindConnection
			},
		})
	}
}
