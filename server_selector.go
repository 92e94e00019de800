package sqs

import (
	"github.com/simplequeue/sqs/internal/hashing"
)

// ServerSelector picks which broker hosts a queue.
// It receives the queue name and the number of brokers, and returns an index.
type ServerSelector func(queue string, serverCount int) int

// DefaultServerSelector uses Jump Hash over xxh3 of the queue name, so all
// producers and consumers of a queue agree on its broker, and adding a broker
// moves as few queues as possible.
func DefaultServerSelector(queue string, serverCount int) int {
	return hashing.Bucket(queue, serverCount)
}
