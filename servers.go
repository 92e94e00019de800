package sqs

import (
	"errors"
	"fmt"
)

var ErrNoServers = errors.New("sqs: no servers available")

// Servers is a set of broker addresses able to host queues.
type Servers interface {
	List() []string
}

// StaticServers is a fixed list of broker addresses ("host:port").
type StaticServers []string

// NewStaticServers returns a fixed list of brokers.
func NewStaticServers(addrs ...string) StaticServers {
	return StaticServers(addrs)
}

func (s StaticServers) List() []string {
	return s
}

func selectServer(servers Servers, queue string, selector ServerSelector) (string, error) {
	list := servers.List()
	if len(list) == 0 {
		return "", ErrNoServers
	}
	if selector == nil {
		selector = DefaultServerSelector
	}

	idx := selector(queue, len(list))
	if idx < 0 || idx >= len(list) {
		return "", fmt.Errorf("sqs: server selector returned %d for %d servers", idx, len(list))
	}
	return list[idx], nil
}
