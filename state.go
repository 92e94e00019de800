package sqs

import "github.com/simplequeue/sqs/wire"

// ConnectionState is the lifecycle state of a connection.
type ConnectionState int32

const (
	// NotWantingConnection is the initial state, and the state after Quit.
	NotWantingConnection ConnectionState = iota
	// NotConnected is entered on any I/O or handshake failure. There is no
	// automatic reconnection.
	NotConnected
	// ConnectedBeforeConfig: socket open, greeting received, configuration
	// pending.
	ConnectedBeforeConfig
	// ConnectedAfterConfig is the only state allowing send, receive and
	// subscribe.
	ConnectedAfterConfig
)

func (s ConnectionState) String() string {
	switch s {
	case NotWantingConnection:
		return "NotWantingConnection"
	case NotConnected:
		return "NotConnected"
	case ConnectedBeforeConfig:
		return "ConnectedBeforeConfig"
	case ConnectedAfterConfig:
		return "ConnectedAfterConfig"
	default:
		return "Unknown"
	}
}

// connected reports whether the state implies an open, wanted socket.
func (s ConnectionState) connected() bool {
	return s == ConnectedBeforeConfig || s == ConnectedAfterConfig
}

// Role is the participant kind of a session, fixed for its lifetime.
type Role int

const (
	RoleProducer Role = iota + 1
	RoleConsumer
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleProducer:
		return wire.RoleProducer
	case RoleConsumer:
		return wire.RoleConsumer
	default:
		return "UNKNOWN"
	}
}
