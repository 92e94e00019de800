package sqs

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/simplequeue/sqs/wire"
)

// Default timeouts applied when the corresponding Config field is zero.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Logger is the interface for structured logging.
// It is compatible with *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration of a producer or consumer.
// The zero value is usable.
type Config struct {
	// DialTimeout bounds opening the socket.
	// Zero means DefaultDialTimeout.
	DialTimeout time.Duration

	// ReadTimeout bounds every read of a broker reply.
	// Zero means DefaultReadTimeout.
	ReadTimeout time.Duration

	// WriteTimeout bounds every write.
	// Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration

	// ReceiveTimeout bounds the wait for a message after START_GET_MESSAGE.
	// Zero means waiting until a message arrives or the context is done,
	// an empty queue is not a failure.
	ReceiveTimeout time.Duration

	// MaxResponseSize is the ceiling of a single read, in bytes.
	// Zero means wire.DefaultMaxResponseSize.
	MaxResponseSize int

	// Dialer is used to open sockets.
	// If nil, a zero net.Dialer is used.
	Dialer *net.Dialer

	// Logger receives debug logs about state transitions and exchanges.
	// If nil, logs are discarded.
	Logger Logger

	// OnError receives errors of the background subscription loop, which has
	// no caller to return them to.
	// If nil, they are only logged to Logger and counted in Stats.
	OnError func(err error)

	// OnStateChange is called synchronously on every connection state
	// transition. It must not call back into the connection.
	OnStateChange func(from, to ConnectionState)

	// NewCircuitBreaker creates a circuit breaker for a broker address.
	// Called once per address by Connect. If nil, no circuit breaker is used.
	NewCircuitBreaker func(addr string) *gobreaker.CircuitBreaker[bool]

	// ServerSelector picks the broker for a queue in ConnectServers.
	// If nil, DefaultServerSelector is used.
	ServerSelector ServerSelector

	// for testing purposes only
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// withDefaults returns a copy of c with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = wire.DefaultMaxResponseSize
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.ServerSelector == nil {
		c.ServerSelector = DefaultServerSelector
	}
	if c.dial == nil {
		dialer := c.Dialer
		c.dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		}
	}
	return c
}

// reportError routes a background error to OnError, or to the logger.
func (c Config) reportError(err error, args ...any) {
	if c.OnError != nil {
		c.OnError(err)
		return
	}
	c.Logger.Error("sqs: subscription error", append([]any{"error", err}, args...)...)
}
