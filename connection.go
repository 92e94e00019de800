package sqs

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/puddle/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/simplequeue/sqs/internal/coarsetime"
	"github.com/simplequeue/sqs/wire"
)

// Connection is the session state machine shared by producers and consumers.
// It owns at most one socket, bound to one queue and one role.
//
// A Connection is safe for concurrent use: every protocol exchange holds the
// session for its full write+read sequence.
type Connection struct {
	role   Role
	config Config
	stats  *statsCollector

	state    atomic.Int32
	open     atomic.Bool
	lastUsed atomic.Int64

	// lifecycle serializes Connect and Quit
	lifecycle sync.Mutex

	mu               sync.Mutex
	id               string
	addr             string
	queue            string
	netConn          net.Conn
	sessions         *sessionPool
	stopSubscription func()
	breakers         map[string]*gobreaker.CircuitBreaker[bool]
}

func newConnection(role Role, config Config) *Connection {
	return &Connection{
		role:     role,
		config:   config.withDefaults(),
		stats:    newStatsCollector(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[bool]),
	}
}

// Role returns the role sent to the broker during configuration.
func (c *Connection) Role() Role {
	return c.role
}

// State returns the current connection state.
func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// IsAlive reports whether the socket is open and the connection is wanted
// and healthy.
func (c *Connection) IsAlive() bool {
	st := c.State()
	return c.open.Load() && st != NotWantingConnection && st != NotConnected
}

// ID identifies the current session in logs. It changes on every Connect.
func (c *Connection) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Addr returns the broker address of the current or last session.
func (c *Connection) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Queue returns the queue of the current or last session.
func (c *Connection) Queue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue
}

// LastUsed returns when the last exchange completed, with coarse precision.
func (c *Connection) LastUsed() time.Time {
	return time.Unix(0, c.lastUsed.Load())
}

// Stats returns a snapshot of the connection statistics.
func (c *Connection) Stats() Stats {
	stats := c.stats.snapshot()

	c.mu.Lock()
	sessions := c.sessions
	c.mu.Unlock()
	if sessions != nil {
		s := sessions.stat()
		stats.SessionAcquires = uint64(s.AcquireCount())
		stats.SessionWaits = uint64(s.EmptyAcquireCount())
		stats.SessionWaitTime = s.EmptyAcquireWaitTime()
	}
	return stats
}

func (c *Connection) setState(to ConnectionState) {
	from := ConnectionState(c.state.Swap(int32(to)))
	c.stateChanged(from, to)
}

func (c *Connection) stateChanged(from, to ConnectionState) {
	if from == to {
		return
	}
	c.config.Logger.Debug("sqs: state change", "conn_id", c.ID(), "from", from.String(), "to", to.String())
	if c.config.OnStateChange != nil {
		c.config.OnStateChange(from, to)
	}
}

// markNotConnected records a fatal failure. A connection the caller no
// longer wants stays in NotWantingConnection.
func (c *Connection) markNotConnected() {
	for {
		cur := c.state.Load()
		if ConnectionState(cur) == NotWantingConnection || ConnectionState(cur) == NotConnected {
			return
		}
		if c.state.CompareAndSwap(cur, int32(NotConnected)) {
			c.stateChanged(ConnectionState(cur), NotConnected)
			return
		}
	}
}

func (c *Connection) touch() {
	c.lastUsed.Store(coarsetime.Now().UnixNano())
}

// Connect opens a session with the broker at host:port and configures it
// for queue with the connection's role. On return without error the state is
// ConnectedAfterConfig.
//
// Connecting again is allowed once the previous session ended (after Quit or
// a failure); connecting an established session is a KindBadState error.
func (c *Connection) Connect(ctx context.Context, host string, port int, queue string) error {
	return c.connectAddr(ctx, net.JoinHostPort(host, strconv.Itoa(port)), queue)
}

// ConnectServers connects to the broker selected for queue among servers.
func (c *Connection) ConnectServers(ctx context.Context, servers Servers, queue string) error {
	addr, err := selectServer(servers, queue, c.config.ServerSelector)
	if err != nil {
		return connectionError("connect", err)
	}
	return c.connectAddr(ctx, addr, queue)
}

func (c *Connection) connectAddr(ctx context.Context, addr, queue string) error {
	const op = "connect"

	if queue == "" || strings.ContainsAny(queue, ";\r\n") {
		return badState(op, "invalid queue name "+strconv.Quote(queue))
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if st := c.State(); st.connected() {
		return badState(op, "already "+st.String())
	}
	c.releaseStaleSession()

	breaker := c.breaker(addr)
	if breaker == nil {
		return c.dialAndConfigure(ctx, addr, queue)
	}

	_, err := breaker.Execute(func() (bool, error) {
		err := c.dialAndConfigure(ctx, addr, queue)
		return err == nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.stats.recordConnectFailure()
		c.setState(NotConnected)
		return connectionError(op, err)
	}
	return err
}

func (c *Connection) breaker(addr string) *gobreaker.CircuitBreaker[bool] {
	if c.config.NewCircuitBreaker == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[addr]
	if !ok {
		cb = c.config.NewCircuitBreaker(addr)
		c.breakers[addr] = cb
	}
	return cb
}

// CircuitBreakerState returns the breaker state for addr, and false when no
// breaker exists for it.
func (c *Connection) CircuitBreakerState(addr string) (gobreaker.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[addr]
	if !ok {
		return gobreaker.StateClosed, false
	}
	return cb.State(), true
}

func (c *Connection) dialAndConfigure(ctx context.Context, addr, queue string) error {
	const op = "connect"

	dialCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	netConn, err := c.config.dial(dialCtx, addr)
	cancel()
	if err != nil {
		c.stats.recordConnectFailure()
		c.setState(NotConnected)
		return connectionError(op, err)
	}

	c.mu.Lock()
	c.id = uuid.NewString()
	c.addr = addr
	c.queue = queue
	c.netConn = netConn
	c.mu.Unlock()
	c.open.Store(true)

	s := newSession(netConn, c.config)
	stop := context.AfterFunc(ctx, s.interrupt)
	err = c.handshake(ctx, s, queue)
	stop()

	var sessions *sessionPool
	if err == nil {
		sessions, err = newSessionPool(ctx, s)
	}
	if err != nil {
		c.open.Store(false)
		_ = netConn.Close()
		c.stats.recordConnectFailure()
		c.setState(NotConnected)
		return wrapWireError(op, err)
	}

	c.mu.Lock()
	c.sessions = sessions
	c.mu.Unlock()

	c.touch()
	c.stats.recordConnect()
	c.setState(ConnectedAfterConfig)
	c.config.Logger.Debug("sqs: connected", "conn_id", c.ID(), "addr", addr, "queue", queue, "role", c.role.String())
	return nil
}

// handshake waits for the greeting and runs the CONFIG section.
func (c *Connection) handshake(ctx context.Context, s *session, queue string) error {
	if _, err := s.expectExact(ctx, wire.Greeting); err != nil {
		return err
	}
	c.setState(ConnectedBeforeConfig)

	if err := s.command(ctx, wire.StartConfig, wire.ReplyOK); err != nil {
		return err
	}
	if err := c.configure(ctx, s, wire.ParamQueue, queue); err != nil {
		return err
	}
	if err := c.configure(ctx, s, wire.ParamRole, c.role.String()); err != nil {
		return err
	}
	return s.command(ctx, wire.EndConfig, wire.ReplyOK)
}

// configure sends one CONFIG parameter and logs the value echoed by the broker.
func (c *Connection) configure(ctx context.Context, s *session, key, value string) error {
	reply, err := s.set(ctx, key, value)
	if err != nil {
		return err
	}
	if echoedKey, echoed, ok := wire.ParseValue(reply); ok {
		c.config.Logger.Debug("sqs: config accepted", "conn_id", c.ID(), "key", echoedKey, "value", echoed)
	}
	return nil
}

// exchange runs fn while owning the session. The connection must be in
// ConnectedAfterConfig. An error after which the socket cannot be trusted
// (see wire.ShouldCloseConnection) destroys the session and moves the
// connection to NotConnected; an unexpected reply leaves the state unchanged.
func (c *Connection) exchange(ctx context.Context, op string, fn func(s *session) error) error {
	if st := c.State(); st != ConnectedAfterConfig {
		return badState(op, "connection is "+st.String())
	}

	c.mu.Lock()
	sessions := c.sessions
	c.mu.Unlock()
	if sessions == nil {
		return badState(op, "connection is closed")
	}

	res, err := sessions.acquire(ctx)
	if err != nil {
		if st := c.State(); st != ConnectedAfterConfig || errors.Is(err, puddle.ErrClosedPool) {
			return badState(op, "connection is "+st.String())
		}
		return connectionError(op, err)
	}

	// Quit may have run while waiting for the session
	if st := c.State(); st != ConnectedAfterConfig {
		res.Release()
		return badState(op, "connection is "+st.String())
	}

	s := res.Value()
	stop := context.AfterFunc(ctx, s.interrupt)
	err = fn(s)
	stop()

	if err == nil {
		res.Release()
		c.touch()
		return nil
	}

	if wire.ShouldCloseConnection(err) {
		res.Destroy()
		c.open.Store(false)
		c.markNotConnected()
		c.config.Logger.Debug("sqs: connection lost", "conn_id", c.ID(), "op", op, "error", err)
	} else {
		res.Release()
	}

	e := wrapWireError(op, err)
	switch e.Kind {
	case KindConnection:
		c.stats.recordConnectionError()
	case KindUnexpectedResponse:
		c.stats.recordProtocolError()
	}
	return e
}

// Quit ends the session: the state moves to NotWantingConnection first, an
// active subscription is cancelled, then RUN QUIT is exchanged and the
// socket closed.
//
// When an exchange is in flight (a blocked receive, typically), the socket is
// closed without the RUN QUIT exchange so the blocked read returns at once.
// The socket is always closed, even when the exchange fails.
func (c *Connection) Quit(ctx context.Context) error {
	const op = "quit"

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	prev := ConnectionState(c.state.Swap(int32(NotWantingConnection)))
	c.stateChanged(prev, NotWantingConnection)

	c.mu.Lock()
	stopSubscription := c.stopSubscription
	sessions := c.sessions
	netConn := c.netConn
	c.stopSubscription = nil
	c.sessions = nil
	c.netConn = nil
	c.mu.Unlock()

	if stopSubscription != nil {
		stopSubscription()
	}
	if sessions == nil {
		return nil
	}

	defer func() {
		c.open.Store(false)
		_ = netConn.Close()
		sessions.close()
	}()

	res, ok := sessions.tryAcquire(ctx)
	if !ok {
		// Busy or already destroyed: closing the socket is the only way out
		c.config.Logger.Debug("sqs: closing busy session", "conn_id", c.ID())
		return nil
	}

	s := res.Value()
	stop := context.AfterFunc(ctx, s.interrupt)
	err := s.command(ctx, wire.RunQuit, wire.ReplyOK)
	stop()
	res.Destroy()

	if err != nil {
		return wrapWireError(op, err)
	}
	c.config.Logger.Debug("sqs: quit", "conn_id", c.ID())
	return nil
}

// releaseStaleSession closes what is left of a session that ended with a
// failure, before a new Connect replaces it.
func (c *Connection) releaseStaleSession() {
	c.mu.Lock()
	sessions, netConn := c.sessions, c.netConn
	c.sessions, c.netConn = nil, nil
	c.mu.Unlock()

	if netConn != nil {
		_ = netConn.Close()
	}
	if sessions != nil {
		sessions.close()
	}
}

// setSubscriptionStop registers the function Quit calls to cancel the
// subscription loop.
func (c *Connection) setSubscriptionStop(stop func()) {
	c.mu.Lock()
	c.stopSubscription = stop
	c.mu.Unlock()
}
