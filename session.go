package sqs

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"

	"github.com/simplequeue/sqs/wire"
)

// errSessionClosed is returned when acquiring the session of a connection
// whose socket has already been torn down. Sessions are never re-created.
var errSessionClosed = errors.New("sqs: session closed")

// aLongTimeAgo is a deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// session is the socket of a connection and its reply reader. It is owned
// by one protocol exchange at a time, for the full write+read sequence.
type session struct {
	conn   net.Conn
	reader *wire.Reader

	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newSession(conn net.Conn, config Config) *session {
	return &session{
		conn:         conn,
		reader:       wire.NewReader(conn, config.MaxResponseSize),
		readTimeout:  config.ReadTimeout,
		writeTimeout: config.WriteTimeout,
	}
}

// deadline returns the earliest of now+timeout and the context deadline.
// The zero time means no deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}

// interrupt unblocks any pending read or write on the socket.
func (s *session) interrupt() {
	_ = s.conn.SetDeadline(aLongTimeAgo)
}

// ioError reports a failed read or write. A failure caused by the context
// (cancellation or its deadline) reports the context error instead.
func (s *session) ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return &wire.ConnectionError{Op: op, Err: err}
}

func (s *session) writeLine(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return s.ioError(ctx, "write", err)
	}
	_ = s.conn.SetWriteDeadline(deadline(ctx, s.writeTimeout))
	if err := wire.WriteLine(s.conn, text); err != nil {
		return s.ioError(ctx, "write", err)
	}
	return nil
}

func (s *session) writePayload(ctx context.Context, body string) error {
	if err := ctx.Err(); err != nil {
		return s.ioError(ctx, "write", err)
	}
	_ = s.conn.SetWriteDeadline(deadline(ctx, s.writeTimeout))
	if err := wire.WritePayload(s.conn, body); err != nil {
		return s.ioError(ctx, "write", err)
	}
	return nil
}

// readLineWithin reads one reply, bounded by timeout (zero means only the context
// bounds the read).
func (s *session) readLineWithin(ctx context.Context, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", s.ioError(ctx, "read", err)
	}
	_ = s.conn.SetReadDeadline(deadline(ctx, timeout))
	line, err := s.reader.ReadLine()
	if err != nil {
		return "", s.ioError(ctx, "read", err)
	}
	return line, nil
}

func (s *session) readLine(ctx context.Context) (string, error) {
	return s.readLineWithin(ctx, s.readTimeout)
}

// expectExact reads one reply and requires it to be exactly expected.
func (s *session) expectExact(ctx context.Context, expected string) (string, error) {
	line, err := s.readLine(ctx)
	if err != nil {
		return "", err
	}
	return line, wire.ExpectExact(line, expected)
}

// expectContains reads one reply and requires it to contain substring. The
// full reply is returned so callers can parse an attached value.
func (s *session) expectContains(ctx context.Context, substring string) (string, error) {
	line, err := s.readLine(ctx)
	if err != nil {
		return "", err
	}
	return line, wire.ExpectContains(line, substring)
}

// command writes text and requires the exact reply expected.
func (s *session) command(ctx context.Context, text, expected string) error {
	if err := s.writeLine(ctx, text); err != nil {
		return err
	}
	_, err := s.expectExact(ctx, expected)
	return err
}

// set writes a SET directive and requires an "OK:" reply, which is returned.
func (s *session) set(ctx context.Context, key, value string) (string, error) {
	if err := s.writeLine(ctx, wire.FormatSet(key, value)); err != nil {
		return "", err
	}
	return s.expectContains(ctx, wire.ReplyOKWithValue)
}

// sessionPool holds the single session of a connection. Acquiring it is the
// per-exchange lock: it is cancellable through the context, and a destroyed
// session is never rebuilt.
type sessionPool struct {
	pool *puddle.Pool[*session]
}

func newSessionPool(ctx context.Context, s *session) (*sessionPool, error) {
	var handed atomic.Bool

	pool, err := puddle.NewPool(&puddle.Config[*session]{
		Constructor: func(ctx context.Context) (*session, error) {
			if !handed.CompareAndSwap(false, true) {
				return nil, errSessionClosed
			}
			return s, nil
		},
		Destructor: func(s *session) {
			_ = s.conn.Close()
		},
		MaxSize: 1,
	})
	if err != nil {
		return nil, err
	}

	// Hand the session over now so TryAcquire sees it as idle
	if err := pool.CreateResource(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &sessionPool{pool: pool}, nil
}

func (p *sessionPool) acquire(ctx context.Context) (*puddle.Resource[*session], error) {
	return p.pool.Acquire(ctx)
}

// tryAcquire returns the session only if no exchange is in progress.
func (p *sessionPool) tryAcquire(ctx context.Context) (*puddle.Resource[*session], bool) {
	res, err := p.pool.TryAcquire(ctx)
	if err != nil {
		return nil, false
	}
	return res, true
}

func (p *sessionPool) stat() *puddle.Stat {
	return p.pool.Stat()
}

// close blocks until the session is released or destroyed.
func (p *sessionPool) close() {
	p.pool.Close()
}
