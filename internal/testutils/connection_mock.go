package testutils

import (
	"bytes"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// ConnectionMock is a net.Conn that replays scripted broker replies, one reply
// per Read call, and records every Write.
//
// When the script is drained, Read blocks until a reply is pushed, the
// deadline passes, the remote side hangs up or the mock is closed.
type ConnectionMock struct {
	mu       sync.Mutex
	replies  []string
	writes   []string
	deadline time.Time
	closed   bool
	hangup   bool
	writeErr error
	wake     chan struct{}
}

// NewConnectionMock creates a mock that will answer with replies in order.
func NewConnectionMock(replies ...string) *ConnectionMock {
	return &ConnectionMock{
		replies: replies,
		wake:    make(chan struct{}, 1),
	}
}

// Push appends replies to the script and wakes up a blocked Read.
func (m *ConnectionMock) Push(replies ...string) {
	m.mu.Lock()
	m.replies = append(m.replies, replies...)
	m.mu.Unlock()
	m.notify()
}

// Hangup simulates the broker closing its side: pending and future reads
// return io.EOF once the script is drained.
func (m *ConnectionMock) Hangup() {
	m.mu.Lock()
	m.hangup = true
	m.mu.Unlock()
	m.notify()
}

// FailWrites makes every following Write return err.
func (m *ConnectionMock) FailWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

func (m *ConnectionMock) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *ConnectionMock) Read(b []byte) (int, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return 0, net.ErrClosed
		}
		if len(m.replies) > 0 {
			n := copy(b, m.replies[0])
			m.replies = m.replies[1:]
			m.mu.Unlock()
			return n, nil
		}
		if m.hangup {
			m.mu.Unlock()
			return 0, io.EOF
		}
		deadline := m.deadline
		m.mu.Unlock()

		if deadline.IsZero() {
			<-m.wake
			continue
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		timer := time.NewTimer(wait)
		select {
		case <-m.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (m *ConnectionMock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, net.ErrClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes = append(m.writes, string(b))
	return len(b), nil
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.notify()
	return nil
}

// IsClosed reports whether Close was called.
func (m *ConnectionMock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7777}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error {
	m.mu.Lock()
	m.deadline = t
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *ConnectionMock) SetReadDeadline(t time.Time) error { return m.SetDeadline(t) }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }

// Writes returns every Write call made so far, in order.
func (m *ConnectionMock) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

// GetWrittenRequest returns all written bytes concatenated.
func (m *ConnectionMock) GetWrittenRequest() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var buf bytes.Buffer
	for _, w := range m.writes {
		buf.WriteString(w)
	}
	return buf.String()
}
