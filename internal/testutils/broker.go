package testutils

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/simplequeue/sqs/wire"
)

// Broker is a loopback broker speaking the queue protocol. It keeps one
// in-memory FIFO per queue and hands each message to exactly one consumer.
type Broker struct {
	listener net.Listener

	mu     sync.Mutex
	queues map[string]chan string
	done   chan struct{}

	// Commands received, in order, across all sessions (blank lines skipped)
	received []string
}

// StartBroker starts a broker on a random local port, stopped on test cleanup.
func StartBroker(t testing.TB) *Broker {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start test broker: %v", err)
	}

	b := &Broker{
		listener: listener,
		queues:   make(map[string]chan string),
		done:     make(chan struct{}),
	}
	t.Cleanup(b.Close)

	go b.serve()
	return b
}

// Addr returns the broker address.
func (b *Broker) Addr() string {
	return b.listener.Addr().String()
}

// HostPort splits Addr for Connect(host, port, ...).
func (b *Broker) HostPort() (string, int) {
	host, port, _ := net.SplitHostPort(b.Addr())
	p, _ := strconv.Atoi(port)
	return host, p
}

// Close stops accepting sessions and unblocks consumers waiting for messages.
func (b *Broker) Close() {
	b.mu.Lock()
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	b.mu.Unlock()
	b.listener.Close()
}

// Enqueue stores a raw wire payload as if a producer had sent it.
func (b *Broker) Enqueue(queue, payload string) {
	b.queue(queue) <- payload
}

// Pending returns the number of undelivered messages on queue.
func (b *Broker) Pending(queue string) int {
	return len(b.queue(queue))
}

// Received returns the non-blank command lines received so far.
func (b *Broker) Received() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.received...)
}

func (b *Broker) queue(name string) chan string {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = make(chan string, 1024)
		b.queues[name] = q
	}
	return q
}

func (b *Broker) record(line string) {
	b.mu.Lock()
	b.received = append(b.received, line)
	b.mu.Unlock()
}

func (b *Broker) serve() {
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}
		go func(c net.Conn) {
			defer c.Close()
			b.handle(c)
		}(conn)
	}
}

type brokerSession struct {
	conn   net.Conn
	params map[string]string
	queue  string
	role   string
	body   []string
	// section currently open, empty outside of sections
	section string
}

func (s *brokerSession) reply(line string) bool {
	_, err := s.conn.Write([]byte(line + wire.CRLF))
	return err == nil
}

func (b *Broker) handle(conn net.Conn) {
	s := &brokerSession{conn: conn}
	if !s.reply(wire.Greeting) {
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), wire.DefaultMaxResponseSize)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		b.record(line)

		if !b.dispatch(s, line) {
			return
		}
	}
}

// dispatch handles one command line, it returns false to end the session.
func (b *Broker) dispatch(s *brokerSession, line string) bool {
	if s.section == "MESSAGE" && line != wire.EndMessage {
		s.body = append(s.body, line)
		return true
	}

	switch {
	case line == wire.RunQuit:
		s.reply(wire.ReplyOK)
		return false

	case line == wire.StartConfig, line == wire.StartMetadata, line == wire.StartMessage:
		s.section = strings.TrimPrefix(line, "START_")
		s.params = make(map[string]string)
		s.body = nil
		return s.reply(wire.ReplyOK)

	case strings.HasPrefix(line, "SET "):
		if s.section == "" {
			return s.reply("ERROR: SET outside of a section")
		}
		key, value, ok := strings.Cut(strings.TrimSuffix(strings.TrimPrefix(line, "SET "), ";"), "=")
		if !ok {
			return s.reply("ERROR: Malformed SET")
		}
		s.params[key] = value
		return s.reply(wire.ReplyOKWithValue + " (" + key + "=" + value + ")")

	case line == wire.EndConfig:
		s.section = ""
		s.queue, s.role = s.params[wire.ParamQueue], s.params[wire.ParamRole]
		if s.queue == "" || s.role == "" {
			return s.reply("ERROR: Missing configuration")
		}
		return s.reply(wire.ReplyOK)

	case line == wire.EndMetadata:
		s.section = ""
		_, hasDate := s.params[wire.ParamDeliverDate]
		_, hasDelay := s.params[wire.ParamDeliverTimestamp]
		switch {
		case hasDate && hasDelay:
			return s.reply("ERROR: Can NOT specify both DELIVER_DATE and DELIVER_TIMESTAMP")
		case !hasDate && !hasDelay:
			return s.reply("ERROR: Missing DELIVER_DATE or DELIVER_TIMESTAMP")
		}
		return s.reply(wire.ReplyOK)

	case line == wire.EndMessage:
		s.section = ""
		b.Enqueue(s.queue, strings.Join(s.body, wire.CRLF))
		return s.reply(wire.ReplyOK)

	case line == wire.StartGetMessage:
		select {
		case payload := <-b.queue(s.queue):
			return s.reply(payload)
		case <-b.done:
			return false
		}

	case line == wire.EndGetMessage:
		return s.reply(wire.ReplyOK)
	}

	return s.reply("ERROR: Unknown input " + line)
}
