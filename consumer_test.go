package sqs

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplequeue/sqs/internal/testutils"
)

func newConnectedConsumer(t *testing.T, config Config) (*Consumer[string], *testutils.ConnectionMock) {
	t.Helper()

	mock := newConnectedMock(RoleConsumer)
	if config.ReadTimeout == 0 {
		config.ReadTimeout = time.Second
	}
	config.dial = (&mockDialer{conns: []net.Conn{mock}}).dial

	c := NewConsumer(TextCodec(), config)
	require.NoError(t, c.Connect(context.Background(), "localhost", 9000, testQueue))
	return c, mock
}

// errorRecorder collects errors reported by subscription loops.
type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errorRecorder) record(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *errorRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func waitDone(t *testing.T, c interface{ Done() <-chan struct{} }) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
}

func TestReceive(t *testing.T) {
	c, mock := newConnectedConsumer(t, Config{})
	mock.Push("\"hello\"\r\n", "OK\r\n")

	msg, err := c.Receive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, []string{"\r\nSTART_GET_MESSAGE\r\n", "\r\nEND_GET_MESSAGE\r\n"}, writesAfterConfig(t, mock))
	assert.Equal(t, uint64(1), c.Stats().MessagesReceived)

	_, hasDate := msg.DeliverAt()
	_, hasDelay := msg.DeliverAfter()
	assert.False(t, hasDate)
	assert.False(t, hasDelay)
}

func TestReceive_EndReplyContainsOK(t *testing.T) {
	c, mock := newConnectedConsumer(t, Config{})
	mock.Push("\"hello\"\r\n", "OK: (ACK)\r\n")

	msg, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Body)
}

func TestReceive_DecodeError(t *testing.T) {
	c, mock := newConnectedConsumer(t, Config{})
	mock.Push("x\r\n", "OK\r\n")

	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrEncoding)
	assert.Equal(t, ConnectedAfterConfig, c.State(), "a decode failure keeps the connection")
	assert.Equal(t, uint64(1), c.Stats().EncodingErrors)
}

func TestReceive_BeforeConnect(t *testing.T) {
	c := NewConsumer(TextCodec(), Config{})

	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrBadState)
}

func TestReceive_ReceiveTimeout(t *testing.T) {
	c, _ := newConnectedConsumer(t, Config{ReceiveTimeout: 50 * time.Millisecond})

	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, NotConnected, c.State())
}

func TestReceive_ContextCancel(t *testing.T) {
	c, _ := newConnectedConsumer(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := c.Receive(ctx)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, NotConnected, c.State())
}

func TestSubscribe(t *testing.T) {
	c, mock := newConnectedConsumer(t, Config{})
	mock.Push("\"one\"\r\n", "OK\r\n", "\"two\"\r\n", "OK\r\n")

	received := make(chan string, 2)
	require.NoError(t, c.Subscribe(func(msg Message[string]) {
		received <- msg.Body
	}))
	assert.True(t, c.Subscribed())

	assert.Equal(t, "one", <-received)
	assert.Equal(t, "two", <-received)

	// The loop may own the session, in which case RUN QUIT is skipped
	_ = c.Quit(context.Background())
	waitDone(t, c)

	assert.False(t, c.Subscribed())
	assert.Equal(t, NotWantingConnection, c.State())
	assert.True(t, mock.IsClosed())
}

func TestSubscribe_Twice(t *testing.T) {
	c, _ := newConnectedConsumer(t, Config{})

	handler := func(Message[string]) {}
	require.NoError(t, c.Subscribe(handler))
	require.NoError(t, c.Subscribe(handler))

	assert.Equal(t, uint64(1), c.Stats().SubscriptionsStarted)

	_ = c.Quit(context.Background())
	waitDone(t, c)
}

func TestSubscribe_BeforeConnect(t *testing.T) {
	c := NewConsumer(TextCodec(), Config{})

	err := c.Subscribe(func(Message[string]) {})
	assert.ErrorIs(t, err, ErrBadState)
	assert.False(t, c.Subscribed())

	// No subscription, Done is already closed
	waitDone(t, c)
}

func TestSubscribe_ReceiveRejected(t *testing.T) {
	c, _ := newConnectedConsumer(t, Config{})
	require.NoError(t, c.Subscribe(func(Message[string]) {}))

	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrBadState)

	_ = c.Quit(context.Background())
	waitDone(t, c)
}

func TestSubscribe_EncodingErrorContinues(t *testing.T) {
	errs := &errorRecorder{}
	c, mock := newConnectedConsumer(t, Config{OnError: errs.record})
	mock.Push("x\r\n", "OK\r\n", "\"ok\"\r\n", "OK\r\n")

	received := make(chan string, 1)
	require.NoError(t, c.Subscribe(func(msg Message[string]) {
		received <- msg.Body
	}))

	select {
	case body := <-received:
		assert.Equal(t, "ok", body)
	case <-time.After(2 * time.Second):
		t.Fatal("no message after the decode failure")
	}

	reported := errs.all()
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrEncoding)
	assert.Equal(t, uint64(1), c.Stats().SubscriptionErrors)

	_ = c.Quit(context.Background())
	waitDone(t, c)
}

func TestSubscribe_ConnectionLossStops(t *testing.T) {
	errs := &errorRecorder{}
	c, mock := newConnectedConsumer(t, Config{OnError: errs.record})
	require.NoError(t, c.Subscribe(func(Message[string]) {}))

	mock.Hangup()
	waitDone(t, c)

	assert.Equal(t, NotConnected, c.State())
	assert.False(t, c.IsAlive())

	reported := errs.all()
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrConnection)
}

func TestSubscribe_UnexpectedReplyStops(t *testing.T) {
	errs := &errorRecorder{}
	c, mock := newConnectedConsumer(t, Config{OnError: errs.record})
	mock.Push("\"one\"\r\n", "ERROR: Lost message\r\n")

	require.NoError(t, c.Subscribe(func(Message[string]) {
		t.Error("handler must not be called")
	}))
	waitDone(t, c)

	reported := errs.all()
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrUnexpectedResponse)
	assert.Equal(t, ConnectedAfterConfig, c.State())
}

func TestSubscribe_QuitReportsNothing(t *testing.T) {
	errs := &errorRecorder{}
	c, _ := newConnectedConsumer(t, Config{OnError: errs.record})
	require.NoError(t, c.Subscribe(func(Message[string]) {}))

	_ = c.Quit(context.Background())
	waitDone(t, c)

	assert.Empty(t, errs.all())
	assert.Equal(t, uint64(0), c.Stats().SubscriptionErrors)
}

func TestSubscribe_AgainAfterStop(t *testing.T) {
	c, mock := newConnectedConsumer(t, Config{})
	mock.Push("\"one\"\r\n", "ERROR: Lost message\r\n")

	require.NoError(t, c.Subscribe(func(Message[string]) {}))
	waitDone(t, c)

	require.NoError(t, c.Subscribe(func(Message[string]) {}))
	assert.Equal(t, uint64(2), c.Stats().SubscriptionsStarted)

	_ = c.Quit(context.Background())
	waitDone(t, c)
}

func TestNewConsumer_NilCodec(t *testing.T) {
	assert.Panics(t, func() {
		NewConsumer[string](nil, Config{})
	})
}
