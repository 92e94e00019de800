package sqs

import (
	"context"
	"sync"

	"github.com/simplequeue/sqs/wire"
)

// Consumer fetches messages from one queue, one at a time or through a
// background subscription.
type Consumer[B any] struct {
	*Connection
	codec BodyCodec[B]

	mu  sync.Mutex
	sub *subscription
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConsumer returns a consumer decoding bodies with codec. It is not
// connected yet, see Connect.
func NewConsumer[B any](codec BodyCodec[B], config Config) *Consumer[B] {
	if codec == nil {
		panic("sqs: NewConsumer requires a codec")
	}
	return &Consumer[B]{
		Connection: newConnection(RoleConsumer, config),
		codec:      codec,
	}
}

// Receive blocks until the broker hands over one message.
//
// It fails with KindBadState while a subscription is active: the
// subscription loop owns the receive side of the connection.
func (c *Consumer[B]) Receive(ctx context.Context) (Message[B], error) {
	if c.Subscribed() {
		return Message[B]{}, badState("receive", "a subscription is active")
	}
	return c.receive(ctx)
}

func (c *Consumer[B]) receive(ctx context.Context) (Message[B], error) {
	const op = "receive"

	var payload string
	err := c.exchange(ctx, op, func(s *session) error {
		if err := s.writeLine(ctx, wire.StartGetMessage); err != nil {
			return err
		}
		// The next read is the payload itself, there is no MESSAGE section
		line, err := s.readLineWithin(ctx, c.config.ReceiveTimeout)
		if err != nil {
			return err
		}
		payload = line

		if err := s.writeLine(ctx, wire.EndGetMessage); err != nil {
			return err
		}
		_, err = s.expectContains(ctx, wire.ReplyOK)
		return err
	})
	if err != nil {
		return Message[B]{}, err
	}

	body, err := c.codec.Decode(payload)
	if err != nil {
		c.stats.recordEncodingError()
		return Message[B]{}, encodingError(op, err)
	}

	c.stats.recordReceived()
	return NewMessage(body), nil
}

// Subscribe starts a background loop receiving messages and calling handler
// for each of them, synchronously, from the loop goroutine.
//
// At most one loop runs per consumer: calling Subscribe while one is active
// does nothing. The loop stops on Quit, or when the connection fails.
// Encoding failures are reported to Config.OnError and the loop goes on;
// any other failure ends it.
func (c *Consumer[B]) Subscribe(handler func(Message[B])) error {
	const op = "subscribe"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		return nil
	}
	if err := c.checkSubscribable(op); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	c.sub = sub
	c.setSubscriptionStop(cancel)
	c.stats.recordSubscriptionStart()

	go c.subscriptionLoop(ctx, sub, handler)
	return nil
}

// Subscribed reports whether a subscription loop is running.
func (c *Consumer[B]) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub != nil
}

// Done returns a channel closed when the current subscription loop has
// stopped. Without a subscription the channel is already closed.
func (c *Consumer[B]) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.sub.done
}

func (c *Consumer[B]) checkSubscribable(op string) error {
	if !c.open.Load() {
		return badState(op, "connection is closed")
	}
	if st := c.State(); st != ConnectedAfterConfig {
		return badState(op, "connection is "+st.String())
	}
	return nil
}

func (c *Consumer[B]) subscriptionLoop(ctx context.Context, sub *subscription, handler func(Message[B])) {
	log := c.config.Logger
	connID := c.ID()

	defer func() {
		sub.cancel()
		c.mu.Lock()
		if c.sub == sub {
			c.sub = nil
			c.setSubscriptionStop(nil)
		}
		c.mu.Unlock()
		close(sub.done)
		log.Debug("sqs: subscription stopped", "conn_id", connID)
	}()

	log.Debug("sqs: subscription started", "conn_id", connID)

	for {
		if !c.open.Load() || ctx.Err() != nil {
			return
		}
		if err := c.checkSubscribable("subscribe"); err != nil {
			log.Debug("sqs: subscription ending", "conn_id", connID, "error", err)
			return
		}

		msg, err := c.receive(ctx)
		if err != nil {
			switch KindOf(err) {
			case KindEncoding:
				c.stats.recordSubscriptionError()
				c.config.reportError(err, "conn_id", connID)
				continue
			case KindBadState:
				return
			case KindConnection:
				// Cancellation by Quit is the normal way out
				if ctx.Err() == nil && c.State() != NotWantingConnection {
					c.stats.recordSubscriptionError()
					c.config.reportError(err, "conn_id", connID)
				}
				return
			default:
				// The stream is out of sync after an unexpected reply
				c.stats.recordSubscriptionError()
				c.config.reportError(err, "conn_id", connID)
				return
			}
		}

		handler(msg)
	}
}
