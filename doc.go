/*
Package sqs is a client for the simple queue broker line protocol.

A Producer sends messages to one queue and a Consumer fetches them, one at a
time with Receive or through a background subscription. Both share the same
connection state machine:

	NotWantingConnection -> ConnectedBeforeConfig -> ConnectedAfterConfig
	                     \-> NotConnected (any I/O or handshake failure)

Only ConnectedAfterConfig allows Send, Receive and Subscribe. There is no
automatic reconnection: after a failure the caller decides whether to
Connect again.

# Quick Start

	producer := sqs.NewProducer(sqs.TextCodec(), sqs.Config{})
	if err := producer.Connect(ctx, "localhost", 9000, "orders"); err != nil {
		return err
	}
	defer producer.Quit(ctx)

	msg, err := sqs.NewMessageBuilder[string]().
		WithBody("THIS IS A TEST").
		WithDeliverDelaySeconds(0).
		Build()
	if err != nil {
		return err
	}
	err = producer.Send(ctx, msg)

Consuming:

	consumer := sqs.NewConsumer(sqs.TextCodec(), sqs.Config{
		OnError: func(err error) { log.Println(err) },
	})
	if err := consumer.Connect(ctx, "localhost", 9000, "orders"); err != nil {
		return err
	}
	err = consumer.Subscribe(func(msg sqs.Message[string]) {
		fmt.Println(msg.Body)
	})

# Bodies

Message bodies go through a BodyCodec: TextCodec for quoted strings,
JSONCodec for any JSON-serializable type, StructuredCodec for typed JSON
objects, or CodecFunc for custom formats.

# Errors

Every operation returns an *Error whose Kind tells how to react:

  - KindConnection: I/O failure or timeout, the connection is NotConnected
  - KindUnexpectedResponse: the broker answered out of protocol, the state is unchanged
  - KindBadState: the operation is not allowed in the current state
  - KindEncoding: the body codec failed
  - KindInvalidMessage: the message has conflicting or missing timing

Use errors.Is with the sentinels (ErrConnection, ErrBadState...) or KindOf.

# Multiple Brokers

ConnectServers picks the broker of a queue among several with a jump
consistent hash, and Config.NewCircuitBreaker makes Connect fail fast while
a broker is down:

	config := sqs.Config{
		NewCircuitBreaker: sqs.NewCircuitBreakerConfig(1, 30*time.Second, 10*time.Second),
	}
	producer := sqs.NewProducer(sqs.JSONCodec[Order](), config)
	servers := sqs.NewStaticServers("broker1:9000", "broker2:9000")
	err := producer.ConnectServers(ctx, servers, "orders")
*/
package sqs
