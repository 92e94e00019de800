package sqs

import (
	"context"

	"github.com/simplequeue/sqs/wire"
)

// Producer sends messages to one queue.
type Producer[B any] struct {
	*Connection
	codec BodyCodec[B]
}

// NewProducer returns a producer encoding bodies with codec. It is not
// connected yet, see Connect.
func NewProducer[B any](codec BodyCodec[B], config Config) *Producer[B] {
	if codec == nil {
		panic("sqs: NewProducer requires a codec")
	}
	return &Producer[B]{
		Connection: newConnection(RoleProducer, config),
		codec:      codec,
	}
}

// Send delivers one message: a METADATA section with its timing, then a
// MESSAGE section with the encoded body.
//
// A message without timing, or whose body cannot be encoded, is rejected
// before anything is written. A reply mismatch aborts the send with a
// KindUnexpectedResponse error; nothing is retried.
func (p *Producer[B]) Send(ctx context.Context, msg Message[B]) error {
	const op = "send"

	key, value, err := msg.deliverDirective()
	if err != nil {
		return err
	}

	payload, err := p.codec.Encode(msg.Body)
	if err != nil {
		p.stats.recordEncodingError()
		return encodingError(op, err)
	}

	err = p.exchange(ctx, op, func(s *session) error {
		if err := s.command(ctx, wire.StartMetadata, wire.ReplyOK); err != nil {
			return err
		}
		if _, err := s.set(ctx, key, value); err != nil {
			return err
		}
		if err := s.command(ctx, wire.EndMetadata, wire.ReplyOK); err != nil {
			return err
		}

		if err := s.command(ctx, wire.StartMessage, wire.ReplyOK); err != nil {
			return err
		}
		if err := s.writePayload(ctx, payload); err != nil {
			return err
		}
		_, err := s.expectExact(ctx, wire.ReplyOK)
		return err
	})
	if err != nil {
		return err
	}

	p.stats.recordSent()
	return nil
}
