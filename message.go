package sqs

import (
	"strconv"
	"time"

	"github.com/simplequeue/sqs/wire"
)

// Message is a body plus its delivery timing. The timing is either an
// absolute instant or a relative delay, never both.
//
// Received messages carry no timing: the broker does not echo it.
type Message[B any] struct {
	Body B

	deliverAt       time.Time
	deliverAfterMs  int64
	hasDeliverAfter bool
}

// NewMessage returns a message without delivery timing. It must be given a
// timing (see MessageBuilder) before it can be sent.
func NewMessage[B any](body B) Message[B] {
	return Message[B]{Body: body}
}

// DeliverAt returns the absolute delivery instant, if set.
func (m Message[B]) DeliverAt() (time.Time, bool) {
	return m.deliverAt, !m.deliverAt.IsZero()
}

// DeliverAfter returns the relative delivery delay, if set. It has
// millisecond precision.
func (m Message[B]) DeliverAfter() (time.Duration, bool) {
	return time.Duration(m.deliverAfterMs) * time.Millisecond, m.hasDeliverAfter
}

// deliverDirective returns the metadata parameter carrying the timing.
// The broker reads DELIVER_TIMESTAMP as a delay in milliseconds.
func (m Message[B]) deliverDirective() (key, value string, err error) {
	at, hasAt := m.DeliverAt()
	switch {
	case m.hasDeliverAfter && hasAt:
		return "", "", &Error{Kind: KindInvalidMessage, Op: "send", Msg: "both deliver date and deliver delay are set"}
	case m.hasDeliverAfter:
		return wire.ParamDeliverTimestamp, strconv.FormatInt(m.deliverAfterMs, 10), nil
	case hasAt:
		return wire.ParamDeliverDate, wire.FormatDeliverDate(at), nil
	default:
		return "", "", &Error{Kind: KindInvalidMessage, Op: "send", Msg: "message has neither deliver date nor deliver delay"}
	}
}

// MessageBuilder builds a Message, rejecting conflicting delivery timings.
// The first misuse is kept and returned by Build.
//
//	msg, err := sqs.NewMessageBuilder[string]().
//		WithBody("THIS IS A TEST").
//		WithDeliverDelaySeconds(10).
//		Build()
type MessageBuilder[B any] struct {
	msg     Message[B]
	hasBody bool
	err     error
}

// NewMessageBuilder returns an empty builder.
func NewMessageBuilder[B any]() *MessageBuilder[B] {
	return &MessageBuilder[B]{}
}

// WithBody sets the body.
func (b *MessageBuilder[B]) WithBody(body B) *MessageBuilder[B] {
	b.msg.Body = body
	b.hasBody = true
	return b
}

// WithDeliverDate sets the absolute delivery instant.
func (b *MessageBuilder[B]) WithDeliverDate(t time.Time) *MessageBuilder[B] {
	switch {
	case b.err != nil:
	case b.msg.hasDeliverAfter:
		b.err = invalidMessage("can't set deliver date, deliver delay is already set")
	case t.IsZero():
		b.err = invalidMessage("deliver date is the zero time")
	default:
		b.msg.deliverAt = t
	}
	return b
}

// WithDeliverDelaySeconds sets the relative delivery delay in seconds.
func (b *MessageBuilder[B]) WithDeliverDelaySeconds(seconds int64) *MessageBuilder[B] {
	return b.WithDeliverDelay(time.Duration(seconds) * time.Second)
}

// WithDeliverDelay sets the relative delivery delay, truncated to
// milliseconds. Zero means deliver as soon as possible.
func (b *MessageBuilder[B]) WithDeliverDelay(d time.Duration) *MessageBuilder[B] {
	switch {
	case b.err != nil:
	case !b.msg.deliverAt.IsZero():
		b.err = invalidMessage("can't set deliver delay, deliver date is already set")
	case d < 0:
		b.err = invalidMessage("deliver delay is negative")
	default:
		b.msg.deliverAfterMs = d.Milliseconds()
		b.msg.hasDeliverAfter = true
	}
	return b
}

// Build returns the message. A message without timing is valid here but is
// rejected by Send.
func (b *MessageBuilder[B]) Build() (Message[B], error) {
	if b.err != nil {
		return Message[B]{}, b.err
	}
	if !b.hasBody {
		return Message[B]{}, invalidMessage("body is not set")
	}
	return b.msg, nil
}
