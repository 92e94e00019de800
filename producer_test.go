package sqs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendReplies(key, value string) []string {
	return []string{"OK\r\n", "OK: (" + key + "=" + value + ")\r\n", "OK\r\n", "OK\r\n", "OK\r\n"}
}

func TestSend_WriteSequence(t *testing.T) {
	p, mock := newConnectedProducer(t, Config{})
	mock.Push(sendReplies("DELIVER_TIMESTAMP", "0")...)

	msg, err := NewMessageBuilder[string]().
		WithBody("THIS IS A TEST").
		WithDeliverDelaySeconds(0).
		Build()
	require.NoError(t, err)

	require.NoError(t, p.Send(context.Background(), msg))

	expected := []string{
		"\r\nSTART_METADATA\r\n",
		"\r\nSET DELIVER_TIMESTAMP=0;\r\n",
		"\r\nEND_METADATA\r\n",
		"\r\nSTART_MESSAGE\r\n",
		"\"THIS IS A TEST\"\r\nEND_MESSAGE\r\n",
	}
	assert.Equal(t, expected, writesAfterConfig(t, mock))
	assert.Equal(t, ConnectedAfterConfig, p.State())
	assert.Equal(t, uint64(1), p.Stats().MessagesSent)
}

func TestSend_Timing(t *testing.T) {
	tests := []struct {
		name     string
		build    func(b *MessageBuilder[string]) *MessageBuilder[string]
		expected string
	}{
		{
			name: "delay in seconds",
			build: func(b *MessageBuilder[string]) *MessageBuilder[string] {
				return b.WithDeliverDelaySeconds(10)
			},
			expected: "\r\nSET DELIVER_TIMESTAMP=10000;\r\n",
		},
		{
			name: "delay with milliseconds",
			build: func(b *MessageBuilder[string]) *MessageBuilder[string] {
				return b.WithDeliverDelay(1500 * time.Millisecond)
			},
			expected: "\r\nSET DELIVER_TIMESTAMP=1500;\r\n",
		},
		{
			name: "date",
			build: func(b *MessageBuilder[string]) *MessageBuilder[string] {
				at := time.Date(2024, 1, 2, 4, 4, 5, 678_900_000, time.FixedZone("CET", 3600))
				return b.WithDeliverDate(at)
			},
			expected: "\r\nSET DELIVER_DATE=2024-01-02T03:04:05.678Z;\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, mock := newConnectedProducer(t, Config{})
			mock.Push(sendReplies("K", "V")...)

			msg, err := tt.build(NewMessageBuilder[string]().WithBody("hello")).Build()
			require.NoError(t, err)
			require.NoError(t, p.Send(context.Background(), msg))

			writes := writesAfterConfig(t, mock)
			require.Len(t, writes, 5)
			assert.Equal(t, tt.expected, writes[1])
		})
	}
}

func TestSend_WithoutTiming(t *testing.T) {
	p, mock := newConnectedProducer(t, Config{})

	err := p.Send(context.Background(), NewMessage("hello"))
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Empty(t, writesAfterConfig(t, mock), "nothing must be written")
	assert.Equal(t, ConnectedAfterConfig, p.State())
}

func TestSend_BeforeConnect(t *testing.T) {
	p := NewProducer(TextCodec(), Config{})

	msg, err := NewMessageBuilder[string]().WithBody("hello").WithDeliverDelaySeconds(0).Build()
	require.NoError(t, err)

	err = p.Send(context.Background(), msg)
	assert.ErrorIs(t, err, ErrBadState)
}

func TestSend_AfterQuit(t *testing.T) {
	p, mock := newConnectedProducer(t, Config{})
	mock.Push("OK\r\n")
	require.NoError(t, p.Quit(context.Background()))

	msg, err := NewMessageBuilder[string]().WithBody("hello").WithDeliverDelaySeconds(0).Build()
	require.NoError(t, err)

	err = p.Send(context.Background(), msg)
	assert.ErrorIs(t, err, ErrBadState)
}

func TestSend_MultilineTextBody(t *testing.T) {
	p, mock := newConnectedProducer(t, Config{})

	msg, err := NewMessageBuilder[string]().WithBody("first\r\nEND_MESSAGE").WithDeliverDelaySeconds(0).Build()
	require.NoError(t, err)

	err = p.Send(context.Background(), msg)
	require.ErrorIs(t, err, ErrEncoding)
	assert.Empty(t, writesAfterConfig(t, mock), "nothing may reach the broker")
	assert.Equal(t, ConnectedAfterConfig, p.State())
}

func TestSend_EncodingError(t *testing.T) {
	codecErr := errors.New("cannot encode")
	codec := CodecFunc[string]{
		EncodeFunc: func(string) (string, error) { return "", codecErr },
		DecodeFunc: func(payload string) (string, error) { return payload, nil },
	}

	mock := newConnectedMock(RoleProducer)
	p := NewProducer[string](codec, mockConfig(mock))
	require.NoError(t, p.Connect(context.Background(), "localhost", 9000, testQueue))

	msg, err := NewMessageBuilder[string]().WithBody("hello").WithDeliverDelaySeconds(0).Build()
	require.NoError(t, err)

	err = p.Send(context.Background(), msg)
	assert.ErrorIs(t, err, ErrEncoding)
	assert.ErrorIs(t, err, codecErr)
	assert.Equal(t, ConnectedAfterConfig, p.State())
	assert.Equal(t, uint64(1), p.Stats().EncodingErrors)
}

func TestSend_MessageReplyMismatch(t *testing.T) {
	p, mock := newConnectedProducer(t, Config{})
	mock.Push("OK\r\n", "OK: (DELIVER_TIMESTAMP=0)\r\n", "OK\r\n", "OK\r\n", "ERROR: Queue is full\r\n")

	msg, err := NewMessageBuilder[string]().WithBody("hello").WithDeliverDelaySeconds(0).Build()
	require.NoError(t, err)

	err = p.Send(context.Background(), msg)
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindUnexpectedResponse, e.Kind)
	assert.Equal(t, "send", e.Op)
	assert.Equal(t, "OK", e.Expected)
	assert.Equal(t, "ERROR: Queue is full", e.Actual)
	assert.Equal(t, uint64(0), p.Stats().MessagesSent)
}

func TestSend_JSON(t *testing.T) {
	type order struct {
		ID   int    `json:"id"`
		Item string `json:"item"`
	}

	mock := newConnectedMock(RoleProducer)
	mock.Push(sendReplies("DELIVER_TIMESTAMP", "0")...)
	p := NewProducer(JSONCodec[order](), mockConfig(mock))
	require.NoError(t, p.Connect(context.Background(), "localhost", 9000, testQueue))

	msg, err := NewMessageBuilder[order]().WithBody(order{ID: 42, Item: "book"}).WithDeliverDelaySeconds(0).Build()
	require.NoError(t, err)
	require.NoError(t, p.Send(context.Background(), msg))

	writes := writesAfterConfig(t, mock)
	require.Len(t, writes, 5)
	assert.Equal(t, "{\"id\":42,\"item\":\"book\"}\r\nEND_MESSAGE\r\n", writes[4])
}

func TestNewProducer_NilCodec(t *testing.T) {
	assert.Panics(t, func() {
		NewProducer[string](nil, Config{})
	})
}
