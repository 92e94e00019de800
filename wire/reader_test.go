package wire

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader returns one chunk per Read call.
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestReader_ReadLine(t *testing.T) {
	r := NewReader(&chunkReader{chunks: []string{"HELO SERVER\r\n", "  OK\r\n", "OK: (QUEUE=jobs)\r\n"}}, 1024)

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, Greeting, line)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, ReplyOK, line)

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "OK: (QUEUE=jobs)", line)

	_, err = r.ReadLine()
	require.ErrorIs(t, err, io.EOF)
}

func TestReader_OneReadIsOneReply(t *testing.T) {
	// Two lines arriving in one read form a single logical reply
	r := NewReader(&chunkReader{chunks: []string{"\"a\"\r\nOK\r\n"}}, 1024)

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "\"a\"\r\nOK", line)
}

func TestReader_ResponseTooLarge(t *testing.T) {
	r := NewReader(&chunkReader{chunks: []string{"0123456789"}}, 10)

	_, err := r.ReadLine()
	require.ErrorIs(t, err, ErrResponseTooLarge)
	assert.True(t, ShouldCloseConnection(err))
}

func TestReader_DefaultMaxSize(t *testing.T) {
	r := NewReader(&chunkReader{}, 0)
	assert.Equal(t, DefaultMaxResponseSize, r.MaxSize())
}

func TestReader_PooledBuffers(t *testing.T) {
	t.Run("default size is shared", func(t *testing.T) {
		a := NewReader(&chunkReader{}, 0)
		b := NewReader(&chunkReader{}, DefaultMaxResponseSize)
		assert.Same(t, defaultReadBuffers, a.buffers)
		assert.Same(t, defaultReadBuffers, b.buffers)
	})

	t.Run("replies outlive the buffer", func(t *testing.T) {
		r := NewReader(&chunkReader{chunks: []string{"\"first reply\"", "OK"}}, 64)

		first, err := r.ReadLine()
		require.NoError(t, err)
		second, err := r.ReadLine()
		require.NoError(t, err)

		assert.Equal(t, "\"first reply\"", first)
		assert.Equal(t, ReplyOK, second)
	})
}

func TestReader_PropagatesError(t *testing.T) {
	boom := errors.New("reset by peer")
	r := NewReader(&chunkReader{err: boom}, 64)

	_, err := r.ReadLine()
	require.ErrorIs(t, err, boom)
}

func TestExpectExact(t *testing.T) {
	require.NoError(t, ExpectExact("OK", ReplyOK))

	err := ExpectExact("OK: (QUEUE=x)", ReplyOK)
	var unexpected *UnexpectedResponseError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, "OK", unexpected.Expected)
	assert.Equal(t, "OK: (QUEUE=x)", unexpected.Actual)
	assert.True(t, unexpected.Exact)
	assert.False(t, ShouldCloseConnection(err))
}

func TestExpectContains(t *testing.T) {
	require.NoError(t, ExpectContains("OK: (ROLE=PRODUCER)", ReplyOKWithValue))
	require.NoError(t, ExpectContains("OK", ReplyOK))

	err := ExpectContains("OK", ReplyOKWithValue)
	var unexpected *UnexpectedResponseError
	require.ErrorAs(t, err, &unexpected)
	assert.False(t, unexpected.Exact)
	assert.Contains(t, err.Error(), "expected to contain")
}

func TestUnexpectedResponse_BrokerError(t *testing.T) {
	err := ExpectExact("ERROR: Missing DELIVER_DATE or DELIVER_TIMESTAMP", ReplyOK)

	var brokerErr *BrokerError
	require.ErrorAs(t, err, &brokerErr)
	assert.Equal(t, "Missing DELIVER_DATE or DELIVER_TIMESTAMP", brokerErr.Reason)

	err = ExpectExact("NOPE", ReplyOK)
	assert.False(t, errors.As(err, &brokerErr))
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		line  string
		key   string
		value string
		ok    bool
	}{
		{line: "OK: (QUEUE=jobs)", key: "QUEUE", value: "jobs", ok: true},
		{line: "OK: (DELIVER_TIMESTAMP=0)", key: "DELIVER_TIMESTAMP", value: "0", ok: true},
		{line: "OK:queue=x", key: "queue", value: "x", ok: true},
		{line: "OK", ok: false},
		{line: "ERROR: nope", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			key, value, ok := ParseValue(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.key, key)
				assert.Equal(t, tt.value, value)
			}
		})
	}
}

func TestConnectionError(t *testing.T) {
	err := &ConnectionError{Op: "read", Err: io.EOF}
	assert.Equal(t, "wire: connection error during read: EOF", err.Error())
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, ShouldCloseConnection(err))
	assert.False(t, err.Timeout())
	assert.False(t, ShouldCloseConnection(nil))
}
