package wire

import (
	"io"
	"strings"
	"sync"
)

// readBuffers hands out read buffers of one size. A buffer is only held for
// the duration of a single ReadLine.
type readBuffers struct {
	size int
	pool sync.Pool
}

func newReadBuffers(size int) *readBuffers {
	b := &readBuffers{size: size}
	b.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return b
}

func (b *readBuffers) get() *[]byte {
	return b.pool.Get().(*[]byte)
}

func (b *readBuffers) put(buf *[]byte) {
	b.pool.Put(buf)
}

// defaultReadBuffers is shared by every reader using DefaultMaxResponseSize.
var defaultReadBuffers = newReadBuffers(DefaultMaxResponseSize)

// Reader reads broker replies from a stream.
//
// Each ReadLine performs exactly one Read on the underlying stream: whatever
// that read returns is one logical reply. There is no reassembly of partial
// replies and no buffering across calls.
type Reader struct {
	r       io.Reader
	buffers *readBuffers
}

// NewReader returns a Reader whose single read is bounded by maxSize bytes.
// A non-positive maxSize selects DefaultMaxResponseSize.
func NewReader(r io.Reader, maxSize int) *Reader {
	if maxSize <= 0 || maxSize == DefaultMaxResponseSize {
		return &Reader{r: r, buffers: defaultReadBuffers}
	}
	return &Reader{r: r, buffers: newReadBuffers(maxSize)}
}

// MaxSize returns the read ceiling in bytes.
func (r *Reader) MaxSize() int {
	return r.buffers.size
}

// ReadLine performs one blocking read and returns its content with
// surrounding whitespace trimmed.
//
// A read that fills the whole buffer returns ErrResponseTooLarge: the reply
// may have been cut and the stream is out of sync.
func (r *Reader) ReadLine() (string, error) {
	buf := r.buffers.get()
	defer r.buffers.put(buf)

	n, err := r.r.Read(*buf)
	if n == 0 {
		if err == nil {
			err = io.ErrNoProgress
		}
		return "", err
	}
	if n >= len(*buf) {
		return "", ErrResponseTooLarge
	}
	// Data read alongside an error is still a complete reply; the error will
	// resurface on the next read.
	return strings.TrimSpace(string((*buf)[:n])), nil
}

// ExpectExact checks that actual is exactly expected.
func ExpectExact(actual, expected string) error {
	if actual != expected {
		return &UnexpectedResponseError{Expected: expected, Actual: actual, Exact: true}
	}
	return nil
}

// ExpectContains checks that actual contains substring.
func ExpectContains(actual, substring string) error {
	if !strings.Contains(actual, substring) {
		return &UnexpectedResponseError{Expected: substring, Actual: actual}
	}
	return nil
}

// ParseBrokerError recognises an "ERROR: <reason>" reply.
func ParseBrokerError(line string) (*BrokerError, bool) {
	reason, ok := strings.CutPrefix(line, ReplyErrorPrefix)
	if !ok {
		return nil, false
	}
	return &BrokerError{Reason: strings.TrimSpace(reason)}, true
}

// ParseValue extracts the value echoed by an "OK: (KEY=value)" reply.
func ParseValue(line string) (key, value string, ok bool) {
	rest, found := strings.CutPrefix(line, ReplyOKWithValue)
	if !found {
		return "", "", false
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, "(")
	rest = strings.TrimSuffix(rest, ")")
	return strings.Cut(rest, "=")
}
