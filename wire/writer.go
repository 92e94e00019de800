package wire

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"
)

const maxPooledBufferSize = 64 * 1024

var bufferPool = sync.Pool{
	New: func() any {
		// Most commands are a few dozen bytes
		return bytes.NewBuffer(make([]byte, 0, 128))
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufferSize {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// FormatLine frames text as a command line: CRLF + text + CRLF.
func FormatLine(text string) []byte {
	return appendLine(make([]byte, 0, len(text)+2*len(CRLF)), text)
}

func appendLine(dst []byte, text string) []byte {
	dst = append(dst, CRLF...)
	dst = append(dst, text...)
	return append(dst, CRLF...)
}

// FormatSet formats a parameter assignment: "SET key=value;".
func FormatSet(key, value string) string {
	var b strings.Builder
	b.Grow(len(key) + len(value) + 6)
	b.WriteString("SET ")
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte(';')
	return b.String()
}

// FormatPayload formats the body of a MESSAGE section immediately followed by
// the END_MESSAGE terminator. The broker only replies once, after the
// terminator.
func FormatPayload(body string) []byte {
	return appendPayload(make([]byte, 0, len(body)+len(EndMessage)+2*len(CRLF)), body)
}

func appendPayload(dst []byte, body string) []byte {
	dst = append(dst, body...)
	dst = append(dst, CRLF...)
	dst = append(dst, EndMessage...)
	return append(dst, CRLF...)
}

// FormatDeliverDate renders an absolute delivery instant as ISO-8601 in UTC
// with millisecond precision.
func FormatDeliverDate(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(time.RFC3339Nano)
}

// WriteLine frames text and writes it to w in a single Write call.
func WriteLine(w io.Writer, text string) error {
	buf := getBuffer()
	defer putBuffer(buf)

	buf.Write(appendLine(buf.AvailableBuffer(), text))
	return writeAll(w, buf.Bytes())
}

// WritePayload writes the encoded body and the END_MESSAGE terminator in a
// single Write call.
func WritePayload(w io.Writer, body string) error {
	buf := getBuffer()
	defer putBuffer(buf)

	buf.Write(appendPayload(buf.AvailableBuffer(), body))
	return writeAll(w, buf.Bytes())
}

func writeAll(w io.Writer, p []byte) error {
	n, err := w.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}
