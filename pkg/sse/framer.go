package sse

import "bytes"

var (
	lfDelimiter   = []byte("\n\n")
	crlfDelimiter = []byte("\r\n\r\n")
)

// Framer accumulates raw stream bytes and yields complete event blocks, each
// terminated by a blank line.
//
// The internal buffer only grows by Write and only shrinks when Next or Flush
// hands a block out, so no byte is ever yielded twice.
//
// ┌──────────────┐   ┌─────────────────┐   ┌──────────────┐
// │ Write(chunk) │──▶│ pending buffer  │──▶│ Next() block │
// └──────────────┘   └─────────────────┘   └──────────────┘
type Framer struct {
	buf []byte
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Write appends p to the pending buffer. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	return len(p), nil
}

// Next removes and returns the next complete event block, delimiter included.
// It returns false when the buffer holds no complete block yet.
func (f *Framer) Next() ([]byte, bool) {
	end := blockEnd(f.buf)
	if end < 0 {
		return nil, false
	}

	return f.take(end), true
}

// Flush removes and returns whatever is left in the buffer, for a final block
// that ended without a trailing blank line. It returns false when nothing is
// buffered.
func (f *Framer) Flush() ([]byte, bool) {
	if len(f.buf) == 0 {
		return nil, false
	}

	return f.take(len(f.buf)), true
}

// Buffered returns the number of bytes not yet handed out.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// take cuts the first n bytes off the buffer, compacting what remains so the
// backing array does not grow without bound over a long stream.
func (f *Framer) take(n int) []byte {
	block := bytes.Clone(f.buf[:n])
	f.buf = append(f.buf[:0], f.buf[n:]...)
	return block
}

// blockEnd returns the index just past the earliest event delimiter, or -1.
func blockEnd(buf []byte) int {
	lf := bytes.Index(buf, lfDelimiter)
	crlf := bytes.Index(buf, crlfDelimiter)

	switch {
	case lf < 0 && crlf < 0:
		return -1
	case crlf < 0 || (lf >= 0 && lf < crlf):
		return lf + len(lfDelimiter)
	default:
		return crlf + len(crlfDelimiter)
	}
}
