// Package tee splits an upstream response body into two consumers: the client
// connection, which receives every byte unchanged, and a usage parser, which
// observes the same bytes to reconstruct token accounting.
package tee

import (
	"bytes"
	"errors"
	"io"
	"log/slog"

	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/llm/usage"
	"github.com/papercomputeco/tokentap/pkg/logger"
)

const (
	// DefaultChannelCapacity is the number of frames buffered between the
	// upstream reader and the client writer.
	DefaultChannelCapacity = 32

	// DefaultReadSize is the size of each upstream read.
	DefaultReadSize = 32 * 1024
)

// Options configures a Tee. Zero values select the defaults.
type Options struct {
	ChannelCapacity int
	ReadSize        int
	Logger          *slog.Logger
}

// Frame is one unit handed to the client side: either a chunk of upstream
// bytes or a terminal upstream error.
type Frame struct {
	Data []byte
	Err  error
}

// Tee owns the upstream read loop for a single response.
type Tee struct {
	parser   *usage.Parser
	out      chan<- Frame
	gone     <-chan struct{}
	readSize int
	logger   *slog.Logger
}

// New wires a tee to its client-facing stream. The caller hands the Stream to
// the HTTP server as the response body and runs the Tee in its own goroutine.
func New(parser *usage.Parser, opts Options) (*Tee, *Stream) {
	if opts.ChannelCapacity <= 0 {
		opts.ChannelCapacity = DefaultChannelCapacity
	}
	if opts.ReadSize <= 0 {
		opts.ReadSize = DefaultReadSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	frames := make(chan Frame, opts.ChannelCapacity)
	gone := make(chan struct{})

	t := &Tee{
		parser:   parser,
		out:      frames,
		gone:     gone,
		readSize: opts.ReadSize,
		logger:   opts.Logger.With("backend", parser.Backend().String()),
	}
	s := &Stream{
		frames: frames,
		gone:   gone,
	}

	return t, s
}

// Run reads body until it ends, fails, or the client goes away. Each frame is
// fed to the parser before it is queued for the client, so a frame the client
// never receives has still been observed. Run closes the frame channel and
// finalizes the parser exactly once on every path. It does not close body.
func (t *Tee) Run(body io.Reader) llm.StreamResult {
	defer close(t.out)

	result := llm.StreamResult{
		Backend: t.parser.Backend().String(),
	}

	buf := make([]byte, t.readSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			frame := bytes.Clone(buf[:n])
			t.parser.Feed(frame)
			result.Bytes += int64(n)

			if !t.send(Frame{Data: frame}) {
				result.Outcome = llm.OutcomeClientDisconnected
				t.logger.Debug("client disconnected mid-stream", "bytes", result.Bytes)
				break
			}
		}

		if errors.Is(err, io.EOF) {
			result.Outcome = llm.OutcomeCompleted
			break
		}
		if err != nil {
			result.Outcome = llm.OutcomeUpstreamError
			result.Err = err
			t.logger.Warn("upstream read failed", "error", err, "bytes", result.Bytes)

			// Best effort: the client may already be gone.
			t.send(Frame{Err: err})
			break
		}
	}

	result.Usage = t.parser.Finalize()
	return result
}

// send queues one frame, blocking while the channel is full. It returns
// false once the client side has been closed.
func (t *Tee) send(f Frame) bool {
	select {
	case <-t.gone:
		return false
	default:
	}

	select {
	case t.out <- f:
		return true
	case <-t.gone:
		return false
	}
}
