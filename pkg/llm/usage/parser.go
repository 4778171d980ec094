// Package usage reconstructs token usage from streamed inference responses.
//
// A Parser is fed the raw response bytes exactly as they arrive from the
// upstream backend, in chunks of any size and with record boundaries falling
// anywhere. It buffers partial records, interprets complete ones, and
// produces a finalized llm.TokenUsage once the stream is over.
//
// The set of wire formats is closed: Parser is a tagged variant over the
// Ollama (NDJSON), OpenAI (SSE) and passthrough states, and every operation
// dispatches with a single switch on the tag.
package usage

import (
	"log/slog"

	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/llm/backend"
)

// Parser accumulates token usage for exactly one response stream.
// It is not safe for concurrent use; the stream tee that owns it is its only
// caller.
type Parser struct {
	backend backend.Type

	// Exactly one of these is set, matching backend. Unknown uses neither.
	ndjson *ndjsonState
	sse    *sseState

	usage     llm.TokenUsage
	finalized bool
	logger    *slog.Logger
}

// New creates the parser for the given backend. Unknown backends get the
// passthrough variant, which observes nothing.
func New(b backend.Type, logger *slog.Logger) *Parser {
	p := &Parser{
		backend: b,
		logger:  logger.With("backend", b.String()),
	}

	switch b {
	case backend.Ollama:
		p.ndjson = &ndjsonState{}
	case backend.OpenAI:
		p.sse = newSSEState()
	case backend.Unknown:
	}

	return p
}

// Backend returns the variant this parser was created for.
func (p *Parser) Backend() backend.Type {
	return p.backend
}

// Feed appends a chunk of the response body and interprets every record it
// completes. Malformed records are discarded; Feed never fails. Calls after
// Finalize are ignored.
func (p *Parser) Feed(chunk []byte) {
	if p.finalized || len(chunk) == 0 {
		return
	}

	switch p.backend {
	case backend.Ollama:
		p.ndjson.feed(chunk, &p.usage, p.logger)
	case backend.OpenAI:
		p.sse.feed(chunk, &p.usage, p.logger)
	case backend.Unknown:
	}
}

// Finalize interprets whatever the stream left buffered and returns the
// accumulated usage. The parser is consumed: later calls return the same
// usage without touching the buffer again.
func (p *Parser) Finalize() llm.TokenUsage {
	if p.finalized {
		return p.usage
	}
	p.finalized = true

	switch p.backend {
	case backend.Ollama:
		p.ndjson.finalize(&p.usage, p.logger)
	case backend.OpenAI:
		p.sse.finalize(&p.usage, p.logger)
	case backend.Unknown:
	}

	return p.usage
}
