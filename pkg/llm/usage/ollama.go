package usage

import (
	"bytes"
	"log/slog"

	"github.com/papercomputeco/tokentap/pkg/llm"
)

// ollamaChunk is the subset of an Ollama streaming line that carries usage.
// Counts only appear on the final line, the one with done=true.
type ollamaChunk struct {
	Done            bool
	PromptEvalCount *uint64
	EvalCount       *uint64
}

// decodeOllamaLine reads done, prompt_eval_count and eval_count by their
// exact names. Other fields are ignored.
func decodeOllamaLine(line []byte) (ollamaChunk, error) {
	obj, err := parseObject(line)
	if err != nil {
		return ollamaChunk{}, err
	}

	var chunk ollamaChunk
	if chunk.Done, err = boolField(obj, "done"); err != nil {
		return ollamaChunk{}, err
	}
	if chunk.PromptEvalCount, err = countField(obj, "prompt_eval_count"); err != nil {
		return ollamaChunk{}, err
	}
	if chunk.EvalCount, err = countField(obj, "eval_count"); err != nil {
		return ollamaChunk{}, err
	}
	return chunk, nil
}

// ndjsonState buffers Ollama's newline-delimited JSON until lines complete.
type ndjsonState struct {
	buf []byte
}

func (s *ndjsonState) feed(chunk []byte, usage *llm.TokenUsage, logger *slog.Logger) {
	s.buf = append(s.buf, chunk...)

	consumed := 0
	for {
		idx := bytes.IndexByte(s.buf[consumed:], '\n')
		if idx < 0 {
			break
		}

		line := s.buf[consumed : consumed+idx+1]
		consumed += idx + 1
		applyOllamaLine(line, usage, logger)
	}

	if consumed > 0 {
		s.buf = append(s.buf[:0], s.buf[consumed:]...)
	}
}

// finalize makes one decode attempt on an unterminated trailing line.
func (s *ndjsonState) finalize(usage *llm.TokenUsage, logger *slog.Logger) {
	if len(s.buf) == 0 {
		return
	}

	line := s.buf
	s.buf = nil
	applyOllamaLine(line, usage, logger)
}

// applyOllamaLine merges one line into usage. Only done=true lines count, and
// only the fields they actually carry: a missing count never clears one that
// was already observed.
func applyOllamaLine(line []byte, usage *llm.TokenUsage, logger *slog.Logger) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	chunk, err := decodeOllamaLine(line)
	if err != nil {
		logger.Debug("discarding malformed ndjson line",
			"error", err,
			"line", string(line),
		)
		return
	}

	if !chunk.Done {
		return
	}

	if chunk.PromptEvalCount != nil {
		usage.SetPromptTokens(*chunk.PromptEvalCount)
	}
	if chunk.EvalCount != nil {
		usage.SetCompletionTokens(*chunk.EvalCount)
	}

	logger.Debug("parsed final ndjson line",
		"prompt_eval_count", chunk.PromptEvalCount,
		"eval_count", chunk.EvalCount,
	)
}
