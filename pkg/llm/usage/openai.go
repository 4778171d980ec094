package usage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/logger"
	"github.com/papercomputeco/tokentap/pkg/sse"
)

var errMissingUsageField = errors.New("usage is missing prompt_tokens or completion_tokens")

// sseState buffers OpenAI-style server-sent events until blocks complete.
type sseState struct {
	framer *sse.Framer
}

func newSSEState() *sseState {
	return &sseState{framer: sse.NewFramer()}
}

func (s *sseState) feed(chunk []byte, usage *llm.TokenUsage, logger *slog.Logger) {
	_, _ = s.framer.Write(chunk)
	s.scan(usage, logger)
}

// finalize rescans for complete blocks, then treats any remaining bytes as a
// last block that lost its trailing blank line.
func (s *sseState) finalize(usage *llm.TokenUsage, logger *slog.Logger) {
	s.scan(usage, logger)

	if block, ok := s.framer.Flush(); ok {
		applySSEBlock(block, usage, logger)
	}
}

func (s *sseState) scan(usage *llm.TokenUsage, logger *slog.Logger) {
	for {
		block, ok := s.framer.Next()
		if !ok {
			return
		}
		applySSEBlock(block, usage, logger)
	}
}

// applySSEBlock applies every data line of one event block. A usage object
// replaces both counts outright.
func applySSEBlock(block []byte, usage *llm.TokenUsage, log *slog.Logger) {
	for _, line := range sse.Lines(block) {
		switch line.Kind {
		case sse.LineDone:
			log.Debug("received [DONE] sentinel")
		case sse.LineData:
			prompt, completion, err := decodeOpenAIUsage(line.Value)
			if err != nil {
				// Non-JSON payload or a usage object missing a count.
				log.Log(context.Background(), logger.LevelTrace, "sse data line carries no usage", "error", err)
				continue
			}
			if prompt == nil {
				continue
			}

			usage.SetPromptTokens(*prompt)
			usage.SetCompletionTokens(*completion)

			log.Debug("parsed sse usage",
				"prompt_tokens", *prompt,
				"completion_tokens", *completion,
			)
		case sse.LineEmpty, sse.LineComment, sse.LineOther:
		}
	}
}

// decodeOpenAIUsage reads usage.prompt_tokens and usage.completion_tokens by
// their exact names. OpenAI-compatible servers send usage once, on the
// terminal event. It returns nil counts without error when the payload is a
// JSON object with no usage.
func decodeOpenAIUsage(data string) (*uint64, *uint64, error) {
	obj, err := parseObject([]byte(data))
	if err != nil {
		return nil, nil, err
	}

	usage := obj.Get("usage")
	if usage.Type == gjson.Null {
		return nil, nil, nil
	}
	if !usage.IsObject() {
		return nil, nil, errors.New("usage is not an object")
	}

	prompt, err := countField(usage, "prompt_tokens")
	if err != nil {
		return nil, nil, err
	}
	completion, err := countField(usage, "completion_tokens")
	if err != nil {
		return nil, nil, err
	}
	if prompt == nil || completion == nil {
		return nil, nil, errMissingUsageField
	}

	return prompt, completion, nil
}
