package metrics

import (
	"encoding/json"
	"log/slog"

	"github.com/papercomputeco/tokentap/pkg/llm"
)

// Multi fans a record out to every sink in order.
type Multi []Sink

// Deliver implements Sink.
func (m Multi) Deliver(record *llm.Metrics) {
	for _, s := range m {
		s.Deliver(record)
	}
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(m *llm.Metrics)

// Deliver implements Sink.
func (f SinkFunc) Deliver(m *llm.Metrics) {
	f(m)
}

// LogSink writes each record as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver implements Sink.
func (s *LogSink) Deliver(m *llm.Metrics) {
	attrs := []any{
		"request_id", m.RequestID,
		"path", m.Path,
		"backend", m.Backend,
		"model", m.Model,
		"prompt_tokens", m.PromptTokens,
		"completion_tokens", m.CompletionTokens,
		"latency_ms", m.LatencyMs,
		"status", m.StatusCode,
		"outcome", m.Outcome,
		"bytes", m.BytesStreamed,
	}
	if total, ok := m.Usage().Total(); ok {
		attrs = append(attrs, "total_tokens", total)
	}

	raw, err := json.Marshal(m)
	if err != nil {
		s.logger.Error("could not encode metrics record", "error", err)
	} else {
		attrs = append(attrs, "record", string(raw))
	}

	s.logger.Info("llm request complete", attrs...)
}
