package llm

import "time"

// Outcome describes how a proxied response stream terminated.
type Outcome string

const (
	// OutcomeCompleted means the upstream body was read to EOF.
	OutcomeCompleted Outcome = "completed"

	// OutcomeClientDisconnected means the client went away mid-stream and
	// upstream reading stopped.
	OutcomeClientDisconnected Outcome = "client_disconnected"

	// OutcomeUpstreamError means reading the upstream body failed mid-stream.
	OutcomeUpstreamError Outcome = "upstream_error"
)

// StreamResult is what a completed stream tee reports back.
type StreamResult struct {
	// Backend is the wire format the stream was parsed as.
	Backend string

	// Usage is the finalized token usage.
	Usage TokenUsage

	// Outcome is how the stream ended.
	Outcome Outcome

	// Bytes is the number of upstream bytes observed by the parser.
	Bytes int64

	// StatusCode is the upstream HTTP status code.
	StatusCode int

	// Err is the upstream read error, set only for OutcomeUpstreamError.
	Err error
}

// Metrics is the single record emitted for each completed proxied stream.
type Metrics struct {
	RequestID        string    `json:"request_id"`
	Path             string    `json:"path"`
	Backend          string    `json:"backend"`
	Model            string    `json:"model"`
	Prompt           string    `json:"prompt"`
	PromptTokens     *uint64   `json:"prompt_tokens"`
	CompletionTokens *uint64   `json:"completion_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	StatusCode       int       `json:"status_code"`
	Outcome          Outcome   `json:"outcome"`
	BytesStreamed    int64     `json:"bytes_streamed"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewMetrics merges request metadata with a finished stream into a record
// stamped with the given capture time.
func NewMetrics(req *RequestData, result StreamResult, elapsed time.Duration, capturedAt time.Time) *Metrics {
	return &Metrics{
		RequestID:        req.RequestID,
		Path:             req.Path,
		Backend:          result.Backend,
		Model:            req.Model,
		Prompt:           req.Prompt,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		LatencyMs:        elapsed.Milliseconds(),
		StatusCode:       result.StatusCode,
		Outcome:          result.Outcome,
		BytesStreamed:    result.Bytes,
		Timestamp:        capturedAt,
	}
}

// Usage returns the record's token counts.
func (m *Metrics) Usage() TokenUsage {
	return TokenUsage{
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
	}
}
