// Package eventstream defines the transport-neutral events tokentap publishes
// once a metrics record has been handled.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/tokentap/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMetricsRecorded is emitted after a proxied stream's metrics
	// record has been persisted.
	EventTypeMetricsRecorded = "tokentap.metrics.recorded"
)

// MetricsRecordedEvent wraps one metrics record for publication.
type MetricsRecordedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Metrics       llm.Metrics `json:"metrics"`
}

// EventSource identifies where the record originated.
type EventSource struct {
	Backend string `json:"backend"`
	Path    string `json:"path,omitempty"`
}

// NewMetricsRecordedEvent builds a v1 event for m with a fresh event ID.
func NewMetricsRecordedEvent(m *llm.Metrics, emittedAt time.Time) *MetricsRecordedEvent {
	return &MetricsRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMetricsRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     emittedAt.UTC(),
		Source: EventSource{
			Backend: m.Backend,
			Path:    m.Path,
		},
		Metrics: *m,
	}
}
