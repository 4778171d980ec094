package eventstream

import "context"

// Publisher publishes metrics events to an event stream backend.
type Publisher interface {
	PublishMetrics(ctx context.Context, event *MetricsRecordedEvent) error
	Close() error
}
