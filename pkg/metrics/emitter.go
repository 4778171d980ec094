// Package metrics turns finished proxied streams into llm.Metrics records and
// delivers them to pluggable sinks.
package metrics

import (
	"log/slog"
	"time"

	"github.com/papercomputeco/tokentap/pkg/llm"
)

// Sink receives one record per completed stream. Delivery is fire-and-forget:
// a sink must not block the caller for long and has no way to report failure
// back to the emitter.
type Sink interface {
	Deliver(m *llm.Metrics)
}

// Emitter builds the record for a finished stream and hands it to its sink.
type Emitter struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewEmitter creates an emitter delivering to sink.
func NewEmitter(sink Sink, logger *slog.Logger) *Emitter {
	return &Emitter{
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Emit delivers exactly one record for the stream, stamped with the current
// time. Without request data there is nothing to attribute the usage to, so
// emission is skipped and Emit returns false.
func (e *Emitter) Emit(req *llm.RequestData, result llm.StreamResult, elapsed time.Duration) bool {
	if req == nil {
		e.logger.Warn("no request data for finished stream, skipping metrics",
			"backend", result.Backend,
			"outcome", result.Outcome,
		)
		return false
	}

	e.sink.Deliver(llm.NewMetrics(req, result, elapsed, e.now()))
	return true
}
