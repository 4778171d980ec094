// Package worker provides an asynchronous worker pool that persists emitted
// metrics records through a storage.Driver and publishes them to an
// eventstream.Publisher.
//
// The pool decouples storage and publishing from the proxy's HTTP hot path so
// that the client-proxy-upstream interaction is fully transparent.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/tokentap/pkg/eventstream"
	"github.com/papercomputeco/tokentap/pkg/eventstream/nop"
	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/logger"
	"github.com/papercomputeco/tokentap/pkg/storage"
)

var (
	defaultNumWorkers     uint = 3
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 5 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Metrics *llm.Metrics
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting records.
	Driver storage.Driver

	// Publisher receives an event for every newly stored record.
	// Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds each publish call (defaults to 5s).
	PublishTimeout time.Duration

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool processes metrics jobs asynchronously via a worker pool.
// It is a metrics.Sink.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed so Enqueue never sends on a closed queue
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("worker pool requires a storage driver")
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Deliver enqueues m, dropping it if the queue is full.
func (p *Pool) Deliver(m *llm.Metrics) {
	p.Enqueue(Job{Metrics: m})
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	if job.Metrics == nil {
		p.logger.Warn("job not queued, no metrics record")
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed, job dropped",
			"request_id", job.Metrics.RequestID,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"request_id", job.Metrics.RequestID,
			"model", job.Metrics.Model,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"request_id", job.Metrics.RequestID,
			"model", job.Metrics.Model,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the proxy HTTP server has stopped.
// Close is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob stores the record and, when it is new, publishes it.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	isNew, err := p.config.Driver.Put(ctx, job.Metrics)
	if err != nil {
		p.logger.Error("async metrics storage failed",
			"request_id", job.Metrics.RequestID,
			"error", err,
		)
		return
	}

	if !isNew {
		p.logger.Debug("metrics record already stored",
			"request_id", job.Metrics.RequestID,
		)
		return
	}

	p.logger.Debug("metrics record stored",
		"request_id", job.Metrics.RequestID,
		"model", job.Metrics.Model,
	)

	p.publish(ctx, job.Metrics)
}

// publish errors are logged but not returned; the record is already stored.
func (p *Pool) publish(ctx context.Context, m *llm.Metrics) {
	ctx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	event := eventstream.NewMetricsRecordedEvent(m, time.Now())
	if err := p.config.Publisher.PublishMetrics(ctx, event); err != nil {
		p.logger.Warn("failed to publish metrics event",
			"request_id", m.RequestID,
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	p.logger.Debug("published metrics event",
		"request_id", m.RequestID,
		"event_id", event.EventID,
	)
}
