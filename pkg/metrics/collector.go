package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/tokentap/pkg/llm"
)

const namespace = "tokentap"

const (
	// DefaultModelLimit is the number of distinct model labels a collector
	// tracks before folding new models into OtherModel.
	DefaultModelLimit = 100

	// OtherModel labels records whose model arrived after the limit was hit.
	OtherModel = "other"
)

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithModelLimit sets how many distinct models get their own label.
func WithModelLimit(n int) CollectorOption {
	return func(c *Collector) {
		c.modelLimit = n
	}
}

// Collector is a Sink that aggregates records into Prometheus metrics.
// Model names come from client requests, so only the first modelLimit
// distinct models are labelled by name:
//   - tokentap_requests_total{backend,model,outcome}
//   - tokentap_tokens_total{backend,model,type}
//   - tokentap_request_duration_seconds{backend,model}
//   - tokentap_streamed_bytes_total{backend}
//   - tokentap_usage_missing_total{backend}
type Collector struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	tokens   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	noUsage  *prometheus.CounterVec

	modelLimit int
	mu         sync.Mutex
	models     map[string]struct{}
}

// NewCollector creates a collector registered on registry. A nil registry gets
// a fresh one, so collectors never collide in tests.
func NewCollector(registry *prometheus.Registry, opts ...CollectorOption) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry:   registry,
		modelLimit: DefaultModelLimit,
		models:     make(map[string]struct{}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Proxied LLM response streams by how they ended",
			},
			[]string{"backend", "model", "outcome"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Tokens reported by upstream backends",
			},
			[]string{"backend", "model", "type"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time from request receipt to end of the response stream",
				// LLM streams run from well under a second to several minutes.
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"backend", "model"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "streamed_bytes_total",
				Help:      "Response bytes relayed from upstream",
			},
			[]string{"backend"},
		),
		noUsage: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "usage_missing_total",
				Help:      "Streams that ended without any token usage",
			},
			[]string{"backend"},
		),
	}

	for _, opt := range opts {
		opt(c)
	}

	registry.MustRegister(c.requests, c.tokens, c.duration, c.bytes, c.noUsage)
	return c
}

// Deliver implements Sink.
func (c *Collector) Deliver(m *llm.Metrics) {
	model := c.modelLabel(m.Model)

	c.requests.WithLabelValues(m.Backend, model, string(m.Outcome)).Inc()
	c.duration.WithLabelValues(m.Backend, model).Observe(float64(m.LatencyMs) / 1000)
	c.bytes.WithLabelValues(m.Backend).Add(float64(m.BytesStreamed))

	if m.Usage().Empty() {
		c.noUsage.WithLabelValues(m.Backend).Inc()
		return
	}
	if m.PromptTokens != nil {
		c.tokens.WithLabelValues(m.Backend, model, "prompt").Add(float64(*m.PromptTokens))
	}
	if m.CompletionTokens != nil {
		c.tokens.WithLabelValues(m.Backend, model, "completion").Add(float64(*m.CompletionTokens))
	}
}

// modelLabel returns model while it is tracked or there is room to track it,
// otherwise OtherModel.
func (c *Collector) modelLabel(model string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.models[model]; ok {
		return model
	}
	if len(c.models) >= c.modelLimit {
		return OtherModel
	}

	c.models[model] = struct{}{}
	return model
}

// Registry returns the registry the collector reports to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
