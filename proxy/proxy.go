// Package proxy provides an intercepting LLM reverse proxy that records token
// usage from streamed responses without buffering them.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/llm/backend"
	"github.com/papercomputeco/tokentap/pkg/llm/usage"
	"github.com/papercomputeco/tokentap/pkg/metrics"
	"github.com/papercomputeco/tokentap/pkg/storage"
	"github.com/papercomputeco/tokentap/proxy/header"
	"github.com/papercomputeco/tokentap/proxy/tee"
	"github.com/papercomputeco/tokentap/proxy/worker"
)

const (
	requestDataKey = "tokentap.request_data"

	// maxRequestBody allows large multimodal prompts through.
	maxRequestBody = 64 << 20
)

// errorResponse is the JSON body of errors the proxy itself produces.
type errorResponse struct {
	Error string `json:"error"`
}

// Proxy is a transparent LLM inference proxy. Each request under
// /proxy/{port}/ is forwarded to the upstream host on that port, its response
// is streamed back through a tee, and one metrics record is emitted per
// completed stream.
type Proxy struct {
	config        Config
	workerPool    *worker.Pool
	collector     *metrics.Collector
	emitter       *metrics.Emitter
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
	now           func() time.Time

	// streams tracks running tee goroutines so Close can wait for their
	// records to be emitted.
	streams sync.WaitGroup
}

// New creates a new Proxy.
// The driver is optional: when set, records are persisted and published
// asynchronously through a worker pool.
func New(config Config, driver storage.Driver, logger *slog.Logger) (*Proxy, error) {
	if config.UpstreamHost == "" {
		return nil, errors.New("upstream host is required")
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		BodyLimit:             maxRequestBody,
	})

	sinks := metrics.Multi{metrics.NewLogSink(logger)}

	p := &Proxy{
		config:        config,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient:    newUpstreamClient(config.UpstreamTimeout),
		now:           time.Now,
	}

	if config.MetricsEnabled {
		p.collector = metrics.NewCollector(nil)
		sinks = append(sinks, p.collector)
	}

	if driver != nil {
		wp, err := worker.NewPool(&worker.Config{
			Driver:     driver,
			Publisher:  config.Publisher,
			NumWorkers: config.NumWorkers,
			QueueSize:  config.QueueSize,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create worker pool: %w", err)
		}
		p.workerPool = wp
		sinks = append(sinks, wp)
	}

	p.emitter = metrics.NewEmitter(sinks, logger)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	if p.collector != nil {
		app.Get("/metrics", adaptor.HTTPHandler(p.collector.Handler()))
	}

	// Intercept, then forward. Every method is proxied.
	app.All("/proxy/:port/*", p.captureRequest, p.handleProxy)

	return p, nil
}

// newUpstreamClient builds the single client shared by all requests.
// Compression is left to the client and upstream so bodies pass through
// untouched.
func newUpstreamClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = true

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"upstream_host", p.config.UpstreamHost,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"upstream_host", p.config.UpstreamHost,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the server, waits for in-flight streams to
// emit their records, then drains the worker pool.
func (p *Proxy) Close() error {
	err := p.server.Shutdown()

	p.streams.Wait()
	if p.workerPool != nil {
		p.workerPool.Close()
	}

	return err
}

// captureRequest records what the emitter needs about the request before it
// is forwarded: model, prompt and a request ID.
func (p *Proxy) captureRequest(c *fiber.Ctx) error {
	reqData := llm.ParseRequestData(bytes.Clone(c.Body()))
	reqData.RequestID = uuid.NewString()
	reqData.Path = c.Path()

	p.logger.Debug("intercepted request",
		"request_id", reqData.RequestID,
		"method", c.Method(),
		"path", reqData.Path,
		"model", reqData.Model,
	)

	c.Locals(requestDataKey, reqData)
	return c.Next()
}

// handleProxy forwards the request upstream and streams the response back
// through a tee that feeds the backend's usage parser.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	port, err := strconv.ParseUint(c.Params("port"), 10, 16)
	if err != nil || port == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid upstream port"})
	}

	reqData, _ := c.Locals(requestDataKey).(*llm.RequestData)

	upstreamURL := p.upstreamURL(c, port)

	var body []byte
	if reqData != nil {
		body = reqData.Raw
	} else {
		body = bytes.Clone(c.Body())
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the tee goroutine keeps
	// reading the upstream body long after that.
	httpReq, err := http.NewRequestWithContext(context.Background(), c.Method(), upstreamURL, bytes.NewReader(body))
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err, "url", upstreamURL)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding request to upstream",
		"method", c.Method(),
		"url", upstreamURL,
	)

	// Latency runs from issuing the upstream request to the end of the stream.
	start := p.now()
	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err, "url", upstreamURL)
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "upstream request failed"})
	}

	kind := backend.Classify(httpResp.Header.Get("Content-Type"))
	t, stream := tee.New(usage.New(kind, p.logger), tee.Options{
		ChannelCapacity: p.config.ChannelCapacity,
		ReadSize:        p.config.ReadSize,
		Logger:          p.logger,
	})

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Status(httpResp.StatusCode)

	p.streams.Add(1)
	go p.runTee(t, httpResp, reqData, start)

	// fasthttp closes the stream when the response is done or the client
	// goes away, which is how the tee learns to stop.
	c.Context().Response.SetBodyStream(stream, int(httpResp.ContentLength))
	return nil
}

// runTee drives one stream to completion and emits its record.
func (p *Proxy) runTee(t *tee.Tee, httpResp *http.Response, reqData *llm.RequestData, start time.Time) {
	defer p.streams.Done()
	defer httpResp.Body.Close()

	result := t.Run(httpResp.Body)
	result.StatusCode = httpResp.StatusCode
	elapsed := p.now().Sub(start)

	p.logger.Debug("stream finished",
		"backend", result.Backend,
		"outcome", result.Outcome,
		"bytes", result.Bytes,
		"duration", elapsed,
	)

	p.emitter.Emit(reqData, result, elapsed)
}

// upstreamURL maps /proxy/{port}/{rest}?{query} onto the upstream host.
func (p *Proxy) upstreamURL(c *fiber.Ctx, port uint64) string {
	target := "http://" + net.JoinHostPort(p.config.UpstreamHost, strconv.FormatUint(port, 10)) + "/" + c.Params("*")
	if query := c.Request().URI().QueryString(); len(query) > 0 {
		target += "?" + string(query)
	}
	return target
}
