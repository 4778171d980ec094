// Package header provides header filtering for the tokentap proxy.
//
// This proxy sits between a client and an upstream LLM backend like so:
//
//	Client <--> Proxy <--> Upstream LLM Backend
//
// The proxy is transparent: bodies pass through byte for byte, so headers
// describing the body (Content-Type, Content-Encoding) travel with it. Only
// headers owned by a single leg of the connection are dropped.
package header

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between proxy connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// skipRequest is the set of request headers (client --> proxy --> upstream)
// that are not forwarded to the upstream backend.
var skipRequest = map[string]struct{}{
	// The Host header names the proxy, not the upstream. Go's http.Transport
	// derives the correct one from the upstream URL.
	"Host": {},
}

// skipResponse is the set of upstream response headers (client <-- proxy <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// Hop-by-hop headers: fasthttp manages chunked transfer encoding for the
	// client-facing response independently.
	"Transfer-Encoding": {},

	// fasthttp writes Content-Length itself from the body stream size the
	// proxy passes along.
	"Content-Length": {},
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that the proxy should not forward
// to the upstream backend. Repeated headers keep every value.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if _, skip := skipRequest[http.CanonicalHeaderKey(k)]; !skip {
			req.Header.Add(k, string(value))
		}
	})
}

// SetClientResponseHeaders copies response headers from the upstream
// http.Response to the Fiber context, filtering headers that the proxy should
// not forward back down to the client. Repeated headers keep every value.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, values := range resp.Header {
		if _, skip := skipResponse[k]; skip {
			continue
		}
		for _, v := range values {
			c.Response().Header.Add(k, v)
		}
	}
}
