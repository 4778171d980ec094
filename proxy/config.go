package proxy

import (
	"time"

	"github.com/papercomputeco/tokentap/pkg/eventstream"
)

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:3000")
	ListenAddr string

	// UpstreamHost is the host every /proxy/{port}/... request is forwarded
	// to (e.g., "127.0.0.1"). The port comes from the request path.
	UpstreamHost string

	// UpstreamTimeout bounds a whole upstream exchange, including reading the
	// streamed body. Zero disables the limit.
	UpstreamTimeout time.Duration

	// ChannelCapacity is the number of frames buffered between the upstream
	// reader and the client writer of each stream.
	ChannelCapacity int

	// ReadSize is the size of each upstream body read.
	ReadSize int

	// MetricsEnabled exposes Prometheus metrics on GET /metrics.
	MetricsEnabled bool

	// Publisher receives an event for every stored metrics record.
	// Only used when a storage driver is configured.
	Publisher eventstream.Publisher

	// NumWorkers and QueueSize size the storage worker pool.
	NumWorkers uint
	QueueSize  uint
}
