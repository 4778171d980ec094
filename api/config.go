// Package api provides a read-only HTTP API over stored metrics records.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:3001")
	ListenAddr string
}
