// Package storage defines persistence for emitted llm.Metrics records.
package storage

import (
	"context"

	"github.com/papercomputeco/tokentap/pkg/llm"
)

// Driver persists metrics records and answers simple queries over them.
type Driver interface {
	// Put stores a record keyed by its request ID. Returns true if the record
	// was newly inserted, false if a record with that ID already exists, in
	// which case Put is a no-op.
	Put(ctx context.Context, m *llm.Metrics) (bool, error)

	// Get retrieves a record by request ID.
	Get(ctx context.Context, requestID string) (*llm.Metrics, error)

	// List returns records matching q, newest first.
	List(ctx context.Context, q Query) ([]*llm.Metrics, error)

	// Totals aggregates token usage per backend and model.
	Totals(ctx context.Context) ([]Totals, error)

	// Close closes the store and releases any resources.
	Close() error
}

// Query filters List results. Zero values match everything.
type Query struct {
	Model   string
	Backend string
	Outcome llm.Outcome
	Limit   int
	Offset  int
}

// Matches reports whether m passes the query's filters.
func (q Query) Matches(m *llm.Metrics) bool {
	if q.Model != "" && m.Model != q.Model {
		return false
	}
	if q.Backend != "" && m.Backend != q.Backend {
		return false
	}
	if q.Outcome != "" && m.Outcome != q.Outcome {
		return false
	}
	return true
}

// Totals is the aggregate usage for one backend and model pair. Token sums
// only include records that reported the count.
type Totals struct {
	Backend          string `json:"backend"`
	Model            string `json:"model"`
	Requests         int64  `json:"requests"`
	PromptTokens     uint64 `json:"prompt_tokens"`
	CompletionTokens uint64 `json:"completion_tokens"`
}
