// Package inmemory provides a map-backed storage driver, used when no
// database is configured and in tests.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards records
	mu sync.RWMutex

	// records is keyed by request ID
	records map[string]*llm.Metrics
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*llm.Metrics),
	}
}

// Put stores a record. Returns false if the request ID was already stored.
func (d *Driver) Put(_ context.Context, m *llm.Metrics) (bool, error) {
	if m == nil {
		return false, storage.ErrNilRecord
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.records[m.RequestID]; ok {
		return false, nil
	}

	stored := *m
	d.records[m.RequestID] = &stored
	return true, nil
}

// Get retrieves a record by request ID.
func (d *Driver) Get(_ context.Context, requestID string) (*llm.Metrics, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.records[requestID]
	if !ok {
		return nil, storage.NotFoundError{RequestID: requestID}
	}

	out := *m
	return &out, nil
}

// List returns records matching q, newest first.
func (d *Driver) List(_ context.Context, q storage.Query) ([]*llm.Metrics, error) {
	d.mu.RLock()
	matched := make([]*llm.Metrics, 0, len(d.records))
	for _, m := range d.records {
		if q.Matches(m) {
			out := *m
			matched = append(matched, &out)
		}
	}
	d.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].RequestID < matched[j].RequestID
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []*llm.Metrics{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	return matched, nil
}

// Totals aggregates usage per backend and model, ordered by backend then model.
func (d *Driver) Totals(_ context.Context) ([]storage.Totals, error) {
	type key struct{ backend, model string }

	d.mu.RLock()
	byKey := make(map[key]*storage.Totals)
	for _, m := range d.records {
		k := key{m.Backend, m.Model}
		t, ok := byKey[k]
		if !ok {
			t = &storage.Totals{Backend: m.Backend, Model: m.Model}
			byKey[k] = t
		}
		t.Requests++
		if m.PromptTokens != nil {
			t.PromptTokens += *m.PromptTokens
		}
		if m.CompletionTokens != nil {
			t.CompletionTokens += *m.CompletionTokens
		}
	}
	d.mu.RUnlock()

	totals := make([]storage.Totals, 0, len(byKey))
	for _, t := range byKey {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Backend != totals[j].Backend {
			return totals[i].Backend < totals[j].Backend
		}
		return totals[i].Model < totals[j].Model
	})

	return totals, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
