// Package sqlstore implements storage.Driver with ent's dialect-aware SQL
// builders. The sqlite and postgres drivers embed it and differ only in
// connection setup and schema DDL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/storage"
)

const table = "llm_metrics"

var columns = []string{
	"request_id",
	"path",
	"backend",
	"model",
	"prompt",
	"prompt_tokens",
	"completion_tokens",
	"latency_ms",
	"status_code",
	"outcome",
	"bytes_streamed",
	"captured_at",
}

// Driver implements storage.Driver for a SQL database.
type Driver struct {
	drv *entsql.Driver
}

// New wraps db with ent's SQL driver for the given dialect (dialect.SQLite or
// dialect.Postgres) and creates the schema with the given DDL.
func New(ctx context.Context, db *sql.DB, dialectName, schema string) (*Driver, error) {
	drv := entsql.OpenDB(dialectName, db)

	if err := drv.Exec(ctx, schema, []any{}, nil); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{drv: drv}, nil
}

// DB returns the underlying database handle.
func (d *Driver) DB() *sql.DB {
	return d.drv.DB()
}

// Put inserts a record, ignoring duplicates by request ID.
func (d *Driver) Put(ctx context.Context, m *llm.Metrics) (bool, error) {
	if m == nil {
		return false, storage.ErrNilRecord
	}

	query, args := d.builder().Insert(table).
		Columns(columns...).
		Values(
			m.RequestID,
			m.Path,
			m.Backend,
			m.Model,
			m.Prompt,
			nullCount(m.PromptTokens),
			nullCount(m.CompletionTokens),
			m.LatencyMs,
			m.StatusCode,
			string(m.Outcome),
			m.BytesStreamed,
			m.Timestamp.UTC(),
		).
		OnConflict(
			entsql.ConflictColumns("request_id"),
			entsql.DoNothing(),
		).
		Query()

	var res sql.Result
	if err := d.drv.Exec(ctx, query, args, &res); err != nil {
		return false, fmt.Errorf("failed to insert metrics record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// Get retrieves a record by request ID.
func (d *Driver) Get(ctx context.Context, requestID string) (*llm.Metrics, error) {
	query, args := d.selectRecords().
		Where(entsql.EQ("request_id", requestID)).
		Query()

	records, err := d.queryRecords(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics record: %w", err)
	}
	if len(records) == 0 {
		return nil, storage.NotFoundError{RequestID: requestID}
	}
	return records[0], nil
}

// List returns records matching q, newest first.
func (d *Driver) List(ctx context.Context, q storage.Query) ([]*llm.Metrics, error) {
	selector := d.selectRecords()
	if q.Model != "" {
		selector.Where(entsql.EQ("model", q.Model))
	}
	if q.Backend != "" {
		selector.Where(entsql.EQ("backend", q.Backend))
	}
	if q.Outcome != "" {
		selector.Where(entsql.EQ("outcome", string(q.Outcome)))
	}
	selector.OrderBy(entsql.Desc("captured_at"), entsql.Asc("request_id"))
	if q.Limit > 0 {
		selector.Limit(q.Limit)
	}
	if q.Offset > 0 {
		selector.Offset(q.Offset)
	}

	query, args := selector.Query()
	records, err := d.queryRecords(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics records: %w", err)
	}
	return records, nil
}

// Totals aggregates usage per backend and model.
func (d *Driver) Totals(ctx context.Context) ([]storage.Totals, error) {
	b := d.builder()
	query, args := b.Select(
		"backend",
		"model",
		entsql.Count("*"),
		"CAST(COALESCE(SUM(prompt_tokens), 0) AS BIGINT)",
		"CAST(COALESCE(SUM(completion_tokens), 0) AS BIGINT)",
	).
		From(b.Table(table)).
		GroupBy("backend", "model").
		OrderBy("backend", "model").
		Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics records: %w", err)
	}
	defer rows.Close()

	totals := []storage.Totals{}
	for rows.Next() {
		var (
			t                  storage.Totals
			prompt, completion int64
		)
		if err := rows.Scan(&t.Backend, &t.Model, &t.Requests, &prompt, &completion); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		t.PromptTokens = uint64(prompt)
		t.CompletionTokens = uint64(completion)
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate totals: %w", err)
	}

	return totals, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.drv.Close()
}

func (d *Driver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.drv.Dialect())
}

func (d *Driver) selectRecords() *entsql.Selector {
	b := d.builder()
	return b.Select(columns...).From(b.Table(table))
}

func (d *Driver) queryRecords(ctx context.Context, query string, args []any) ([]*llm.Metrics, error) {
	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*llm.Metrics{}
	for rows.Next() {
		m, err := scanRecord(&rows)
		if err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*llm.Metrics, error) {
	var (
		m                  llm.Metrics
		outcome            string
		prompt, completion sql.NullInt64
		capturedAt         time.Time
	)

	err := s.Scan(
		&m.RequestID,
		&m.Path,
		&m.Backend,
		&m.Model,
		&m.Prompt,
		&prompt,
		&completion,
		&m.LatencyMs,
		&m.StatusCode,
		&outcome,
		&m.BytesStreamed,
		&capturedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Outcome = llm.Outcome(outcome)
	m.PromptTokens = countFromNull(prompt)
	m.CompletionTokens = countFromNull(completion)
	m.Timestamp = capturedAt.UTC()
	return &m, nil
}

func nullCount(n *uint64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func countFromNull(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(n.Int64)
	return &v
}
