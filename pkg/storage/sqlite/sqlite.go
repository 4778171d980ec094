// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/tokentap/pkg/storage/sqlstore"
)

const schema = `CREATE TABLE IF NOT EXISTS llm_metrics (
	request_id        TEXT PRIMARY KEY,
	path              TEXT NOT NULL,
	backend           TEXT NOT NULL,
	model             TEXT NOT NULL,
	prompt            TEXT NOT NULL,
	prompt_tokens     INTEGER,
	completion_tokens INTEGER,
	latency_ms        INTEGER NOT NULL,
	status_code       INTEGER NOT NULL,
	outcome           TEXT NOT NULL,
	bytes_streamed    INTEGER NOT NULL,
	captured_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS llm_metrics_model_idx ON llm_metrics (model);
CREATE INDEX IF NOT EXISTS llm_metrics_captured_at_idx ON llm_metrics (captured_at);`

// Driver implements storage.Driver using SQLite.
type Driver struct {
	*sqlstore.Driver
}

// NewDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	drv, err := sqlstore.New(ctx, db, dialect.SQLite, schema)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Driver: drv}, nil
}
