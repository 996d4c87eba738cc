// Package duckdb is an embedded, file-backed core.Store used when no
// PostgreSQL server is configured or reachable.
//
// DuckDB does not allow updating a row that other rows reference through a
// foreign key, and the status column is updated after rows are written, so
// csv_data.upload_id carries no REFERENCES clause here. Timestamps are
// stored as TIMESTAMP in UTC to avoid depending on the ICU extension.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/JonMunkholm/csvingest/internal/core"
)

const schema = `
CREATE SEQUENCE IF NOT EXISTS csv_upload_id_seq START 1;
CREATE SEQUENCE IF NOT EXISTS csv_data_id_seq START 1;

CREATE TABLE IF NOT EXISTS csv_upload (
    id          BIGINT PRIMARY KEY DEFAULT nextval('csv_upload_id_seq'),
    filename    VARCHAR NOT NULL,
    upload_date TIMESTAMP NOT NULL,
    total_rows  INTEGER NOT NULL DEFAULT 0,
    status      VARCHAR NOT NULL DEFAULT 'uploaded'
        CHECK (status IN ('uploaded', 'processing', 'completed', 'failed'))
);

CREATE TABLE IF NOT EXISTS csv_data (
    id         BIGINT PRIMARY KEY DEFAULT nextval('csv_data_id_seq'),
    upload_id  BIGINT NOT NULL,
    row_data   VARCHAR NOT NULL,
    row_number INTEGER NOT NULL,
    UNIQUE (upload_id, row_number)
);
`

// Store implements core.Store on a DuckDB database file.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	// Extensions are never needed; keep startup from reaching the network.
	connStr := path + "?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false"

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	// One writer at a time; DuckDB serializes commits anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping duckdb %q: %w", path, err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply duckdb schema: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

func (s *Store) CreateBatch(ctx context.Context, b core.NewBatch) (core.Batch, error) {
	uploadedAt := b.UploadedAt.UTC()
	var id int64
	err := s.conn.QueryRowContext(ctx,
		`INSERT INTO csv_upload (filename, upload_date, total_rows, status)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		b.FileName, uploadedAt, b.TotalRows, string(b.Status),
	).Scan(&id)
	if err != nil {
		return core.Batch{}, fmt.Errorf("insert batch: %w", err)
	}

	return core.Batch{
		ID:         id,
		FileName:   b.FileName,
		UploadedAt: uploadedAt,
		TotalRows:  b.TotalRows,
		Status:     b.Status,
	}, nil
}

// CompleteBatch inserts every row and marks the batch completed in one
// transaction.
func (s *Store) CompleteBatch(ctx context.Context, batchID int64, rows []core.NewRow) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO csv_data (upload_id, row_data, row_number) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, batchID, r.Data, r.RowNumber); err != nil {
			return fmt.Errorf("insert row %d: %w", r.RowNumber, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE csv_upload SET status = ? WHERE id = ?`, string(core.StatusCompleted), batchID)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrBatchNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) SetBatchStatus(ctx context.Context, batchID int64, status core.UploadStatus) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE csv_upload SET status = ? WHERE id = ?`, string(status), batchID)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n == 0 {
		return core.ErrBatchNotFound
	}
	return nil
}

func (s *Store) ListBatches(ctx context.Context) ([]core.Batch, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, filename, upload_date, total_rows, status
		 FROM csv_upload
		 ORDER BY upload_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []core.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetBatch(ctx context.Context, batchID int64) (core.Batch, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, filename, upload_date, total_rows, status
		 FROM csv_upload WHERE id = ?`, batchID)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Batch{}, core.ErrBatchNotFound
	}
	return b, err
}

func (s *Store) ListRows(ctx context.Context, batchID int64) ([]core.Row, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, upload_id, row_data, row_number
		 FROM csv_data
		 WHERE upload_id = ?
		 ORDER BY row_number ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()

	var out []core.Row
	for rows.Next() {
		var (
			r    core.Row
			data string
		)
		if err := rows.Scan(&r.ID, &r.BatchID, &data, &r.RowNumber); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Data = json.RawMessage(data)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *Store) Info() core.StoreInfo {
	return core.StoreInfo{Driver: "duckdb", File: s.path}
}

func (s *Store) Close() {
	s.conn.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(sc scanner) (core.Batch, error) {
	var (
		b          core.Batch
		status     string
		uploadedAt time.Time
	)
	if err := sc.Scan(&b.ID, &b.FileName, &uploadedAt, &b.TotalRows, &status); err != nil {
		return core.Batch{}, err
	}
	b.UploadedAt = uploadedAt.UTC()
	b.Status = core.UploadStatus(status)
	return b, nil
}
