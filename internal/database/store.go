package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvingest/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// PoolConfig carries the connection pool settings from config.DatabaseConfig.
type PoolConfig struct {
	URL               string
	MaxConns          int
	MinConns          int
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

// Store implements core.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	q    *Queries
	host string
}

// Open creates the pool and verifies connectivity within ConnectTimeout.
func Open(ctx context.Context, cfg PoolConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewStore(pool), nil
}

// NewStore wraps an existing pool. The store takes ownership of it.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		q:    New(pool),
		host: pool.Config().ConnConfig.Host,
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) CreateBatch(ctx context.Context, b core.NewBatch) (core.Batch, error) {
	row, err := s.q.InsertCsvUpload(ctx, InsertCsvUploadParams{
		Filename:   b.FileName,
		UploadDate: b.UploadedAt.UTC(),
		TotalRows:  int32(b.TotalRows),
		Status:     string(b.Status),
	})
	if err != nil {
		return core.Batch{}, describePgError(err)
	}
	return toBatch(row), nil
}

// CompleteBatch copies all rows and marks the batch completed in one
// transaction. Any failure rolls the whole thing back.
func (s *Store) CompleteBatch(ctx context.Context, batchID int64, rows []core.NewRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op after commit

	txQueries := s.q.WithTx(tx)

	params := make([]CopyCsvDataParams, len(rows))
	for i, r := range rows {
		params[i] = CopyCsvDataParams{
			UploadID:  batchID,
			RowData:   r.Data,
			RowNumber: int32(r.RowNumber),
		}
	}

	n, err := txQueries.CopyCsvData(ctx, params)
	if err != nil {
		return fmt.Errorf("copy rows: %w", describePgError(err))
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy rows: wrote %d of %d", n, len(rows))
	}

	affected, err := txQueries.SetCsvUploadStatus(ctx, batchID, string(core.StatusCompleted))
	if err != nil {
		return fmt.Errorf("set status: %w", describePgError(err))
	}
	if affected == 0 {
		return core.ErrBatchNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) SetBatchStatus(ctx context.Context, batchID int64, status core.UploadStatus) error {
	affected, err := s.q.SetCsvUploadStatus(ctx, batchID, string(status))
	if err != nil {
		return describePgError(err)
	}
	if affected == 0 {
		return core.ErrBatchNotFound
	}
	return nil
}

func (s *Store) ListBatches(ctx context.Context) ([]core.Batch, error) {
	rows, err := s.q.ListCsvUploads(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Batch, len(rows))
	for i, r := range rows {
		out[i] = toBatch(r)
	}
	return out, nil
}

func (s *Store) GetBatch(ctx context.Context, batchID int64) (core.Batch, error) {
	row, err := s.q.GetCsvUpload(ctx, batchID)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Batch{}, core.ErrBatchNotFound
	}
	if err != nil {
		return core.Batch{}, err
	}
	return toBatch(row), nil
}

func (s *Store) ListRows(ctx context.Context, batchID int64) ([]core.Row, error) {
	rows, err := s.q.ListCsvData(ctx, batchID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Row, len(rows))
	for i, r := range rows {
		out[i] = core.Row{
			ID:        r.ID,
			BatchID:   r.UploadID,
			Data:      json.RawMessage(r.RowData),
			RowNumber: int(r.RowNumber),
		}
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Info() core.StoreInfo {
	return core.StoreInfo{Driver: "postgres", Host: s.host}
}

func (s *Store) Close() {
	s.pool.Close()
}

func toBatch(r CsvUpload) core.Batch {
	return core.Batch{
		ID:         r.ID,
		FileName:   r.Filename,
		UploadedAt: r.UploadDate.UTC(),
		TotalRows:  int(r.TotalRows),
		Status:     core.UploadStatus(r.Status),
	}
}

// describePgError adds the constraint name to server-side errors so the
// log line says which rule was broken.
func describePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505", "23503", "23514":
		return fmt.Errorf("%w (constraint %s)", err, pgErr.ConstraintName)
	case "22001":
		return fmt.Errorf("%w (value too long for column %s)", err, pgErr.ColumnName)
	}
	return err
}
