package core

import (
	"context"
	"io"
	"time"

	"github.com/goccy/go-json"
)

// UploadStatus is the lifecycle state of an upload batch.
type UploadStatus string

const (
	StatusUploaded   UploadStatus = "uploaded"
	StatusProcessing UploadStatus = "processing"
	StatusCompleted  UploadStatus = "completed"
	StatusFailed     UploadStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s UploadStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s UploadStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Batch is one uploaded file (table csv_upload).
type Batch struct {
	ID         int64        `json:"id"`
	FileName   string       `json:"filename"`
	UploadedAt time.Time    `json:"upload_date"`
	TotalRows  int          `json:"total_rows"`
	Status     UploadStatus `json:"status"`
}

// Row is one persisted CSV line (table csv_data). Data holds the
// JSON object text exactly as stored so column order survives.
type Row struct {
	ID        int64           `json:"id"`
	BatchID   int64           `json:"upload_id"`
	Data      json.RawMessage `json:"row_data"`
	RowNumber int             `json:"row_number"`
}

// NewBatch carries the fields needed to create a batch.
type NewBatch struct {
	FileName   string
	TotalRows  int
	Status     UploadStatus
	UploadedAt time.Time
}

// NewRow is a row ready to be written. RowNumber is 1-based.
type NewRow struct {
	RowNumber int
	Data      string
}

// BatchDetail is a batch together with all of its rows in row order.
type BatchDetail struct {
	Batch Batch
	Rows  []Row
}

// StoreInfo describes the active persistence backend for diagnostics.
// It never contains credentials.
type StoreInfo struct {
	Driver string `json:"type"`
	Host   string `json:"host,omitempty"`
	File   string `json:"file,omitempty"`
}

// Store is the persistence contract used by Service.
//
// CompleteBatch must write all rows and flip the batch to completed in a
// single transaction: either everything is visible afterwards or nothing is.
// GetBatch returns ErrBatchNotFound for unknown ids.
type Store interface {
	CreateBatch(ctx context.Context, b NewBatch) (Batch, error)
	CompleteBatch(ctx context.Context, batchID int64, rows []NewRow) error
	SetBatchStatus(ctx context.Context, batchID int64, status UploadStatus) error
	ListBatches(ctx context.Context) ([]Batch, error)
	GetBatch(ctx context.Context, batchID int64) (Batch, error)
	ListRows(ctx context.Context, batchID int64) ([]Row, error)
	Ping(ctx context.Context) error
	Info() StoreInfo
	Close()
}

// UploadRequest is a single file submitted for ingestion.
type UploadRequest struct {
	FileName string
	Body     io.Reader
}

// UploadResult is returned for a successfully ingested file.
type UploadResult struct {
	BatchID   int64
	FileName  string
	TotalRows int
	Duration  time.Duration
}
