// Package memory is an in-process core.Store. Data lives only as long as
// the process; it backs DB_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/JonMunkholm/csvingest/internal/core"
)

// Store keeps batches and rows in maps guarded by one mutex. CompleteBatch
// swaps in the full row slice under the lock, so readers never see a
// partially written batch.
type Store struct {
	mu        sync.RWMutex
	batches   map[int64]core.Batch
	rows      map[int64][]core.Row
	nextBatch int64
	nextRow   int64
	closed    bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		batches: make(map[int64]core.Batch),
		rows:    make(map[int64][]core.Row),
	}
}

var errClosed = errors.New("memory store: closed pool")

func (s *Store) CreateBatch(ctx context.Context, b core.NewBatch) (core.Batch, error) {
	if err := ctx.Err(); err != nil {
		return core.Batch{}, err
	}
	if !b.Status.Valid() {
		return core.Batch{}, fmt.Errorf("invalid status %q", b.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.Batch{}, errClosed
	}

	s.nextBatch++
	batch := core.Batch{
		ID:         s.nextBatch,
		FileName:   b.FileName,
		UploadedAt: b.UploadedAt.UTC(),
		TotalRows:  b.TotalRows,
		Status:     b.Status,
	}
	s.batches[batch.ID] = batch
	return batch, nil
}

func (s *Store) CompleteBatch(ctx context.Context, batchID int64, rows []core.NewRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Build outside the lock; nothing is visible until the swap below.
	built := make([]core.Row, len(rows))
	for i, r := range rows {
		if !json.Valid([]byte(r.Data)) {
			return fmt.Errorf("row %d: invalid json payload", r.RowNumber)
		}
		built[i] = core.Row{
			BatchID:   batchID,
			Data:      json.RawMessage(r.Data),
			RowNumber: r.RowNumber,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	batch, ok := s.batches[batchID]
	if !ok {
		return core.ErrBatchNotFound
	}
	for i := range built {
		s.nextRow++
		built[i].ID = s.nextRow
	}
	s.rows[batchID] = built
	batch.Status = core.StatusCompleted
	s.batches[batchID] = batch
	return nil
}

func (s *Store) SetBatchStatus(ctx context.Context, batchID int64, status core.UploadStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	batch, ok := s.batches[batchID]
	if !ok {
		return core.ErrBatchNotFound
	}
	batch.Status = status
	s.batches[batchID] = batch
	return nil
}

func (s *Store) ListBatches(ctx context.Context) ([]core.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, errClosed
	}
	out := make([]core.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, b)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetBatch(ctx context.Context, batchID int64) (core.Batch, error) {
	if err := ctx.Err(); err != nil {
		return core.Batch{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.Batch{}, errClosed
	}
	batch, ok := s.batches[batchID]
	if !ok {
		return core.Batch{}, core.ErrBatchNotFound
	}
	return batch, nil
}

// ListRows returns a copy of the batch's rows; they are stored in row order.
func (s *Store) ListRows(ctx context.Context, batchID int64) ([]core.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	rows := s.rows[batchID]
	out := make([]core.Row, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

func (s *Store) Info() core.StoreInfo {
	return core.StoreInfo{Driver: "memory"}
}

func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
