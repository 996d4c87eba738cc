package core

import (
	"context"
	"fmt"
)

// ListBatches returns every batch, newest first.
func (s *Service) ListBatches(ctx context.Context) ([]Batch, error) {
	batches, err := s.store.ListBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	if batches == nil {
		batches = []Batch{}
	}
	return batches, nil
}

// GetBatchDetail returns a batch and its rows ordered by row number.
// Unknown ids yield ErrBatchNotFound.
func (s *Service) GetBatchDetail(ctx context.Context, batchID int64) (BatchDetail, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return BatchDetail{}, fmt.Errorf("get batch %d: %w", batchID, err)
	}

	rows, err := s.store.ListRows(ctx, batchID)
	if err != nil {
		return BatchDetail{}, fmt.Errorf("list rows for batch %d: %w", batchID, err)
	}
	if rows == nil {
		rows = []Row{}
	}

	return BatchDetail{Batch: batch, Rows: rows}, nil
}
