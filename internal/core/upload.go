package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvingest/internal/logging"
	"github.com/JonMunkholm/csvingest/internal/metrics"
	"github.com/JonMunkholm/csvingest/internal/validation"
)

// compensateTimeout bounds the status update that marks a batch failed.
const compensateTimeout = 5 * time.Second

// uploadForm is the validated view of an UploadRequest.
type uploadForm struct {
	FileName string `validate:"required,csvfile"`
}

// Upload ingests one CSV file: validate, spool, parse, then persist the
// batch and its rows. Rows and the completed status are committed together;
// if that fails the batch is left in state failed and a *PersistenceError
// is returned. Parse failures return *ProcessingError and create nothing.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	start := time.Now()
	log := logging.WithFields(ctx, "filename", req.FileName)

	if err := validateUpload(req); err != nil {
		log.Info("upload rejected", "error", err)
		metrics.RecordUpload(metrics.OutcomeRejected, 0, 0)
		return UploadResult{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		log.Warn("upload slot unavailable", "error", err, "active", s.limiter.ActiveCount())
		metrics.RecordUpload(metrics.OutcomeBusy, 0, 0)
		return UploadResult{}, err
	}
	defer s.limiter.Release()
	metrics.UploadsInFlight.Inc()
	defer metrics.UploadsInFlight.Dec()

	ctx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
	defer cancel()

	name := SecureFilename(req.FileName)
	if name == "" {
		name = "upload.csv"
	}

	data, err := s.spool(req.Body)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			log.Info("upload rejected", "error", err)
			metrics.RecordUpload(metrics.OutcomeRejected, 0, 0)
		} else {
			log.Error("spool failed", "error", err)
			metrics.RecordUpload(metrics.OutcomeFailed, 0, 0)
		}
		return UploadResult{}, err
	}

	records, err := ParseCSV(data)
	if err != nil {
		log.Info("csv rejected", "error", err, "bytes", len(data))
		metrics.RecordUpload(metrics.OutcomeRejected, 0, 0)
		return UploadResult{}, &ProcessingError{Err: err}
	}

	rows, err := EncodeRows(records)
	if err != nil {
		metrics.RecordUpload(metrics.OutcomeRejected, 0, 0)
		return UploadResult{}, &ProcessingError{Err: err}
	}

	batchID, err := s.persist(ctx, name, rows)
	if err != nil {
		log.Error("upload failed", "error", err, "upload_id", batchID, "rows", len(rows))
		metrics.RecordUpload(metrics.OutcomeFailed, 0, 0)
		return UploadResult{}, err
	}

	elapsed := time.Since(start)
	log.Info("upload completed",
		"upload_id", batchID,
		"rows", len(rows),
		"duration_ms", elapsed.Milliseconds(),
	)
	metrics.RecordUpload(metrics.OutcomeCompleted, len(rows), elapsed)

	return UploadResult{
		BatchID:   batchID,
		FileName:  name,
		TotalRows: len(rows),
		Duration:  elapsed,
	}, nil
}

func validateUpload(req UploadRequest) error {
	if req.Body == nil {
		return ErrNoFile
	}
	verr := validation.ValidateStruct(&uploadForm{FileName: req.FileName})
	if verr == nil {
		return nil
	}
	if verr.HasTag("required") {
		return ErrNoFile
	}
	return fmt.Errorf("%w: %s", ErrInvalidFileType, req.FileName)
}

// spool copies body to a uniquely named file under the temp dir and reads it
// back. The file is removed before returning, whatever the outcome. The
// name is derived from a UUID only, so client filenames never reach the
// filesystem. Failures other than ErrFileTooLarge wrap ErrSpoolFailed.
func (s *Service) spool(body io.Reader) ([]byte, error) {
	path := filepath.Join(s.opts.TempDir, uuid.NewString()+".csv")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: create spool file: %w", ErrSpoolFailed, err)
	}
	defer os.Remove(path)

	n, err := io.Copy(f, io.LimitReader(body, s.opts.MaxFileSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: write spool file: %w", ErrSpoolFailed, err)
	}
	if n > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.opts.MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read spool file: %w", ErrSpoolFailed, err)
	}
	return data, nil
}

// persist creates the batch and commits its rows. The returned id is
// non-zero whenever a batch record exists, including on failure.
func (s *Service) persist(ctx context.Context, name string, rows []NewRow) (int64, error) {
	opStart := time.Now()
	batch, err := s.store.CreateBatch(ctx, NewBatch{
		FileName:   name,
		TotalRows:  len(rows),
		Status:     StatusProcessing,
		UploadedAt: s.now(),
	})
	metrics.RecordStoreOp("create_batch", time.Since(opStart), err)
	if err != nil {
		return 0, &PersistenceError{Op: "create batch", Err: err}
	}

	opStart = time.Now()
	err = s.store.CompleteBatch(ctx, batch.ID, rows)
	metrics.RecordStoreOp("complete_batch", time.Since(opStart), err)
	if err == nil {
		return batch.ID, nil
	}

	s.markFailed(ctx, batch.ID)
	return batch.ID, &PersistenceError{Op: "insert rows", BatchID: batch.ID, Err: err}
}

// markFailed records the failed status even when ctx is already done. A
// batch that already reached a terminal state is left alone: a commit whose
// acknowledgement was lost may still have completed it.
func (s *Service) markFailed(ctx context.Context, batchID int64) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	log := logging.FromContext(ctx).With("upload_id", batchID)

	if batch, err := s.store.GetBatch(cctx, batchID); err == nil && batch.Status.Terminal() {
		log.Warn("batch already terminal, not marking failed", "status", batch.Status)
		return
	}

	opStart := time.Now()
	err := s.store.SetBatchStatus(cctx, batchID, StatusFailed)
	metrics.RecordStoreOp("set_status", time.Since(opStart), err)
	if err != nil {
		log.Error("could not mark batch failed", "error", err)
	}
}
