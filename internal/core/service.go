package core

import (
	"fmt"
	"os"
	"time"
)

// Default upload options, mirroring the config defaults.
const (
	DefaultMaxFileSize   int64 = 16 << 20
	DefaultUploadTimeout       = 2 * time.Minute
	DefaultTempDir             = "uploads"
)

// Options tunes the upload workflow.
type Options struct {
	TempDir       string        // spool directory, created if missing
	MaxFileSize   int64         // bytes; larger bodies fail with ErrFileTooLarge
	UploadTimeout time.Duration // bound on one upload from spool to commit
	MaxConcurrent int           // upload limiter slots
	MaxWait       time.Duration // how long an upload waits for a slot
}

func (o Options) withDefaults() Options {
	if o.TempDir == "" {
		o.TempDir = DefaultTempDir
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = DefaultUploadTimeout
	}
	return o
}

// Service provides the ingestion and query operations on top of a Store.
type Service struct {
	store   Store
	limiter *UploadLimiter
	opts    Options
	now     func() time.Time
}

// NewService creates a Service. The caller owns store and closes it.
func NewService(store Store, opts Options) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("new service: nil store")
	}
	opts = opts.withDefaults()

	if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", opts.TempDir, err)
	}

	return &Service{
		store:   store,
		limiter: NewUploadLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Limiter exposes the upload limiter for status reporting and shutdown drain.
func (s *Service) Limiter() *UploadLimiter {
	return s.limiter
}

// StoreInfo describes the active backend.
func (s *Service) StoreInfo() StoreInfo {
	return s.store.Info()
}

// MaxFileSize returns the configured upload size limit in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.opts.MaxFileSize
}

// TempDir returns the spool directory.
func (s *Service) TempDir() string {
	return s.opts.TempDir
}
