package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name: "nil error returns empty",
			err:  nil,
		},
		{
			name:        "no file",
			err:         ErrNoFile,
			wantCode:    "FILE001",
			wantMessage: "No file selected",
		},
		{
			name:        "wrapped invalid type",
			err:         fmt.Errorf("%w: notes.txt", ErrInvalidFileType),
			wantCode:    "FILE002",
			wantMessage: "Invalid file type. Please upload a CSV file.",
		},
		{
			name:     "file too large",
			err:      fmt.Errorf("%w: limit is 10 bytes", ErrFileTooLarge),
			wantCode: "FILE003",
		},
		{
			name:        "empty csv inside processing error",
			err:         &ProcessingError{Err: ErrEmptyFile},
			wantCode:    "CSV001",
			wantMessage: "CSV file is empty or invalid",
		},
		{
			name:     "encoding",
			err:      &ProcessingError{Err: fmt.Errorf("%w: invalid UTF-8 byte at offset 3", ErrInvalidEncoding)},
			wantCode: "CSV002",
		},
		{
			name:     "malformed",
			err:      fmt.Errorf("%w: line 3", ErrMalformedCSV),
			wantCode: "CSV003",
		},
		{
			name:        "not found",
			err:         fmt.Errorf("get batch 9: %w", ErrBatchNotFound),
			wantCode:    "DB003",
			wantMessage: "Upload not found",
		},
		{
			name:     "busy",
			err:      ErrTooManyUploads,
			wantCode: "UPL001",
		},
		{
			name:     "timeout",
			err:      fmt.Errorf("insert rows: %w", context.DeadlineExceeded),
			wantCode: "UPL002",
		},
		{
			name:     "cancelled",
			err:      context.Canceled,
			wantCode: "UPL003",
		},
		{
			name:        "unreachable database",
			err:         errors.New("failed to connect to `host=db`: dial tcp: connection refused"),
			wantCode:    "DB002",
			wantMessage: "Unable to connect to database",
		},
		{
			name:     "persistence",
			err:      &PersistenceError{Op: "insert rows", BatchID: 4, Err: errors.New("disk full")},
			wantCode: "DB001",
		},
		{
			name:     "unknown",
			err:      errors.New("something odd"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
			if tt.err != nil && got.Action == "" {
				t.Error("MapError() action is empty")
			}
		})
	}
}

func TestUploadFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"no file", ErrNoFile, "No file selected"},
		{"invalid type", fmt.Errorf("%w: a.txt", ErrInvalidFileType), "Invalid file type. Please upload a CSV file."},
		{"empty", &ProcessingError{Err: ErrEmptyFile}, "CSV file is empty or invalid"},
		{
			"parse failure keeps cause",
			&ProcessingError{Err: fmt.Errorf("%w: line 3: expected 2 fields, saw 3", ErrMalformedCSV)},
			"Error processing CSV: invalid csv: line 3: expected 2 fields, saw 3",
		},
		{
			"persistence keeps cause",
			&PersistenceError{Op: "insert rows", BatchID: 1, Err: errors.New("disk full")},
			"Database error: disk full",
		},
		{"busy", ErrTooManyUploads, "System is busy processing other uploads"},
		{"unknown", errors.New("boom"), "Upload failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UploadFailureMessage(tt.err); got != tt.want {
				t.Errorf("UploadFailureMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(ErrNoFile)
	for _, part := range []string{"No file selected", "(Code: FILE001)", "Please select a CSV file"} {
		if !strings.Contains(got, part) {
			t.Errorf("FormatUserError() = %q, missing %q", got, part)
		}
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrEmptyFile, true},
		{&PersistenceError{Op: "create batch", Err: errors.New("x")}, true},
		{errors.New("random"), false},
	}

	for _, tt := range tests {
		if got := IsUserFacing(tt.err); got != tt.want {
			t.Errorf("IsUserFacing(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorWrappers_Unwrap(t *testing.T) {
	cause := errors.New("root cause")

	pe := &ProcessingError{Err: cause}
	if !errors.Is(pe, cause) {
		t.Error("ProcessingError does not unwrap to its cause")
	}

	de := &PersistenceError{Op: "insert rows", BatchID: 3, Err: cause}
	if !errors.Is(de, cause) {
		t.Error("PersistenceError does not unwrap to its cause")
	}
	if got, want := de.Error(), "persistence error: insert rows: root cause"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
