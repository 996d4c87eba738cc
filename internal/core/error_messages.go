// Error Codes Reference
//
// Every error that reaches a client carries a short code so that a report
// like "I got CSV002" can be matched to a log line.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - No file: no file part or an empty filename
//	FILE002 - Invalid type: extension is not .csv
//	FILE003 - Too large: body exceeds UPLOAD_MAX_FILE_SIZE
//
// # CSV Errors (CSV001-CSV099)
//
//	CSV001 - Empty: no header, or a header without data rows
//	CSV002 - Encoding: bytes are not valid UTF-8
//	CSV003 - Malformed: a line has more fields than the header, or quoting is broken
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Persistence: a write for the batch failed and the batch was marked failed
//	DB002 - Unavailable: the database could not be reached
//	DB003 - Not found: the requested upload does not exist
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy: all upload slots are taken
//	UPL002 - Timeout: the upload did not finish within UPLOAD_TIMEOUT
//	UPL003 - Cancelled: the client went away
//	UPL004 - Spool: the upload could not be written to the temp dir
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: check the server log for the request id

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoFile is returned when the request carries no file or an empty filename.
	ErrNoFile = errors.New("no file provided")

	// ErrInvalidFileType is returned when the filename does not end in .csv.
	ErrInvalidFileType = errors.New("invalid file type")

	// ErrFileTooLarge is returned when the upload exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned when the CSV has no header or no data rows.
	ErrEmptyFile = errors.New("file is empty or invalid")

	// ErrInvalidEncoding is returned when the file is not valid UTF-8.
	ErrInvalidEncoding = errors.New("encoding error")

	// ErrMalformedCSV is returned when the CSV cannot be tokenized.
	ErrMalformedCSV = errors.New("invalid csv")

	// ErrSpoolFailed is returned when the upload cannot be staged in the
	// temp dir. It is a server fault; the wrapped cause is for logs only.
	ErrSpoolFailed = errors.New("could not stage upload")

	// ErrBatchNotFound is returned by stores and queries for unknown batch ids.
	ErrBatchNotFound = errors.New("upload not found")
)

// ProcessingError wraps a failure to read or parse the uploaded file.
// No batch exists when this error is returned.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string {
	return "processing error: " + e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed database write. BatchID is set when the
// batch record had already been created (and was then marked failed).
type PersistenceError struct {
	Op      string
	BatchID int64
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// UserMessage provides user-friendly error information with a support code.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorKind ties a sentinel to its user message.
type errorKind struct {
	target error
	msg    UserMessage
}

// errorKinds is checked in order with errors.Is; the first match wins.
var errorKinds = []errorKind{
	{ErrNoFile, UserMessage{
		Message: "No file selected",
		Action:  "Please select a CSV file to upload",
		Code:    "FILE001",
	}},
	{ErrInvalidFileType, UserMessage{
		Message: "Invalid file type. Please upload a CSV file.",
		Action:  "Only files ending in .csv are accepted",
		Code:    "FILE002",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE003",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "CSV file is empty or invalid",
		Action:  "Please upload a CSV file with a header and at least one data row",
		Code:    "CSV001",
	}},
	{ErrInvalidEncoding, UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save the file as UTF-8",
		Code:    "CSV002",
	}},
	{ErrMalformedCSV, UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure every line has no more fields than the header",
		Code:    "CSV003",
	}},
	{ErrBatchNotFound, UserMessage{
		Message: "Upload not found",
		Action:  "Verify the upload id",
		Code:    "DB003",
	}},
	{ErrTooManyUploads, UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}},
	{ErrSpoolFailed, UserMessage{
		Message: "Upload could not be stored for processing",
		Action:  "Please try again later",
		Code:    "UPL004",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Upload timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "UPL002",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL003",
	}},
}

// connectionPatterns mark driver errors that mean the database is unreachable.
var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"failed to connect",
	"closed pool",
}

var unavailableMessage = UserMessage{
	Message: "Unable to connect to database",
	Action:  "Please try again in a few moments",
	Code:    "DB002",
}

var persistenceMessage = UserMessage{
	Message: "Upload could not be saved",
	Action:  "The upload was marked failed; please try again",
	Code:    "DB001",
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message. Sentinels are
// matched with errors.Is; unreachable-database errors are matched by
// pattern since drivers do not export a common sentinel.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range connectionPatterns {
		if strings.Contains(errStr, p) {
			return unavailableMessage
		}
	}

	var pe *PersistenceError
	if errors.As(err, &pe) {
		return persistenceMessage
	}

	return defaultMessage
}

// UploadFailureMessage renders the message returned by POST /upload.
// Parse and persistence failures include their cause, as callers of the
// upload endpoint rely on seeing it.
func UploadFailureMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrEmptyFile) {
		return MapError(err).Message
	}

	var pe *ProcessingError
	if errors.As(err, &pe) {
		return "Error processing CSV: " + pe.Err.Error()
	}

	var de *PersistenceError
	if errors.As(err, &de) {
		return "Database error: " + de.Err.Error()
	}

	msg := MapError(err)
	if msg.Code == defaultMessage.Code {
		return "Upload failed: " + err.Error()
	}
	return msg.Message
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
