// Package core provides the business logic for CSV ingestion.
//
// It knows nothing about HTTP: handlers, tests and the server entry point
// all drive it through [Service].
//
// # Upload
//
// [Service.Upload] takes one file through these steps:
//
//  1. Validate the filename (present, ends in .csv)
//  2. Wait for a slot from the [UploadLimiter]
//  3. Spool the body to a temp file, bounded by the size limit
//  4. Parse it with [ParseCSV] (all-or-nothing)
//  5. Create the batch as processing, then write every row and mark the
//     batch completed in one transaction
//
// A failure in step 5 rolls the rows back and leaves the batch failed.
// Parse failures never create a batch.
//
// # Storage
//
// Persistence goes through the [Store] interface. Implementations live in
// internal/database (Postgres), internal/database/duckdb and
// internal/database/memory.
//
// # Errors
//
// Technical errors are mapped to user-facing messages and support codes
// with [MapError]; see error_messages.go for the code table.
package core
