package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type CsvUpload struct {
	ID         int64
	Filename   string
	UploadDate time.Time
	TotalRows  int32
	Status     string
}

type CsvDatum struct {
	ID        int64
	UploadID  int64
	RowData   string
	RowNumber int32
}

const insertCsvUpload = `-- name: InsertCsvUpload :one
INSERT INTO csv_upload (filename, upload_date, total_rows, status)
VALUES ($1, $2, $3, $4)
RETURNING id, filename, upload_date, total_rows, status
`

type InsertCsvUploadParams struct {
	Filename   string
	UploadDate time.Time
	TotalRows  int32
	Status     string
}

func (q *Queries) InsertCsvUpload(ctx context.Context, arg InsertCsvUploadParams) (CsvUpload, error) {
	row := q.db.QueryRow(ctx, insertCsvUpload,
		arg.Filename,
		arg.UploadDate,
		arg.TotalRows,
		arg.Status,
	)
	var i CsvUpload
	err := row.Scan(
		&i.ID,
		&i.Filename,
		&i.UploadDate,
		&i.TotalRows,
		&i.Status,
	)
	return i, err
}

const setCsvUploadStatus = `-- name: SetCsvUploadStatus :execrows
UPDATE csv_upload SET status = $2 WHERE id = $1
`

func (q *Queries) SetCsvUploadStatus(ctx context.Context, id int64, status string) (int64, error) {
	result, err := q.db.Exec(ctx, setCsvUploadStatus, id, status)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getCsvUpload = `-- name: GetCsvUpload :one
SELECT id, filename, upload_date, total_rows, status
FROM csv_upload
WHERE id = $1
`

func (q *Queries) GetCsvUpload(ctx context.Context, id int64) (CsvUpload, error) {
	row := q.db.QueryRow(ctx, getCsvUpload, id)
	var i CsvUpload
	err := row.Scan(
		&i.ID,
		&i.Filename,
		&i.UploadDate,
		&i.TotalRows,
		&i.Status,
	)
	return i, err
}

const listCsvUploads = `-- name: ListCsvUploads :many
SELECT id, filename, upload_date, total_rows, status
FROM csv_upload
ORDER BY upload_date DESC, id DESC
`

func (q *Queries) ListCsvUploads(ctx context.Context) ([]CsvUpload, error) {
	rows, err := q.db.Query(ctx, listCsvUploads)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CsvUpload
	for rows.Next() {
		var i CsvUpload
		if err := rows.Scan(
			&i.ID,
			&i.Filename,
			&i.UploadDate,
			&i.TotalRows,
			&i.Status,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCsvData = `-- name: ListCsvData :many
SELECT id, upload_id, row_data, row_number
FROM csv_data
WHERE upload_id = $1
ORDER BY row_number ASC
`

func (q *Queries) ListCsvData(ctx context.Context, uploadID int64) ([]CsvDatum, error) {
	rows, err := q.db.Query(ctx, listCsvData, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CsvDatum
	for rows.Next() {
		var i CsvDatum
		if err := rows.Scan(
			&i.ID,
			&i.UploadID,
			&i.RowData,
			&i.RowNumber,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type CopyCsvDataParams struct {
	UploadID  int64
	RowData   string
	RowNumber int32
}

// iteratorForCopyCsvData implements pgx.CopyFromSource.
type iteratorForCopyCsvData struct {
	rows                 []CopyCsvDataParams
	skippedFirstNextCall bool
}

func (r *iteratorForCopyCsvData) Next() bool {
	if len(r.rows) == 0 {
		return false
	}
	if !r.skippedFirstNextCall {
		r.skippedFirstNextCall = true
		return true
	}
	r.rows = r.rows[1:]
	return len(r.rows) > 0
}

func (r iteratorForCopyCsvData) Values() ([]interface{}, error) {
	return []interface{}{
		r.rows[0].UploadID,
		r.rows[0].RowData,
		r.rows[0].RowNumber,
	}, nil
}

func (r iteratorForCopyCsvData) Err() error {
	return nil
}

// name: CopyCsvData :copyfrom
func (q *Queries) CopyCsvData(ctx context.Context, arg []CopyCsvDataParams) (int64, error) {
	return q.db.CopyFrom(ctx, pgx.Identifier{"csv_data"}, []string{"upload_id", "row_data", "row_number"}, &iteratorForCopyCsvData{rows: arg})
}
