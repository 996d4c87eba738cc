package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// utf8BOM is the byte order mark some spreadsheet exports put in front of the header.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Record is one CSV data line as an ordered mapping from header name to
// cell value. Columns is shared by every record of a file.
type Record struct {
	Columns []string
	Values  []string
}

// Get returns the value for column name and whether the column exists.
func (r Record) Get(name string) (string, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return "", false
}

// MarshalJSON encodes the record as a JSON object with keys in header order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseCSV decodes data as UTF-8 CSV text whose first line is the header.
// Parsing is all-or-nothing: any error rejects the whole file.
func ParseCSV(data []byte) ([]Record, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	if off := invalidUTF8Offset(data); off >= 0 {
		return nil, fmt.Errorf("%w: invalid UTF-8 byte at offset %d", ErrInvalidEncoding, off)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	columns := normalizeHeader(header)

	var records []Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}

		if len(row) > len(columns) {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d: expected %d fields, saw %d",
				ErrMalformedCSV, line, len(columns), len(row))
		}

		values := make([]string, len(columns))
		copy(values, row)
		records = append(records, Record{Columns: columns, Values: values})
	}

	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	return records, nil
}

// normalizeHeader names blank columns "Unnamed: <i>" and suffixes repeated
// names with ".1", ".2", ... so every cell keeps a distinct key.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	used := make(map[string]bool, len(header))
	dupes := make(map[string]int)

	for i, name := range header {
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		candidate := name
		for used[candidate] {
			dupes[name]++
			candidate = name + "." + strconv.Itoa(dupes[name])
		}
		used[candidate] = true
		columns[i] = candidate
	}

	return columns
}

// invalidUTF8Offset returns the offset of the first invalid UTF-8 byte, or -1.
func invalidUTF8Offset(data []byte) int {
	if utf8.Valid(data) {
		return -1
	}
	for off := 0; off < len(data); {
		r, size := utf8.DecodeRune(data[off:])
		if r == utf8.RuneError && size == 1 {
			return off
		}
		off += size
	}
	return -1
}

// EncodeRows serializes records to the row payloads written by the store,
// numbering them from 1 in input order.
func EncodeRows(records []Record) ([]NewRow, error) {
	rows := make([]NewRow, len(records))
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i+1, err)
		}
		rows[i] = NewRow{RowNumber: i + 1, Data: string(data)}
	}
	return rows, nil
}
