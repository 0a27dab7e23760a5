package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"

	"dealflow-ingest/models"
)

// ParseError reports a malformed input file. It is fatal for the upload.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error on line %d: %s", e.Line, e.Msg)
	}
	return "parse error: " + e.Msg
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a fully parsed file: a header plus its data records.
type Table struct {
	Headers []string
	records [][]string
	lines   []int
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.records) }

// Row builds the i-th RawRow. Short records are padded with empty values.
func (t *Table) Row(i int) models.RawRow {
	values := make([]string, len(t.Headers))
	copy(values, t.records[i])
	return models.RawRow{
		Index:   i,
		Line:    t.lines[i],
		Headers: t.Headers,
		Values:  values,
	}
}

// Rows yields every data row in file order. Each call starts over.
func (t *Table) Rows() iter.Seq[models.RawRow] {
	return func(yield func(models.RawRow) bool) {
		for i := range t.records {
			if !yield(t.Row(i)) {
				return
			}
		}
	}
}

// Sample returns up to n leading rows.
func (t *Table) Sample(n int) []models.RawRow {
	if n > t.Len() {
		n = t.Len()
	}
	out := make([]models.RawRow, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, t.Row(i))
	}
	return out
}

// Records returns the header followed by the raw records, for re-export.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.records)+1)
	out = append(out, t.Headers)
	for i := range t.records {
		out = append(out, t.Row(i).Values)
	}
	return out
}

// Parse reads a comma-delimited file whose first record is the header.
// Header names are kept verbatim apart from a leading byte-order mark.
// Either every row parses or a *ParseError is returned.
func Parse(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("parser: read input: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Msg: "file is empty"}
	}
	if err != nil {
		return nil, toParseError(err)
	}

	t := &Table{Headers: headers}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, toParseError(err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) > len(headers) {
			return nil, &ParseError{
				Line: line,
				Msg:  fmt.Sprintf("record has %d fields but the header has %d", len(rec), len(headers)),
			}
		}
		t.records = append(t.records, rec)
		t.lines = append(t.lines, line)
	}
	return t, nil
}

func toParseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.StartLine, Msg: pe.Err.Error()}
	}
	return &ParseError{Msg: err.Error()}
}
