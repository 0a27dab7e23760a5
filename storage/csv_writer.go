package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"dealflow-ingest/models"
	"dealflow-ingest/schema"
)

// CSVContentType is the media type of everything CSVWriter produces.
const CSVContentType = "text/csv"

// CSVWriter writes header-then-rows CSV to a file or stream.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	closer io.Closer
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path.
// Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}
	return &CSVWriter{closer: f, writer: csv.NewWriter(f)}, nil
}

// NewCSVStreamWriter writes to w; Close flushes but does not close w.
func NewCSVStreamWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{writer: csv.NewWriter(w)}
}

// WriteTable writes raw rows as they were previewed: the first row is the
// header.
func (c *CSVWriter) WriteTable(rows [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writer.WriteAll(rows); err != nil {
		return fmt.Errorf("csv: write rows: %w", err)
	}
	return nil
}

// WriteRecords writes normalized records under the schema's column order.
func (c *CSVWriter) WriteRecords(def *schema.Definition, records []models.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cols := def.Columns()
	header := make([]string, len(cols))
	for i, f := range cols {
		header[i] = string(f)
	}
	if err := c.writer.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	row := make([]string, len(cols))
	for _, rec := range records {
		for i, f := range cols {
			k, _ := def.Kind(f)
			row[i] = FormatValue(k, rec[f])
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file, if any.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// FormatValue renders a record value as a CSV cell.
func FormatValue(k schema.Kind, v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []string:
		return strings.Join(val, ";")
	case json.RawMessage:
		return string(val)
	case time.Time:
		if k == schema.KindDate {
			return val.Format("2006-01-02")
		}
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
