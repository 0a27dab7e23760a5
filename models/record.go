package models

import (
	"strings"
	"time"

	"dealflow-ingest/schema"
)

// RawRow holds one parsed data record exactly as it appeared in the file.
// Values missing at the end of a short line are empty strings.
type RawRow struct {
	Index   int // 0-based position among data rows
	Line    int // physical line where the record starts
	Headers []string
	Values  []string
}

// RowNumber is the 1-based row number counting the header row, as a
// spreadsheet would show it.
func (r RawRow) RowNumber() int { return r.Index + 2 }

// Get returns the value under the header named exactly column.
func (r RawRow) Get(column string) (string, bool) {
	for i, h := range r.Headers {
		if h == column {
			return r.value(i), true
		}
	}
	return "", false
}

// Lookup is Get with a case-insensitive, whitespace-trimmed header match.
func (r RawRow) Lookup(column string) (string, bool) {
	for i, h := range r.Headers {
		if equalFoldTrim(h, column) {
			return r.value(i), true
		}
	}
	return "", false
}

// Map returns the row as column -> value. Duplicate headers keep the last value.
func (r RawRow) Map() map[string]string {
	m := make(map[string]string, len(r.Headers))
	for i, h := range r.Headers {
		m[h] = r.value(i)
	}
	return m
}

func (r RawRow) value(i int) string {
	if i < len(r.Values) {
		return r.Values[i]
	}
	return ""
}

// Origin identifies which strategy produced a column mapping.
type Origin string

const (
	OriginAssisted   Origin = "assisted"
	OriginDictionary Origin = "dictionary"
	OriginOverride   Origin = "override"
)

// ColumnMapping assigns one source column to one target field.
type ColumnMapping struct {
	SourceColumn       string       `json:"sourceColumn" yaml:"source"`
	TargetField        schema.Field `json:"targetField" yaml:"target"`
	Confidence         int          `json:"confidence" yaml:"confidence"`
	TransformationType string       `json:"transformationType,omitempty" yaml:"transformation,omitempty"`
	Origin             Origin       `json:"origin" yaml:"origin"`
}

// MappingResult is computed once per file and reused for every row.
type MappingResult struct {
	Schema          schema.ID       `json:"schema"`
	Mappings        []ColumnMapping `json:"mappings"`
	UnmappedColumns []string        `json:"unmappedColumns"`
	Suggestions     []string        `json:"suggestions,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
	// Fallback is set when the assisted strategy failed and the dictionary
	// mapping was used in its place.
	Fallback bool `json:"fallback,omitempty"`
}

// For returns the mapping for an exact source column.
func (m *MappingResult) For(column string) (ColumnMapping, bool) {
	for _, cm := range m.Mappings {
		if cm.SourceColumn == column {
			return cm, true
		}
	}
	return ColumnMapping{}, false
}

// Record is a normalized row keyed by target field.
type Record map[schema.Field]any

// String returns the trimmed text value of f, or "" when absent or not text.
func (r Record) String(f schema.Field) string {
	if s, ok := r[f].(string); ok {
		return s
	}
	return ""
}

// RowError is a rejected data row. Row is the 1-based file line.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// IngestionResult is the output of one pipeline run.
type IngestionResult struct {
	Schema   schema.ID      `json:"schema"`
	Total    int            `json:"total"`
	Accepted []Record       `json:"accepted"`
	Rejected []RowError     `json:"rejected"`
	Mapping  *MappingResult `json:"mapping"`
}

// UploadSummary is the caller-visible outcome of an upload.
type UploadSummary struct {
	RunID      string         `json:"runId"`
	Schema     schema.ID      `json:"schema"`
	Total      int            `json:"total"`
	Accepted   int            `json:"accepted"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Errors     []string       `json:"errors"`
	Warnings   []string       `json:"warnings,omitempty"`
	Mapping    *MappingResult `json:"mapping,omitempty"`
	DryRun     bool           `json:"dryRun,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	Duration   time.Duration  `json:"duration"`

	// Records are the accepted records after in-file dedupe, in file order.
	Records []Record `json:"-"`
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
