package services

import (
	"fmt"
	"strings"

	"dealflow-ingest/models"
	"dealflow-ingest/schema"
)

// DefaultSource is stamped on records whose file carries no source value.
const DefaultSource = "CSV Import"

// RowValidationError lists the required fields a row could not provide.
type RowValidationError struct {
	Row     int
	Missing []string
}

func (e *RowValidationError) Error() string {
	return fmt.Sprintf("Missing required fields (%s)", strings.Join(e.Missing, ", "))
}

// Validator fills identity defaults and gates rows on required fields.
type Validator struct {
	def *schema.Definition
}

// NewValidator creates a Validator for def.
func NewValidator(def *schema.Definition) *Validator {
	return &Validator{def: def}
}

// Validate resolves the name and source of rec, writing them back, and
// returns a *RowValidationError when the row cannot be accepted.
//
// The name falls back from the mapped value to the raw business_name, name
// or title cell, then to DefaultName; source falls back to the raw source
// cell, then to DefaultSource. The literal defaults only apply to rows that
// carry at least one of name, source or original_url, so a row with none of
// them is rejected.
func (v *Validator) Validate(rec models.Record, row models.RawRow) error {
	name := rec.String(v.def.NameField)
	if name == "" {
		name = firstRaw(row, v.def.NameColumns...)
	}
	source := rec.String(schema.FieldSource)
	if source == "" {
		source = firstRaw(row, string(schema.FieldSource))
	}
	url := rec.String(schema.FieldOriginalURL)

	if name != "" || source != "" || url != "" {
		if name == "" {
			name = v.def.DefaultName
		}
		if source == "" {
			source = DefaultSource
		}
	}

	var missing []string
	if name == "" {
		missing = append(missing, string(v.def.NameField))
	}
	if source == "" && !(v.def.URLSatisfiesSource && url != "") {
		if v.def.URLSatisfiesSource {
			missing = append(missing, string(schema.FieldOriginalURL)+" or "+string(schema.FieldSource))
		} else {
			missing = append(missing, string(schema.FieldSource))
		}
	}
	if len(missing) > 0 {
		return &RowValidationError{Row: row.RowNumber(), Missing: missing}
	}

	rec[v.def.NameField] = name
	rec[schema.FieldSource] = source
	return nil
}

func firstRaw(row models.RawRow, columns ...string) string {
	for _, col := range columns {
		if v, ok := row.Lookup(col); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
