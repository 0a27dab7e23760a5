package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// StoreError is a structured persistence failure.
type StoreError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Code    string `json:"code,omitempty"`
	cause   error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Details != "" {
		b.WriteString(" (")
		b.WriteString(e.Details)
		b.WriteString(")")
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.cause }

// classify converts driver errors into *StoreError, leaving existing
// StoreErrors untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &StoreError{
			Message: pqErr.Message,
			Details: pqErr.Detail,
			Hint:    pqErr.Hint,
			Code:    string(pqErr.Code),
			cause:   err,
		}
	}
	return &StoreError{Message: err.Error(), cause: err}
}

// friendlyPatterns map driver errors (PostgreSQL codes, or PostgreSQL and
// SQLite phrasing) to advice.
var friendlyPatterns = []struct {
	code    string
	needles []string
	advice  string
}{
	{"42P01", []string{"no such table"},
		"The destination table does not exist. Run the migrate command"},
	{"42703", []string{"column does not exist", "of relation", "has no column named", "no such column"},
		"A mapped column does not exist in the database table. Re-check the field mappings"},
	{"22P02", []string{"invalid input syntax", "datatype mismatch"},
		"A value has the wrong type for its column. Check numeric, date and boolean mappings"},
	{"23502", []string{"null value in column", "not null constraint failed"},
		"A required column was empty. Make sure a name column is mapped"},
	{"42P10", []string{"no unique or exclusion constraint", "does not match any primary key or unique constraint"},
		"The conflict keys have no unique index. Run the migrate command"},
	{"21000", []string{"cannot affect row a second time"},
		"The file contains the same record twice"},
}

// FriendlyMessage explains a store failure in terms of the upload. The
// original message is kept after the advice.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StoreError
	msg := err.Error()
	code := ""
	if errors.As(err, &se) {
		msg = se.Error()
		code = se.Code
	}
	lower := strings.ToLower(msg)
	for _, p := range friendlyPatterns {
		if code != "" && code == p.code {
			return fmt.Sprintf("%s: %s", p.advice, msg)
		}
	}
	for _, p := range friendlyPatterns {
		for _, n := range p.needles {
			if strings.Contains(lower, n) {
				return fmt.Sprintf("%s: %s", p.advice, msg)
			}
		}
	}
	return "Database error: " + msg
}
