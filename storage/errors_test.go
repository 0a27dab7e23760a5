package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
)

func TestClassifyPQError(t *testing.T) {
	raw := &pq.Error{Code: "42703", Message: `column "colour" of relation "deals" does not exist`, Hint: "check it"}
	err := classify(fmt.Errorf("exec: %w", raw))

	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("classify returned %T, want *StoreError", err)
	}
	if se.Code != "42703" || se.Hint != "check it" {
		t.Errorf("StoreError = %+v", se)
	}
	if !errors.Is(err, raw) {
		t.Error("StoreError should unwrap to the driver error")
	}
	if classify(se) != se {
		t.Error("classify should pass StoreErrors through")
	}
	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}

func TestFriendlyMessage(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{"pg undefined table", &StoreError{Message: `relation "deals" does not exist`, Code: "42P01"}, "The destination table does not exist"},
		{"pg undefined column", &StoreError{Message: `column "x" does not exist`, Code: "42703"}, "A mapped column does not exist"},
		{"pg bad syntax", &StoreError{Message: "invalid input syntax for type bigint", Code: "22P02"}, "A value has the wrong type"},
		{"sqlite no column", errors.New("table deals has no column named colour"), "A mapped column does not exist"},
		{"sqlite not null", errors.New("NOT NULL constraint failed: deals.source"), "A required column was empty"},
		{"pg missing unique", &StoreError{Message: "there is no unique or exclusion constraint matching the ON CONFLICT specification", Code: "42P10"}, "The conflict keys have no unique index"},
		{"unknown", errors.New("connection reset by peer"), "Database error: connection reset by peer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FriendlyMessage(tt.err)
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("FriendlyMessage = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
	if FriendlyMessage(nil) != "" {
		t.Error("FriendlyMessage(nil) should be empty")
	}
}

func TestStoreErrorString(t *testing.T) {
	err := &StoreError{Message: "boom", Details: "Key (x)=(1)", Code: "23505"}
	if got, want := err.Error(), "boom (Key (x)=(1)) [23505]"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
