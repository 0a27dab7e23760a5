package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dealflow-ingest/schema"
	"dealflow-ingest/utils"
)

// NewSQLiteStore opens (or creates) a SQLite database file. Pass ":memory:"
// for a throwaway database.
func NewSQLiteStore(path string, logger *utils.Logger) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// one connection keeps :memory: databases alive and serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: pragma: %w", err)
	}
	return &SQLStore{db: db, d: sqliteDialect{}, logger: logger}, nil
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) idColumn() string { return "id INTEGER PRIMARY KEY AUTOINCREMENT" }

func (sqliteDialect) nowDefault() string { return "CURRENT_TIMESTAMP" }

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqliteDialect) columnType(k schema.Kind) string {
	switch k {
	case schema.KindInteger, schema.KindBoolean:
		return "INTEGER"
	case schema.KindNumeric, schema.KindPercentage:
		return "REAL"
	default:
		// dates, timestamps, arrays and JSON are stored as text
		return "TEXT"
	}
}

func (sqliteDialect) toDB(k schema.Kind, v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case []string:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case json.RawMessage:
		return string(val), nil
	case time.Time:
		if k == schema.KindDate {
			return val.UTC().Format("2006-01-02"), nil
		}
		return val.UTC().Format(time.RFC3339Nano), nil
	default:
		return val, nil
	}
}

func (sqliteDialect) scanTarget(k schema.Kind) any {
	switch k {
	case schema.KindInteger:
		return new(sql.NullInt64)
	case schema.KindNumeric, schema.KindPercentage:
		return new(sql.NullFloat64)
	case schema.KindBoolean:
		return new(sql.NullInt64)
	default:
		return new(sql.NullString)
	}
}

func (sqliteDialect) fromScan(k schema.Kind, dst any) (any, bool) {
	switch k {
	case schema.KindBoolean:
		v := dst.(*sql.NullInt64)
		return v.Int64 != 0, v.Valid
	case schema.KindArray:
		v := dst.(*sql.NullString)
		if !v.Valid {
			return nil, false
		}
		var out []string
		if err := json.Unmarshal([]byte(v.String), &out); err != nil {
			return nil, false
		}
		return out, true
	case schema.KindJSON:
		v := dst.(*sql.NullString)
		if !v.Valid {
			return nil, false
		}
		return json.RawMessage(v.String), true
	case schema.KindDate, schema.KindTimestamp:
		v := dst.(*sql.NullString)
		if !v.Valid {
			return nil, false
		}
		return parseStoredTime(v.String)
	default:
		return fromNullScalar(dst)
	}
}

func parseStoredTime(s string) (any, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	return nil, false
}
