package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"dealflow-ingest/schema"
	"dealflow-ingest/utils"
)

// NewPostgresStore opens a connection to PostgreSQL, retrying the initial
// ping, and returns a ready-to-use store. Call Migrate to create tables.
func NewPostgresStore(ctx context.Context, dsn string, retries int, logger *utils.Logger) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: retries, BaseDelay: time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &SQLStore{db: db, d: postgresDialect{}, logger: logger}, nil
}

type postgresDialect struct{}

func (postgresDialect) name() string { return "postgres" }

func (postgresDialect) idColumn() string { return "id BIGSERIAL PRIMARY KEY" }

func (postgresDialect) nowDefault() string { return "NOW()" }

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) quote(ident string) string { return pq.QuoteIdentifier(ident) }

func (postgresDialect) columnType(k schema.Kind) string {
	switch k {
	case schema.KindInteger:
		return "BIGINT"
	case schema.KindNumeric, schema.KindPercentage:
		return "DOUBLE PRECISION"
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindArray:
		return "TEXT[]"
	case schema.KindJSON:
		return "JSONB"
	case schema.KindDate:
		return "DATE"
	case schema.KindTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func (postgresDialect) toDB(k schema.Kind, v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return pq.Array(val), nil
	case json.RawMessage:
		return string(val), nil
	case time.Time:
		if k == schema.KindDate {
			return val.Format("2006-01-02"), nil
		}
		return val, nil
	default:
		return val, nil
	}
}

func (postgresDialect) scanTarget(k schema.Kind) any {
	switch k {
	case schema.KindInteger:
		return new(sql.NullInt64)
	case schema.KindNumeric, schema.KindPercentage:
		return new(sql.NullFloat64)
	case schema.KindBoolean:
		return new(sql.NullBool)
	case schema.KindArray:
		return new(pq.StringArray)
	case schema.KindDate, schema.KindTimestamp:
		return new(sql.NullTime)
	default:
		return new(sql.NullString)
	}
}

func (postgresDialect) fromScan(k schema.Kind, dst any) (any, bool) {
	switch v := dst.(type) {
	case *pq.StringArray:
		if *v == nil {
			return nil, false
		}
		return []string(*v), true
	case *sql.NullString:
		if !v.Valid {
			return nil, false
		}
		if k == schema.KindJSON {
			return json.RawMessage(v.String), true
		}
		return v.String, true
	default:
		return fromNullScalar(dst)
	}
}

// fromNullScalar unwraps the sql.Null* scan targets shared by both dialects.
func fromNullScalar(dst any) (any, bool) {
	switch v := dst.(type) {
	case *sql.NullInt64:
		return v.Int64, v.Valid
	case *sql.NullFloat64:
		return v.Float64, v.Valid
	case *sql.NullBool:
		return v.Bool, v.Valid
	case *sql.NullTime:
		return v.Time.UTC(), v.Valid
	case *sql.NullString:
		return v.String, v.Valid
	default:
		return nil, false
	}
}
