package storage

import (
	"context"

	"dealflow-ingest/models"
	"dealflow-ingest/schema"
)

// UpsertOptions controls conflict handling. With no ConflictKeys rows are
// plain inserts.
type UpsertOptions struct {
	ConflictKeys     []schema.Field
	IgnoreDuplicates bool
	BatchSize        int
}

// UpsertResult reports how many rows the store says it wrote.
type UpsertResult struct {
	Affected int64
}

// Store is the interface any persistence backend must satisfy.
type Store interface {
	Migrate(ctx context.Context) error
	Upsert(ctx context.Context, def *schema.Definition, records []models.Record, opts UpsertOptions) (UpsertResult, error)
	FetchAll(ctx context.Context, def *schema.Definition) ([]models.Record, error)
	Close() error
}
