package storage

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"dealflow-ingest/models"
	"dealflow-ingest/schema"
	"dealflow-ingest/utils"
)

// DefaultBatchSize bounds the rows sent in one INSERT statement.
const DefaultBatchSize = 200

// dialect isolates the SQL differences between PostgreSQL and SQLite.
type dialect interface {
	name() string
	idColumn() string
	columnType(k schema.Kind) string
	nowDefault() string
	placeholder(n int) string
	quote(ident string) string
	toDB(k schema.Kind, v any) (any, error)
	scanTarget(k schema.Kind) any
	fromScan(k schema.Kind, dst any) (any, bool)
}

// SQLStore persists normalized records to a database/sql backend.
type SQLStore struct {
	db     *sql.DB
	d      dialect
	logger *utils.Logger
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Migrate creates every schema's table and its conflict-key unique index.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, def := range schema.All() {
		for _, stmt := range createTableSQL(s.d, def) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: migrate %s: %w", s.d.name(), def.Table, classify(err))
			}
		}
		s.logger.Debug("[%s] Table %s ready", s.d.name(), def.Table)
	}
	return nil
}

func createTableSQL(d dialect, def *schema.Definition) []string {
	cols := []string{d.idColumn()}
	for _, f := range def.Columns() {
		k, _ := def.Kind(f)
		col := d.quote(string(f)) + " " + d.columnType(k)
		switch {
		case f == def.NameField || f == schema.FieldSource:
			col += " NOT NULL"
		case f == schema.FieldCreatedAt || f == schema.FieldUpdatedAt:
			col += " NOT NULL DEFAULT " + d.nowDefault()
		}
		cols = append(cols, col)
	}
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.quote(def.Table), strings.Join(cols, ",\n\t")),
	}
	if len(def.ConflictKeys) > 0 {
		// older databases carry an unconditional index under the old name
		stmts = append(stmts,
			fmt.Sprintf("DROP INDEX IF EXISTS %s", d.quote("uq_"+def.Table+"_natural_key")),
			fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)%s",
				d.quote("uq_"+def.Table+"_identity"), d.quote(def.Table), quoteFields(d, def.ConflictKeys), keyPredicate(d, def)))
	}
	return stmts
}

// keyPredicate restricts the conflict-key index to rows with a natural key.
// The same predicate must appear on the ON CONFLICT target so both dialects
// infer the partial index.
func keyPredicate(d dialect, def *schema.Definition) string {
	if !def.NameKeyed() {
		return ""
	}
	return fmt.Sprintf(" WHERE %s <> '%s'",
		d.quote(string(def.NameField)), strings.ReplaceAll(def.DefaultName, "'", "''"))
}

// Upsert writes records in one transaction, batching rows that share the
// same column set. Any failure rolls the whole call back and is returned
// as a *StoreError.
func (s *SQLStore) Upsert(ctx context.Context, def *schema.Definition, records []models.Record, opts UpsertOptions) (UpsertResult, error) {
	var res UpsertResult
	if len(records) == 0 {
		return res, nil
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, group := range groupByColumns(def, records) {
		for i := 0; i < len(group.records); i += batchSize {
			end := i + batchSize
			if end > len(group.records) {
				end = len(group.records)
			}
			n, err := s.insertBatch(ctx, tx, def, group.columns, group.records[i:end], opts)
			if err != nil {
				return UpsertResult{}, err
			}
			res.Affected += n
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, classify(err)
	}
	s.logger.Info("[%s] Upserted %d records into %s (%d rows affected)",
		s.d.name(), len(records), def.Table, res.Affected)
	return res, nil
}

func (s *SQLStore) insertBatch(ctx context.Context, tx *sql.Tx, def *schema.Definition, cols []schema.Field, batch []models.Record, opts UpsertOptions) (int64, error) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*len(cols))

	n := 0
	for _, rec := range batch {
		ph := make([]string, len(cols))
		for j, c := range cols {
			k, _ := def.Kind(c)
			v, err := s.d.toDB(k, rec[c])
			if err != nil {
				return 0, &StoreError{Message: fmt.Sprintf("encode %s: %v", c, err)}
			}
			n++
			ph[j] = s.d.placeholder(n)
			valueArgs = append(valueArgs, v)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s%s",
		s.d.quote(def.Table), quoteFields(s.d, cols), strings.Join(valueStrings, ","),
		conflictClause(s.d, def, cols, opts))

	result, err := tx.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		return 0, classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return int64(len(batch)), nil
	}
	return affected, nil
}

func conflictClause(d dialect, def *schema.Definition, cols []schema.Field, opts UpsertOptions) string {
	if len(opts.ConflictKeys) == 0 {
		return ""
	}
	clause := fmt.Sprintf(" ON CONFLICT (%s)", quoteFields(d, opts.ConflictKeys))
	if slices.Equal(opts.ConflictKeys, def.ConflictKeys) {
		clause += keyPredicate(d, def)
	}
	if opts.IgnoreDuplicates {
		return clause + " DO NOTHING"
	}

	keys := make(map[schema.Field]struct{}, len(opts.ConflictKeys))
	for _, k := range opts.ConflictKeys {
		keys[k] = struct{}{}
	}
	var sets []string
	for _, c := range cols {
		if _, isKey := keys[c]; isKey || c == schema.FieldCreatedAt {
			continue
		}
		q := d.quote(string(c))
		sets = append(sets, q+" = excluded."+q)
	}
	if len(sets) == 0 {
		return clause + " DO NOTHING"
	}
	return clause + " DO UPDATE SET " + strings.Join(sets, ", ")
}

// FetchAll retrieves every stored record of a table in insertion order.
func (s *SQLStore) FetchAll(ctx context.Context, def *schema.Definition) ([]models.Record, error) {
	cols := def.Columns()
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", quoteFields(s.d, cols), s.d.quote(def.Table))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch all: %w", s.d.name(), classify(err))
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		dest := make([]any, len(cols))
		for i, c := range cols {
			k, _ := def.Kind(c)
			dest[i] = s.d.scanTarget(k)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.d.name(), err)
		}
		rec := make(models.Record, len(cols))
		for i, c := range cols {
			k, _ := def.Kind(c)
			if v, ok := s.d.fromScan(k, dest[i]); ok {
				rec[c] = v
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type columnGroup struct {
	columns []schema.Field
	records []models.Record
}

// groupByColumns buckets records by their exact field set, in order of
// first appearance, so every INSERT names only columns its rows carry.
func groupByColumns(def *schema.Definition, records []models.Record) []*columnGroup {
	var groups []*columnGroup
	index := make(map[string]*columnGroup)
	for _, rec := range records {
		var cols []schema.Field
		for _, f := range def.Columns() {
			if _, ok := rec[f]; ok {
				cols = append(cols, f)
			}
		}
		key := fieldsKey(cols)
		g, ok := index[key]
		if !ok {
			g = &columnGroup{columns: cols}
			index[key] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, rec)
	}
	return groups
}

func fieldsKey(fields []schema.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return utils.JoinKey(parts...)
}

func quoteFields(d dialect, fields []schema.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = d.quote(string(f))
	}
	return strings.Join(parts, ", ")
}
