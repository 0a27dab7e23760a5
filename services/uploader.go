package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"dealflow-ingest/metrics"
	"dealflow-ingest/models"
	"dealflow-ingest/schema"
	"dealflow-ingest/storage"
	"dealflow-ingest/utils"
)

// UploadOptions controls how accepted records reach the store.
type UploadOptions struct {
	BatchSize        int
	IgnoreDuplicates bool
	DryRun           bool
}

// Uploader runs the pipeline and hands accepted records to a Store.
type Uploader struct {
	pipeline *Pipeline
	store    storage.Store
	metrics  *metrics.Registry
	opts     UploadOptions
	logger   *utils.Logger
}

// NewUploader wires a pipeline to a store. store may be nil, in which case
// every upload is a dry run. reg may be nil.
func NewUploader(p *Pipeline, store storage.Store, reg *metrics.Registry, opts UploadOptions, logger *utils.Logger) *Uploader {
	return &Uploader{pipeline: p, store: store, metrics: reg, opts: opts, logger: logger}
}

// Upload ingests r and upserts the accepted records. The returned error is
// non-nil only for file-level failures (parse errors); store failures are
// reported in the summary.
func (u *Uploader) Upload(ctx context.Context, r io.Reader) (*models.UploadSummary, error) {
	table, err := Parse(r)
	if err != nil {
		u.logger.Error("[parser] %v", err)
		u.observe(u.pipeline.Definition(), "parse_error", nil, time.Now())
		return nil, err
	}
	return u.UploadTable(ctx, table)
}

// UploadTable is Upload for an already parsed table.
func (u *Uploader) UploadTable(ctx context.Context, table *Table) (*models.UploadSummary, error) {
	def := u.pipeline.Definition()
	runID := uuid.NewString()
	log := u.logger.With("run_id", runID, "schema", string(def.ID))
	started := time.Now()

	if u.metrics != nil {
		u.metrics.InFlight.Inc()
		defer u.metrics.InFlight.Dec()
	}

	result, err := u.pipeline.IngestTable(ctx, table)
	if err != nil {
		u.observe(def, "error", nil, started)
		return nil, err
	}

	summary := &models.UploadSummary{
		RunID:     runID,
		Schema:    def.ID,
		Total:     result.Total,
		Accepted:  len(result.Accepted),
		Failed:    len(result.Rejected),
		Errors:    []string{},
		Mapping:   result.Mapping,
		Warnings:  result.Mapping.Warnings,
		StartedAt: started,
	}
	for _, re := range result.Rejected {
		summary.Errors = append(summary.Errors, fmt.Sprintf("Row %d: %s", re.Row, re.Reason))
	}

	records, duplicates := DedupeByKeys(def, result.Accepted)
	summary.Skipped = duplicates
	summary.Records = records
	if duplicates > 0 {
		log.Info("[uploader] Collapsed %d duplicate records sharing %v", duplicates, def.ConflictKeys)
	}

	outcome := "ok"
	switch {
	case u.store == nil || u.opts.DryRun:
		summary.DryRun = true
		outcome = "dry_run"
		log.Info("[uploader] Dry run: %d records not written", len(records))
	case len(records) == 0:
		log.Warn("[uploader] No records accepted; nothing to write")
	default:
		res, err := u.store.Upsert(ctx, def, records, storage.UpsertOptions{
			ConflictKeys:     def.ConflictKeys,
			IgnoreDuplicates: u.opts.IgnoreDuplicates,
			BatchSize:        u.opts.BatchSize,
		})
		if err != nil {
			outcome = "store_error"
			msg := storage.FriendlyMessage(err)
			log.Error("[uploader] Upsert into %s failed: %v", def.Table, err)
			summary.Successful = 0
			summary.Skipped = 0
			summary.Failed = summary.Total
			summary.Errors = append(summary.Errors, msg)
			if u.metrics != nil {
				u.metrics.StoreFailures.WithLabelValues(string(def.ID)).Inc()
			}
			break
		}
		summary.Successful = len(records)
		if u.opts.IgnoreDuplicates && res.Affected < int64(len(records)) {
			existing := len(records) - int(res.Affected)
			summary.Successful -= existing
			summary.Skipped += existing
		}
	}

	summary.Duration = time.Since(started)
	u.observe(def, outcome, summary, started)
	log.Info("[uploader] total=%d accepted=%d successful=%d failed=%d skipped=%d",
		summary.Total, summary.Accepted, summary.Successful, summary.Failed, summary.Skipped)
	return summary, nil
}

func (u *Uploader) observe(def *schema.Definition, outcome string, s *models.UploadSummary, started time.Time) {
	if u.metrics == nil {
		return
	}
	id := string(def.ID)
	u.metrics.Uploads.WithLabelValues(id, outcome).Inc()
	u.metrics.UploadSeconds.WithLabelValues(id).Observe(time.Since(started).Seconds())
	if s == nil {
		return
	}
	u.metrics.RowsParsed.WithLabelValues(id).Add(float64(s.Total))
	u.metrics.RowsAccepted.WithLabelValues(id).Add(float64(s.Accepted))
	u.metrics.RowsRejected.WithLabelValues(id).Add(float64(s.Total - s.Accepted))
	u.metrics.RowsStored.WithLabelValues(id).Add(float64(s.Successful))
	if s.Mapping != nil && s.Mapping.Fallback {
		u.metrics.MappingFallbacks.WithLabelValues(id).Inc()
	}
}

// DedupeByKeys keeps the last record for each conflict-key value, in the
// original order, and returns how many were dropped. Records missing a key
// value, or named with the schema's placeholder name, are never collapsed.
func DedupeByKeys(def *schema.Definition, records []models.Record) ([]models.Record, int) {
	if len(def.ConflictKeys) == 0 {
		return records, 0
	}
	seen := utils.NewKeySet()
	keep := make([]bool, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		key, ok := naturalKey(def, records[i])
		keep[i] = !ok || seen.Add(key)
	}

	out := make([]models.Record, 0, len(records))
	for i, rec := range records {
		if keep[i] {
			out = append(out, rec)
		}
	}
	return out, len(records) - len(out)
}

func naturalKey(def *schema.Definition, rec models.Record) (string, bool) {
	if !def.HasNaturalKey(rec.String(def.NameField)) {
		return "", false
	}
	parts := make([]string, 0, len(def.ConflictKeys))
	for _, k := range def.ConflictKeys {
		v := storage.FormatValue(schema.KindText, rec[k])
		if v == "" {
			return "", false
		}
		parts = append(parts, v)
	}
	return utils.JoinKey(parts...), true
}
