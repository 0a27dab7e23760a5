package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"dealflow-ingest/models"
	"dealflow-ingest/schema"
	"dealflow-ingest/utils"
)

// DefaultSampleRows is how many rows the assisted resolver sees.
const DefaultSampleRows = 5

// Pipeline runs parse -> resolve -> transform -> validate -> guard for one
// schema. It holds no per-run state and may be shared between uploads.
type Pipeline struct {
	def        *schema.Definition
	resolver   *Resolver
	sampleRows int
	now        func() time.Time
	logger     *utils.Logger
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Resolver   ResolverOptions
	SampleRows int
	Now        func() time.Time
}

// NewPipeline creates a Pipeline targeting def.
func NewPipeline(def *schema.Definition, opts PipelineOptions, logger *utils.Logger) *Pipeline {
	if opts.SampleRows <= 0 {
		opts.SampleRows = DefaultSampleRows
	}
	return &Pipeline{
		def:        def,
		resolver:   NewResolver(def, opts.Resolver, logger),
		sampleRows: opts.SampleRows,
		now:        opts.Now,
		logger:     logger,
	}
}

// Definition returns the target schema.
func (p *Pipeline) Definition() *schema.Definition { return p.def }

// Ingest parses r and normalizes every row. Only a *ParseError (or a read
// failure) aborts the run; row problems are collected in Rejected and
// assisted-mapping failures become warnings on the mapping.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader) (*models.IngestionResult, error) {
	table, err := Parse(r)
	if err != nil {
		p.logger.Error("[parser] %v", err)
		return nil, err
	}
	return p.IngestTable(ctx, table)
}

// IngestTable runs the pipeline over an already parsed table.
func (p *Pipeline) IngestTable(ctx context.Context, table *Table) (*models.IngestionResult, error) {
	mapping, softErr := p.resolver.Resolve(ctx, p.def, table.Headers, table.Sample(p.sampleRows))
	var me *MappingError
	if softErr != nil && !errors.As(softErr, &me) {
		return nil, softErr
	}

	result := &models.IngestionResult{
		Schema:  p.def.ID,
		Total:   table.Len(),
		Mapping: mapping,
	}

	transformer := NewTransformer(p.def, p.now)
	validator := NewValidator(p.def)

	for row := range table.Rows() {
		rec, err := p.processRow(transformer, validator, row, mapping)
		if err != nil {
			result.Rejected = append(result.Rejected, models.RowError{Row: row.RowNumber(), Reason: err.Error()})
			p.logger.Debug("[pipeline] Row %d rejected: %v", row.RowNumber(), err)
			continue
		}
		result.Accepted = append(result.Accepted, rec)
	}

	p.logger.Info("[pipeline] %s: %d rows, %d accepted, %d rejected",
		p.def.ID, result.Total, len(result.Accepted), len(result.Rejected))
	return result, nil
}

func (p *Pipeline) processRow(t *Transformer, v *Validator, row models.RawRow, mapping *models.MappingResult) (rec models.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("Transformation failed: %v", r)
		}
	}()

	candidate, err := t.Transform(row, mapping)
	if err != nil {
		return nil, fmt.Errorf("Transformation failed: %w", err)
	}
	if err := v.Validate(candidate, row); err != nil {
		return nil, err
	}
	guarded, dropped := Guard(p.def, candidate)
	if len(dropped) > 0 {
		p.logger.Debug("[pipeline] Row %d: dropped fields outside %s: %v", row.RowNumber(), p.def.ID, dropped)
	}
	return guarded, nil
}

// Ingest is the one-shot form: build a pipeline for schemaID and run it over r.
func Ingest(ctx context.Context, r io.Reader, schemaID string, opts PipelineOptions, logger *utils.Logger) (*models.IngestionResult, error) {
	def, err := schema.Lookup(schemaID)
	if err != nil {
		return nil, err
	}
	return NewPipeline(def, opts, logger).Ingest(ctx, r)
}

// ResolveMapping returns the mapping a run over table would use, without
// transforming any rows.
func (p *Pipeline) ResolveMapping(ctx context.Context, table *Table) *models.MappingResult {
	mapping, _ := p.resolver.Resolve(ctx, p.def, table.Headers, table.Sample(p.sampleRows))
	return mapping
}
