package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"dealflow-ingest/config"
	"dealflow-ingest/models"
	"dealflow-ingest/schema"
	"dealflow-ingest/utils"
)

// Confidence values assigned by the static dictionary.
const (
	ConfidenceExactName = 100
	ConfidenceSynonym   = 80
	ConfidenceOverride  = 100
)

// AssistRequest is what the assisted resolver sees: the header, a few
// sample rows for type inference, and the target schema.
type AssistRequest struct {
	Headers    []string
	SampleRows []models.RawRow
	Schema     schema.ID
}

// AssistedResolver suggests column mappings, typically by asking a model.
type AssistedResolver interface {
	Resolve(ctx context.Context, req AssistRequest) (*models.MappingResult, error)
}

// MappingError means the assisted strategy could not be used. It is a soft
// warning: the dictionary mapping is used instead.
type MappingError struct {
	Strategy string
	Err      error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s mapping unavailable: %v", e.Strategy, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// errNoMappings is returned when the assisted resolver answers with nothing usable.
var errNoMappings = errors.New("resolver returned no usable mappings")

// locationParts are composed into location by the transformer when present.
var locationParts = []string{"city", "state", "country"}

// Resolver produces one MappingResult per file: overrides first, then an
// assisted mapping at or above MinConfidence, then the static dictionary.
type Resolver struct {
	assisted      AssistedResolver
	overrides     map[string]schema.Field
	folded        map[string]schema.Field
	minConfidence int
	timeout       time.Duration
	logger        *utils.Logger
}

// ResolverOptions configures a Resolver. Assisted may be nil.
type ResolverOptions struct {
	Assisted      AssistedResolver
	MinConfidence int
	Timeout       time.Duration
	Profile       *config.MappingProfile
}

// NewResolver builds a Resolver for one schema. Profile columns naming a
// field the schema does not accept are dropped with a warning.
func NewResolver(def *schema.Definition, opts ResolverOptions, logger *utils.Logger) *Resolver {
	r := &Resolver{
		assisted:      opts.Assisted,
		minConfidence: opts.MinConfidence,
		timeout:       opts.Timeout,
		logger:        logger,
		overrides:     make(map[string]schema.Field),
		folded:        make(map[string]schema.Field),
	}
	if opts.Profile == nil {
		return r
	}
	// sorted so that columns differing only in case fold the same way every run
	for _, col := range slices.Sorted(maps.Keys(opts.Profile.Columns)) {
		target := opts.Profile.Columns[col]
		f := schema.Field(strings.TrimSpace(target))
		if !def.AcceptsTarget(f) {
			logger.Warn("[resolver] Ignoring profile mapping %q -> %q: not a %s field", col, target, def.ID)
			continue
		}
		r.overrides[col] = f
		key := foldColumn(col)
		if prev, dup := r.folded[key]; dup {
			logger.Warn("[resolver] Profile column %q differs from another only in case; keeping %q", col, prev)
			continue
		}
		r.folded[key] = f
	}
	return r
}

func foldColumn(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolve maps headers onto def. The returned result is never nil. A non-nil
// error is always a *MappingError and only means the assisted strategy was
// skipped.
func (r *Resolver) Resolve(ctx context.Context, def *schema.Definition, headers []string, sample []models.RawRow) (*models.MappingResult, error) {
	static := StaticMapping(def, headers)

	var (
		assisted *models.MappingResult
		softErr  error
	)
	if r.assisted != nil {
		assisted, softErr = r.tryAssisted(ctx, def, headers, sample)
		if softErr != nil {
			r.logger.Warn("[resolver] %v; falling back to the synonym dictionary", softErr)
			assisted = nil
		}
	}

	result := r.merge(def, headers, static, assisted)
	if softErr != nil {
		result.Fallback = true
		result.Warnings = append(result.Warnings, softErr.Error())
	}
	r.logger.Info("[resolver] %s: mapped %d of %d columns (%d unmapped)",
		def.ID, len(result.Mappings), len(headers), len(result.UnmappedColumns))
	return result, softErr
}

func (r *Resolver) tryAssisted(ctx context.Context, def *schema.Definition, headers []string, sample []models.RawRow) (*models.MappingResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.assisted.Resolve(ctx, AssistRequest{Headers: headers, SampleRows: sample, Schema: def.ID})
	if err != nil {
		return nil, &MappingError{Strategy: "assisted", Err: err}
	}
	if res == nil || len(res.Mappings) == 0 {
		return nil, &MappingError{Strategy: "assisted", Err: errNoMappings}
	}
	return res, nil
}

func (r *Resolver) merge(def *schema.Definition, headers []string, static, assisted *models.MappingResult) *models.MappingResult {
	result := &models.MappingResult{Schema: def.ID}

	assistedBy := make(map[string]models.ColumnMapping)
	if assisted != nil {
		present := make(map[string]struct{}, len(headers))
		for _, h := range headers {
			present[h] = struct{}{}
		}
		for _, cm := range assisted.Mappings {
			if _, ok := present[cm.SourceColumn]; !ok {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("assisted mapping names unknown column %q", cm.SourceColumn))
				continue
			}
			if !def.AcceptsTarget(cm.TargetField) {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("assisted mapping %q -> %q is not a %s field", cm.SourceColumn, cm.TargetField, def.ID))
				continue
			}
			cm.Origin = models.OriginAssisted
			cm.Confidence = clampConfidence(cm.Confidence)
			if cm.TransformationType == "" {
				if k, ok := def.TargetKind(cm.TargetField); ok && k != schema.KindText {
					cm.TransformationType = k.String()
				}
			}
			assistedBy[cm.SourceColumn] = cm
		}
		result.Suggestions = append(result.Suggestions, assisted.Suggestions...)
	}

	for _, h := range headers {
		if strings.TrimSpace(h) == "" {
			continue
		}
		if f, ok := r.override(h); ok {
			result.Mappings = append(result.Mappings, models.ColumnMapping{
				SourceColumn:       h,
				TargetField:        f,
				Confidence:         ConfidenceOverride,
				TransformationType: transformationFor(def, f),
				Origin:             models.OriginOverride,
			})
			continue
		}
		if cm, ok := assistedBy[h]; ok && cm.Confidence >= r.minConfidence {
			result.Mappings = append(result.Mappings, cm)
			continue
		}
		if cm, ok := static.For(h); ok {
			result.Mappings = append(result.Mappings, cm)
			continue
		}
		result.UnmappedColumns = append(result.UnmappedColumns, h)
	}

	result.Suggestions = append(result.Suggestions, locationSuggestions(result)...)
	return result
}

func (r *Resolver) override(column string) (schema.Field, bool) {
	if f, ok := r.overrides[column]; ok {
		return f, true
	}
	f, ok := r.folded[foldColumn(column)]
	return f, ok
}

// StaticMapping maps headers through the schema's synonym dictionary. It is a
// pure function of its inputs; unmatched columns are listed, not errors.
func StaticMapping(def *schema.Definition, headers []string) *models.MappingResult {
	result := &models.MappingResult{Schema: def.ID}
	for _, h := range headers {
		f, ok := def.Synonym(h)
		if !ok {
			if strings.TrimSpace(h) != "" {
				result.UnmappedColumns = append(result.UnmappedColumns, h)
			}
			continue
		}
		confidence := ConfidenceSynonym
		if strings.EqualFold(strings.TrimSpace(h), string(f)) {
			confidence = ConfidenceExactName
		}
		result.Mappings = append(result.Mappings, models.ColumnMapping{
			SourceColumn:       h,
			TargetField:        f,
			Confidence:         confidence,
			TransformationType: transformationFor(def, f),
			Origin:             models.OriginDictionary,
		})
	}
	return result
}

func transformationFor(def *schema.Definition, f schema.Field) string {
	k, ok := def.TargetKind(f)
	if !ok || k == schema.KindText {
		return ""
	}
	return k.String()
}

func locationSuggestions(result *models.MappingResult) []string {
	var parts []string
	for _, col := range result.UnmappedColumns {
		for _, p := range locationParts {
			if strings.EqualFold(strings.TrimSpace(col), p) {
				parts = append(parts, col)
			}
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("columns %s will be combined into location", strings.Join(parts, ", "))}
}

func clampConfidence(c int) int {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}
