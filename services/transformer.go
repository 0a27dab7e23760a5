package services

import (
	"fmt"
	"strings"
	"time"

	"dealflow-ingest/models"
	"dealflow-ingest/schema"
)

// scrapeTimestampColumn feeds scraped_at when nothing was mapped to it.
const scrapeTimestampColumn = "scrape_timestamp"

// Transformer turns RawRows into candidate records for one schema.
type Transformer struct {
	def *schema.Definition
	now func() time.Time
}

// NewTransformer creates a Transformer. now may be nil.
func NewTransformer(def *schema.Definition, now func() time.Time) *Transformer {
	if now == nil {
		now = time.Now
	}
	return &Transformer{def: def, now: now}
}

// Transform builds the candidate record for one row. Cells that fail to
// coerce are omitted; only a mapping naming a field unknown to the schema
// returns an error.
func (t *Transformer) Transform(row models.RawRow, mapping *models.MappingResult) (models.Record, error) {
	rec := make(models.Record)

	for _, cm := range mapping.Mappings {
		kind, ok := t.def.TargetKind(cm.TargetField)
		if !ok {
			return nil, fmt.Errorf("transform: %s has no field %q (column %q)", t.def.ID, cm.TargetField, cm.SourceColumn)
		}
		raw, _ := row.Get(cm.SourceColumn)
		if strings.TrimSpace(raw) == "" {
			continue
		}
		value, ok := coerce(kind, raw)
		if !ok {
			continue
		}

		target := cm.TargetField
		// the synonym dictionary never produces the other schema's spelling
		if cm.Origin == models.OriginAssisted || cm.Origin == models.OriginOverride {
			if rn, ok := t.def.Renames[target]; ok {
				target = rn.To
				if b, isBool := value.(bool); isBool && rn.Invert {
					value = !b
				}
			}
		}
		// first non-empty column wins when several map to the same field
		if _, exists := rec[target]; exists {
			continue
		}
		rec[target] = value
	}

	if _, ok := rec[schema.FieldLocation]; !ok && t.def.Allows(schema.FieldLocation) {
		if loc := composeLocation(row); loc != "" {
			rec[schema.FieldLocation] = loc
		}
	}

	now := t.now().UTC()
	rec[schema.FieldCreatedAt] = now
	rec[schema.FieldUpdatedAt] = now

	if t.def.ScrapedAt {
		if _, ok := rec[schema.FieldScrapedAt]; !ok {
			scraped := now
			if raw, ok := row.Lookup(scrapeTimestampColumn); ok {
				if ts, ok := parseTimestamp(raw); ok {
					scraped = ts
				}
			}
			rec[schema.FieldScrapedAt] = scraped
		}
	}

	if _, ok := rec[t.def.MarketFlag]; !ok {
		rec[t.def.MarketFlag] = t.def.MarketDefault
	}
	return rec, nil
}

// composeLocation joins non-empty city, state and country cells with ", ".
func composeLocation(row models.RawRow) string {
	var parts []string
	for _, col := range locationParts {
		if v, ok := row.Lookup(col); ok {
			if v = strings.TrimSpace(v); v != "" {
				parts = append(parts, v)
			}
		}
	}
	return strings.Join(parts, ", ")
}
