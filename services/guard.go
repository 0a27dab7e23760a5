package services

import (
	"sort"

	"dealflow-ingest/models"
	"dealflow-ingest/schema"
)

// Guard returns a copy of rec holding only fields the schema stores, and the
// sorted list of fields it removed. Transient fields such as original_url on
// deals are removed here.
func Guard(def *schema.Definition, rec models.Record) (models.Record, []schema.Field) {
	out := make(models.Record, len(rec))
	var dropped []schema.Field
	for k, v := range rec {
		if def.Allows(k) {
			out[k] = v
			continue
		}
		dropped = append(dropped, k)
	}
	sort.Slice(dropped, func(i, j int) bool { return dropped[i] < dropped[j] })
	return out, dropped
}
