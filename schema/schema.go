package schema

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ErrUnknownSchema is returned when a caller names a target that is neither
// deals nor business_listings.
var ErrUnknownSchema = errors.New("schema: unknown target schema")

// ID selects one of the two destination tables.
type ID string

const (
	Deals    ID = "deals"
	Listings ID = "business_listings"
)

// Kind is the physical type of a field; it drives cell coercion and DDL.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindNumeric
	KindPercentage
	KindBoolean
	KindImage
	KindArray
	KindJSON
	KindDate
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindNumeric:
		return "currency"
	case KindPercentage:
		return "percentage"
	case KindBoolean:
		return "boolean"
	case KindImage:
		return "image"
	case KindArray:
		return "array"
	case KindJSON:
		return "json"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// Field is a target column name. Only the constants in fields.go are valid.
type Field string

// Rename describes how a field produced under the other schema's vocabulary
// is carried into this one. The target is only written when it is absent.
type Rename struct {
	To     Field
	Invert bool
}

// Definition bundles everything the pipeline needs to know about one table.
type Definition struct {
	ID    ID
	Table string

	// NameField is the identity column; NameColumns are the raw header
	// spellings consulted when no mapping produced it.
	NameField   Field
	NameColumns []string
	DefaultName string

	// MarketFlag defaults to MarketDefault unless a mapped value overrides it.
	MarketFlag    Field
	MarketDefault bool

	// URLSatisfiesSource lets a non-empty original_url stand in for source.
	URLSatisfiesSource bool

	// ScrapedAt is stamped on every record when set.
	ScrapedAt bool

	// ConflictKeys identify a stored row. When NameField is one of them,
	// records carrying DefaultName have no natural key (see NameKeyed).
	ConflictKeys []Field

	// Renames apply to assisted and override mappings, never to the
	// synonym dictionary.
	Renames map[Field]Rename

	columns   []Field
	kinds     map[Field]Kind
	synonyms  map[string]Field
	transient map[Field]struct{}
}

type column struct {
	field    Field
	kind     Kind
	synonyms []string
}

func newDefinition(d Definition, cols []column, transient ...column) *Definition {
	d.kinds = make(map[Field]Kind, len(cols)+len(metaColumns))
	d.synonyms = make(map[string]Field)
	d.transient = make(map[Field]struct{})

	for _, c := range append(cols, metaColumns...) {
		if _, dup := d.kinds[c.field]; dup {
			panic(fmt.Sprintf("schema %s: duplicate field %s", d.ID, c.field))
		}
		d.columns = append(d.columns, c.field)
		d.kinds[c.field] = c.kind
		d.addSynonyms(c)
	}
	for _, c := range transient {
		d.kinds[c.field] = c.kind
		d.transient[c.field] = struct{}{}
		d.addSynonyms(c)
	}
	return &d
}

func (d *Definition) addSynonyms(c column) {
	for _, s := range c.synonyms {
		key := normaliseColumn(s)
		if prev, dup := d.synonyms[key]; dup && prev != c.field {
			panic(fmt.Sprintf("schema %s: synonym %q maps to both %s and %s", d.ID, s, prev, c.field))
		}
		d.synonyms[key] = c.field
	}
}

var registry = map[ID]*Definition{
	Deals:    dealsDefinition,
	Listings: listingsDefinition,
}

// Lookup returns the definition for a schema id (case-insensitive).
func Lookup(id string) (*Definition, error) {
	d, ok := registry[ID(strings.ToLower(strings.TrimSpace(id)))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, id)
	}
	return d, nil
}

// All returns every registered definition ordered by table name.
func All() []*Definition {
	out := make([]*Definition, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}

// Columns returns the allow-list in storage order.
func (d *Definition) Columns() []Field {
	out := make([]Field, len(d.columns))
	copy(out, d.columns)
	return out
}

// Allows reports whether f may appear in a stored record.
func (d *Definition) Allows(f Field) bool {
	_, ok := d.kinds[f]
	if !ok {
		return false
	}
	_, transient := d.transient[f]
	return !transient
}

// Kind returns the physical type of f, including transient fields.
func (d *Definition) Kind(f Field) (Kind, bool) {
	k, ok := d.kinds[f]
	return k, ok
}

// Transient fields are populated by the transformer and read by the
// validator but never stored.
func (d *Definition) Transient(f Field) bool {
	_, ok := d.transient[f]
	return ok
}

// Synonym looks up a source column in the static dictionary.
func (d *Definition) Synonym(column string) (Field, bool) {
	f, ok := d.synonyms[normaliseColumn(column)]
	return f, ok
}

// AcceptsTarget reports whether a resolver may name f for this schema:
// own fields, transient fields, or the other schema's spelling that a
// Rename will translate.
func (d *Definition) AcceptsTarget(f Field) bool {
	if _, ok := d.kinds[f]; ok {
		return true
	}
	_, ok := d.Renames[f]
	return ok
}

// TargetKind resolves the kind of an accepted target, following renames.
func (d *Definition) TargetKind(f Field) (Kind, bool) {
	if k, ok := d.kinds[f]; ok {
		return k, true
	}
	if r, ok := d.Renames[f]; ok {
		return d.Kind(r.To)
	}
	return 0, false
}

// NameKeyed reports whether NameField takes part in ConflictKeys. Rows
// named DefaultName then share no identity with each other: they are
// neither collapsed in memory nor upserted onto an existing row.
func (d *Definition) NameKeyed() bool {
	return d.DefaultName != "" && slices.Contains(d.ConflictKeys, d.NameField)
}

// HasNaturalKey reports whether a record whose name is name can be matched
// on ConflictKeys.
func (d *Definition) HasNaturalKey(name string) bool {
	return !d.NameKeyed() || name != d.DefaultName
}

// FieldsOfKind lists allowed fields with the given kind, in column order.
func (d *Definition) FieldsOfKind(k Kind) []Field {
	var out []Field
	for _, f := range d.columns {
		if d.kinds[f] == k {
			out = append(out, f)
		}
	}
	return out
}

func normaliseColumn(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
