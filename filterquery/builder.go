package filterquery

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 100
	MaxPageSize     = 200

	// maxOffset bounds (page-1)*pageSize.
	maxOffset = math.MaxInt32

	searchKey = "search"
)

var reservedKeys = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
}

var rangeOperators = map[string]Operator{
	"gte": OpGte,
	"gt":  OpGt,
	"lte": OpLte,
	"lt":  OpLt,
}

var bracketKey = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)\[([a-zA-Z]+)\]$`)

// Builder turns untyped query parameters into a FilterSpec. Keys that are not in the
// schema, operators that are not recognized and values that cannot be coerced are
// dropped silently. A Builder is immutable and safe for concurrent use.
type Builder struct {
	schema      Schema
	maxPageSize int
}

// NewBuilder validates schema and caps page sizes at maxPageSize (MaxPageSize if <= 0).
func NewBuilder(schema Schema, maxPageSize int) (*Builder, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter schema: %w", err)
	}
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	return &Builder{schema: schema, maxPageSize: maxPageSize}, nil
}

// Schema returns the allow-list the builder was created with.
func (b *Builder) Schema() Schema {
	return b.schema
}

// BuildFromQuery builds a spec from a parsed query string. Bracketed keys such as
// price[gte] are interpreted as operators.
func (b *Builder) BuildFromQuery(q url.Values) FilterSpec {
	raw := make(map[string]any, len(q))
	for k, v := range q {
		raw[k] = v
	}
	return b.Build(raw)
}

// Build builds a spec from a string-keyed mapping. Values may be scalars, string
// slices (the first element is used) or nested operator maps like {"gte": 100000}.
func (b *Builder) Build(raw map[string]any) FilterSpec {
	spec := FilterSpec{
		Predicates: []Predicate{},
		Sort:       b.parseSort(raw["sort"]),
		Fields:     b.parseFields(raw["fields"]),
	}
	spec.Page, spec.PageSize = b.parsePagination(raw["page"], raw["limit"])

	for _, key := range sortedKeys(raw) {
		if reservedKeys[key] {
			continue
		}
		val := raw[key]

		if key == searchKey {
			if p, ok := b.searchPredicate(val); ok {
				spec.Predicates = append(spec.Predicates, p)
			}
			continue
		}

		if m := bracketKey.FindStringSubmatch(key); m != nil {
			spec.Predicates = b.appendPredicate(spec.Predicates, m[1], m[2], val)
			continue
		}

		if ops, ok := operatorMap(val); ok {
			for _, op := range sortedKeys(ops) {
				spec.Predicates = b.appendPredicate(spec.Predicates, key, op, ops[op])
			}
			continue
		}

		spec.Predicates = b.appendPredicate(spec.Predicates, key, string(OpEq), val)
	}

	return spec
}

func (b *Builder) appendPredicate(preds []Predicate, name, opName string, val any) []Predicate {
	field, ok := b.schema.Fields[name]
	if !ok || !field.Filterable {
		return preds
	}

	op := OpEq
	if opName != string(OpEq) {
		op, ok = rangeOperators[opName]
		if !ok || field.Type != Number {
			return preds
		}
	}

	var value any
	switch field.Type {
	case Number:
		f, ok := toFloat(val)
		if !ok {
			return preds
		}
		value = f
	case Text:
		s, ok := toString(val)
		if !ok {
			return preds
		}
		value = s
	default:
		return preds
	}

	return append(preds, Predicate{Field: name, Operator: op, Value: value})
}

func (b *Builder) searchPredicate(val any) (Predicate, bool) {
	if len(b.schema.SearchFields) == 0 {
		return Predicate{}, false
	}
	term, ok := toString(val)
	if !ok {
		return Predicate{}, false
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return Predicate{}, false
	}
	fields := b.schema.SearchFields
	return Predicate{
		Field:    fields[0],
		Operator: OpILike,
		Value:    term,
		Or:       append([]string(nil), fields[1:]...),
	}, true
}

func (b *Builder) parseSort(val any) []SortKey {
	s, _ := toString(val)

	var keys []SortKey
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")

		f, ok := b.schema.Fields[name]
		if !ok || !f.Sortable || seen[name] {
			continue
		}
		seen[name] = true
		keys = append(keys, SortKey{Field: name, Desc: desc})
	}

	if len(keys) == 0 {
		return append([]SortKey(nil), b.schema.DefaultSort...)
	}
	return keys
}

func (b *Builder) parseFields(val any) []string {
	s, ok := toString(val)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}

	fields := []string{b.schema.IDField}
	seen := map[string]bool{b.schema.IDField: true}
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		f, ok := b.schema.Fields[name]
		if !ok || !f.Selectable || seen[name] {
			continue
		}
		seen[name] = true
		fields = append(fields, name)
	}
	return fields
}

func (b *Builder) parsePagination(pageVal, limitVal any) (page, size int) {
	page, ok := toPositiveInt(pageVal)
	if !ok {
		page = DefaultPage
	}
	size, ok = toPositiveInt(limitVal)
	if !ok {
		size = DefaultPageSize
	}
	if size > b.maxPageSize {
		size = b.maxPageSize
	}
	if maxPage := maxOffset/size + 1; page > maxPage {
		page = maxPage
	}
	return page, size
}

func operatorMap(val any) (map[string]any, bool) {
	switch v := val.(type) {
	case map[string]any:
		return v, true
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return m, true
	default:
		return nil, false
	}
}

func toString(val any) (string, bool) {
	switch v := val.(type) {
	case string:
		return v, true
	case []string:
		if len(v) == 0 {
			return "", false
		}
		return v[0], true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

func toFloat(val any) (float64, bool) {
	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		s, ok := toString(val)
		if !ok {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toPositiveInt(val any) (int, bool) {
	var n int64
	switch v := val.(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) || v < 1 {
			return 0, false
		}
		if v > math.MaxInt32 {
			v = math.MaxInt32
		}
		n = int64(v)
	default:
		s, ok := toString(val)
		if !ok {
			return 0, false
		}
		parsed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	}
	if n < 1 {
		return 0, false
	}
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	return int(n), true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
