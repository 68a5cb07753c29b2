package filterquery

// Operator is a comparison applied by a predicate.
type Operator string

const (
	OpEq    Operator = "eq"
	OpGte   Operator = "gte"
	OpGt    Operator = "gt"
	OpLte   Operator = "lte"
	OpLt    Operator = "lt"
	OpILike Operator = "ilike" // case-insensitive substring match
)

// Predicate is a single filter condition. Value is a bound parameter and is never
// spliced into query text.
type Predicate struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`

	// Or lists further fields tested with the same operator and value; a match on
	// any of them satisfies the predicate.
	Or []string `json:"or,omitempty"`
}

// Fields returns Field followed by Or.
func (p Predicate) Fields() []string {
	return append([]string{p.Field}, p.Or...)
}

// SortKey orders results by one field.
type SortKey struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

// FilterSpec is a normalized, allow-listed query over a collection. Predicates are ANDed.
type FilterSpec struct {
	Predicates []Predicate `json:"predicates"`
	Sort       []SortKey   `json:"sort"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`

	// Fields is the projection; nil selects every field.
	Fields []string `json:"fields,omitempty"`
}

// Offset is the number of records skipped before the current page.
func (s FilterSpec) Offset() int {
	if s.Page < 1 {
		return 0
	}
	return (s.Page - 1) * s.PageSize
}

// TotalPages is ceil(total/PageSize).
func (s FilterSpec) TotalPages(total int) int {
	if s.PageSize < 1 || total <= 0 {
		return 0
	}
	return (total + s.PageSize - 1) / s.PageSize
}

// Project keeps only the selected fields of record. Without a projection the record is returned as is.
func (s FilterSpec) Project(record map[string]any) map[string]any {
	if s.Fields == nil {
		return record
	}
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		if v, ok := record[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Paginate returns the page of items selected by spec.
func Paginate[T any](items []T, spec FilterSpec) []T {
	start := spec.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := len(items)
	if spec.PageSize > 0 && start+spec.PageSize < end {
		end = start + spec.PageSize
	}
	return items[start:end]
}
