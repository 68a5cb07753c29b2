package filterquery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// Matcher evaluates FilterSpecs against in-memory records (field name -> value) with the
// same semantics the SQL renderer gives a database. Predicates are compiled to CEL;
// values reach the program through the args list, never through the expression text.
// Searched text fields are case-folded in Go and exposed to the program as folded.
type Matcher struct {
	schema Schema
	env    *cel.Env
	cache  ProgramCache
}

// CompiledFilter is a spec's predicate set ready for evaluation.
type CompiledFilter struct {
	Expression string
	prg        cel.Program
	args       []any
	folded     []string
}

// NewMatcher creates a matcher for schema. A nil cache gets a default in-memory cache.
func NewMatcher(schema Schema, cache ProgramCache) (*Matcher, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter schema: %w", err)
	}

	env, err := cel.NewEnv(
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("args", cel.ListType(cel.DynType)),
		cel.Variable("folded", cel.MapType(cel.StringType, cel.StringType)),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	if cache == nil {
		cache = NewInMemoryProgramCache(DefaultCacheConfig())
	}

	return &Matcher{schema: schema, env: env, cache: cache}, nil
}

// Compile translates the predicates of spec into a CEL program, reusing a cached
// program when the same expression was compiled before.
func (m *Matcher) Compile(spec FilterSpec) (*CompiledFilter, error) {
	expr, args, folded, err := m.expression(spec.Predicates)
	if err != nil {
		return nil, err
	}

	if prg, ok := m.cache.Get(expr); ok {
		return &CompiledFilter{Expression: expr, prg: prg, args: args, folded: folded}, nil
	}

	ast, issues := m.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	// Cost limit keeps a pathological predicate list from running away.
	prg, err := m.env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	m.cache.Set(expr, prg)
	return &CompiledFilter{Expression: expr, prg: prg, args: args, folded: folded}, nil
}

// Match reports whether record satisfies every predicate.
func (c *CompiledFilter) Match(record map[string]any) (bool, error) {
	folded := make(map[string]string, len(c.folded))
	for _, name := range c.folded {
		s, _ := record[name].(string)
		folded[name] = strings.ToLower(s)
	}

	out, _, err := c.prg.Eval(map[string]any{
		"record": record,
		"args":   c.args,
		"folded": folded,
	})
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}
	matched, ok := out.Value().(bool)
	return ok && matched, nil
}

func (m *Matcher) expression(preds []Predicate) (string, []any, []string, error) {
	if len(preds) == 0 {
		return "true", nil, nil, nil
	}

	var (
		clauses []string
		args    []any
		folded  []string
	)
	for _, p := range preds {
		arg := "args[" + strconv.Itoa(len(args)) + "]"

		if p.Operator == OpILike {
			term, ok := p.Value.(string)
			if !ok {
				return "", nil, nil, fmt.Errorf("ilike value for %q must be a string", p.Field)
			}
			var parts []string
			for _, name := range p.Fields() {
				f, ok := m.schema.Fields[name]
				if !ok || f.Type != Text {
					return "", nil, nil, fmt.Errorf("field %q cannot be searched", name)
				}
				parts = append(parts, fmt.Sprintf("folded[%s].contains(%s)", strconv.Quote(name), arg))
				folded = append(folded, name)
			}
			clauses = append(clauses, "("+strings.Join(parts, " || ")+")")
			args = append(args, strings.ToLower(term))
			continue
		}

		f, ok := m.schema.Fields[p.Field]
		if !ok || !f.Filterable {
			return "", nil, nil, fmt.Errorf("field %q cannot be filtered", p.Field)
		}
		op, ok := celOperators[p.Operator]
		if !ok {
			return "", nil, nil, fmt.Errorf("unsupported operator %q", p.Operator)
		}
		clauses = append(clauses, fmt.Sprintf("%s %s %s", recordField(p.Field), op, arg))
		args = append(args, p.Value)
	}

	return strings.Join(clauses, " && "), args, folded, nil
}

var celOperators = map[Operator]string{
	OpEq:  "==",
	OpGte: ">=",
	OpGt:  ">",
	OpLte: "<=",
	OpLt:  "<",
}

func recordField(name string) string {
	return "record[" + strconv.Quote(name) + "]"
}

// Sort orders records by keys, breaking ties on the schema's id field.
func (m *Matcher) Sort(keys []SortKey, records []map[string]any) {
	sort.SliceStable(records, func(i, j int) bool {
		return m.Compare(keys, records[i], records[j]) < 0
	})
}

// Compare orders two records by keys and then by id.
func (m *Matcher) Compare(keys []SortKey, a, b map[string]any) int {
	for _, k := range keys {
		c := compareValues(a[k.Field], b[k.Field])
		if k.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return compareValues(a[m.schema.IDField], b[m.schema.IDField])
}

// compareValues orders nil first, then numbers, strings and times within their own kind.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return kindOrder(a) - kindOrder(b)
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		bv, ok := b.(string)
		if !ok {
			return kindOrder(a) - kindOrder(b)
		}
		return strings.Compare(av, bv)
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return kindOrder(a) - kindOrder(b)
		}
		return av.Compare(bv)
	default:
		return kindOrder(a) - kindOrder(b)
	}
}

func kindOrder(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case time.Time:
		return 3
	default:
		return 4
	}
}
