package filterquery

import (
	"fmt"
	"strconv"
	"strings"
)

// SQLQuery is a parameterized PostgreSQL query pair: one statement for the page and one
// for the total count. Arguments are positional ($1, $2, ...).
type SQLQuery struct {
	Select     string
	SelectArgs []any
	Count      string
	CountArgs  []any
}

var sqlOperators = map[Operator]string{
	OpEq:  "=",
	OpGte: ">=",
	OpGt:  ">",
	OpLte: "<=",
	OpLt:  "<",
}

// RenderSQL renders spec against table. columns is the select list; both come from the
// caller's code. Every predicate value, the limit and the offset are bound arguments.
func RenderSQL(spec FilterSpec, schema Schema, table, columns string) (SQLQuery, error) {
	var (
		where []string
		args  []any
	)

	for _, p := range spec.Predicates {
		clause, arg, err := predicateSQL(p, schema, len(args)+1)
		if err != nil {
			return SQLQuery{}, err
		}
		where = append(where, clause)
		args = append(args, arg)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	orderSQL, err := orderSQL(spec.Sort, schema)
	if err != nil {
		return SQLQuery{}, err
	}

	countArgs := append([]any(nil), args...)
	selectArgs := append(args, spec.PageSize, spec.Offset())
	n := len(args)

	return SQLQuery{
		Select: fmt.Sprintf("SELECT %s FROM %s%s %s LIMIT $%d OFFSET $%d",
			columns, table, whereSQL, orderSQL, n+1, n+2),
		SelectArgs: selectArgs,
		Count:      fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, whereSQL),
		CountArgs:  countArgs,
	}, nil
}

func predicateSQL(p Predicate, schema Schema, pos int) (string, any, error) {
	placeholder := "$" + strconv.Itoa(pos)

	if p.Operator == OpILike {
		term, ok := p.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("ilike value for %q must be a string", p.Field)
		}
		var parts []string
		for _, name := range p.Fields() {
			f, ok := schema.Fields[name]
			if !ok || f.Type != Text {
				return "", nil, fmt.Errorf("field %q cannot be searched", name)
			}
			parts = append(parts, f.Column+" ILIKE "+placeholder)
		}
		return "(" + strings.Join(parts, " OR ") + ")", "%" + escapeLike(term) + "%", nil
	}

	f, ok := schema.Fields[p.Field]
	if !ok || !f.Filterable {
		return "", nil, fmt.Errorf("field %q cannot be filtered", p.Field)
	}
	op, ok := sqlOperators[p.Operator]
	if !ok {
		return "", nil, fmt.Errorf("unsupported operator %q", p.Operator)
	}
	return f.Column + " " + op + " " + placeholder, p.Value, nil
}

func orderSQL(keys []SortKey, schema Schema) (string, error) {
	var parts []string
	hasID := false
	for _, k := range keys {
		f, ok := schema.Fields[k.Field]
		if !ok || !f.Sortable {
			return "", fmt.Errorf("field %q cannot be sorted", k.Field)
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts = append(parts, f.Column+" "+dir)
		hasID = hasID || k.Field == schema.IDField
	}
	if !hasID {
		parts = append(parts, schema.Fields[schema.IDField].Column+" ASC")
	}
	return "ORDER BY " + strings.Join(parts, ", "), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
