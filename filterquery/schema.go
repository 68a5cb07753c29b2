package filterquery

import (
	"fmt"
	"regexp"
)

// FieldType determines how raw values for a field are coerced and compared.
type FieldType int

const (
	Number FieldType = iota
	Text
	Time
)

func (t FieldType) String() string {
	switch t {
	case Number:
		return "number"
	case Text:
		return "text"
	case Time:
		return "time"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field describes one queryable attribute of a collection.
type Field struct {
	Type FieldType

	// Column is the SQL expression the field maps to. It comes from code, never from input.
	Column string

	Filterable bool
	Sortable   bool
	Selectable bool
}

// Schema is the allow-list a Builder checks every raw key against.
type Schema struct {
	// IDField is always part of a projection and breaks ties when sorting.
	IDField string

	Fields map[string]Field

	// SearchFields are matched case-insensitively by the search parameter.
	SearchFields []string

	// DefaultSort applies when the caller supplies no usable sort key.
	DefaultSort []SortKey
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks field names and cross references.
func (s Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema cannot be empty, must contain at least one field")
	}

	for name, f := range s.Fields {
		if err := validateIdentifier(name); err != nil {
			return fmt.Errorf("invalid field name %q: %w", name, err)
		}
		if f.Column == "" {
			return fmt.Errorf("field %q has no column", name)
		}
	}

	id, ok := s.Fields[s.IDField]
	if !ok {
		return fmt.Errorf("id field %q is not defined", s.IDField)
	}
	if !id.Selectable {
		return fmt.Errorf("id field %q must be selectable", s.IDField)
	}

	for _, name := range s.SearchFields {
		f, ok := s.Fields[name]
		if !ok {
			return fmt.Errorf("search field %q is not defined", name)
		}
		if f.Type != Text {
			return fmt.Errorf("search field %q has type %s, must be text", name, f.Type)
		}
	}

	for _, key := range s.DefaultSort {
		f, ok := s.Fields[key.Field]
		if !ok || !f.Sortable {
			return fmt.Errorf("default sort field %q is not sortable", key.Field)
		}
	}

	return nil
}

// validateIdentifier enforces 1-100 characters matching ^[a-zA-Z_][a-zA-Z0-9_]*$.
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("identifier length %d exceeds maximum of 100 characters", len(name))
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$ (start with letter or underscore, followed by letters, digits, or underscores)")
	}
	return nil
}
