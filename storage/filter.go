package storage

import (
	"fmt"
	"maps"
	"slices"

	"github.com/poiesic/mediasearch/core"
)

// Operator is a comparison operator in a Filter condition.
type Operator string

const (
	OpGTE Operator = "$gte"
	OpLTE Operator = "$lte"
	OpEQ  Operator = "$eq"
)

// Condition maps operators to operands. All operators must hold.
type Condition map[Operator]any

// Filter is the index filter grammar: metadata field name to Condition.
// All conditions must hold. Numbers compare numerically, strings
// lexicographically. An entry lacking a field never matches a condition on it.
//
//	Filter{"duration": {OpGTE: 60.0, OpLTE: 300.0}}
type Filter map[string]Condition

// Fields returns the filter's field names in sorted order.
func (f Filter) Fields() []string {
	return slices.Sorted(maps.Keys(f))
}

// Validate checks that every field is a known metadata field, every operator
// is supported and every operand has the field's type.
func (f Filter) Validate() error {
	for field, cond := range f {
		kind, ok := fieldKinds[field]
		if !ok {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, field)
		}
		if len(cond) == 0 {
			return fmt.Errorf("%w: empty condition on %q", ErrInvalidFilter, field)
		}
		for op, operand := range cond {
			switch op {
			case OpGTE, OpLTE, OpEQ:
			default:
				return fmt.Errorf("%w: unknown operator %q on %q", ErrInvalidFilter, op, field)
			}
			switch kind {
			case kindNumber:
				if _, ok := AsFloat(operand); !ok {
					return fmt.Errorf("%w: %q needs a numeric operand, got %T", ErrInvalidFilter, field, operand)
				}
			case kindString:
				if _, ok := operand.(string); !ok {
					return fmt.Errorf("%w: %q needs a string operand, got %T", ErrInvalidFilter, field, operand)
				}
			}
		}
	}
	return nil
}

// Matches reports whether meta satisfies every condition in f.
// A nil or empty filter matches everything.
func (f Filter) Matches(meta core.Metadata) bool {
	for field, cond := range f {
		value, ok := metadataValue(meta, field)
		if !ok {
			return false
		}
		for op, operand := range cond {
			cmp, ok := compare(value, operand)
			if !ok {
				return false
			}
			switch op {
			case OpGTE:
				if cmp < 0 {
					return false
				}
			case OpLTE:
				if cmp > 0 {
					return false
				}
			case OpEQ:
				if cmp != 0 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
)

var fieldKinds = map[string]fieldKind{
	core.FieldTitle:     kindString,
	core.FieldCreatedAt: kindString,
	core.FieldDuration:  kindNumber,
}

// IsNumericField reports whether field holds numbers in index metadata.
func IsNumericField(field string) bool {
	return fieldKinds[field] == kindNumber
}

func metadataValue(meta core.Metadata, field string) (any, bool) {
	switch field {
	case core.FieldTitle:
		return meta.Title, true
	case core.FieldCreatedAt:
		if meta.CreatedAt == "" {
			return nil, false
		}
		return meta.CreatedAt, true
	case core.FieldDuration:
		if meta.Duration == nil {
			return nil, false
		}
		return *meta.Duration, true
	}
	return nil, false
}

// compare returns -1, 0 or 1 for value against operand; ok is false when the
// two are not comparable.
func compare(value, operand any) (int, bool) {
	if s, ok := value.(string); ok {
		o, ok := operand.(string)
		if !ok {
			return 0, false
		}
		switch {
		case s < o:
			return -1, true
		case s > o:
			return 1, true
		}
		return 0, true
	}

	v, ok := AsFloat(value)
	if !ok {
		return 0, false
	}
	o, ok := AsFloat(operand)
	if !ok {
		return 0, false
	}
	switch {
	case v < o:
		return -1, true
	case v > o:
		return 1, true
	}
	return 0, true
}

// AsFloat converts the numeric kinds a filter operand may arrive as.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
