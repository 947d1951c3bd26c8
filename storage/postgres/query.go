package postgres

import (
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/mediasearch/storage"
)

var sqlOperators = map[storage.Operator]string{
	storage.OpGTE: ">=",
	storage.OpLTE: "<=",
	storage.OpEQ:  "=",
}

// buildQuery renders the similarity query. $1 is the query vector; filter
// operands follow in field then operator order, and the limit comes last.
// A missing metadata key yields NULL, which fails every comparison.
func buildQuery(filter storage.Filter, topK int) (string, []any, error) {
	if err := filter.Validate(); err != nil {
		return "", nil, err
	}

	var (
		where []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args)+1)
	}

	for _, field := range filter.Fields() {
		cond := filter[field]
		ops := make([]storage.Operator, 0, len(cond))
		for op := range cond {
			ops = append(ops, op)
		}
		slices.Sort(ops)

		column := fmt.Sprintf("metadata->>'%s'", field)
		for _, op := range ops {
			operand := cond[op]
			if storage.IsNumericField(field) {
				f, _ := storage.AsFloat(operand)
				where = append(where, fmt.Sprintf("(%s)::double precision %s %s", column, sqlOperators[op], next(f)))
				continue
			}
			where = append(where, fmt.Sprintf("%s %s %s", column, sqlOperators[op], next(operand)))
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, 1 - (embedding <=> $1) AS score, metadata FROM ")
	sb.WriteString(indexTable)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY embedding <=> $1, id LIMIT ")
	sb.WriteString(next(topK))

	return sb.String(), args, nil
}
