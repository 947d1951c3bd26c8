package search

import (
	"time"

	"github.com/poiesic/mediasearch/core"
	"github.com/poiesic/mediasearch/storage"
)

// TranslateFilter converts a SearchFilter into the index filter grammar.
// Only supplied bounds produce conditions. It returns nil, not an empty
// Filter, when no bound is set.
func TranslateFilter(f core.SearchFilter) storage.Filter {
	if f.IsEmpty() {
		return nil
	}

	filter := storage.Filter{}
	if cond := rangeCondition(f.Duration, func(v float64) any { return v }); cond != nil {
		filter[core.FieldDuration] = cond
	}
	if cond := rangeCondition(f.CreatedAt, func(v time.Time) any { return core.FormatISO(v) }); cond != nil {
		filter[core.FieldCreatedAt] = cond
	}
	return filter
}

func rangeCondition[T any](r core.Range[T], operand func(T) any) storage.Condition {
	if r.IsZero() {
		return nil
	}
	cond := storage.Condition{}
	if r.Min.Set {
		cond[storage.OpGTE] = operand(r.Min.Value)
	}
	if r.Max.Set {
		cond[storage.OpLTE] = operand(r.Max.Value)
	}
	return cond
}
