package core

import "time"

// Bound is an optional range endpoint. The zero value is an absent bound.
type Bound[T any] struct {
	Value T
	Set   bool
}

// Some returns a present bound holding v.
func Some[T any](v T) Bound[T] {
	return Bound[T]{Value: v, Set: true}
}

// Range is an inclusive range whose endpoints are independently optional.
// Min greater than Max is allowed and simply matches nothing.
type Range[T any] struct {
	Min Bound[T]
	Max Bound[T]
}

// IsZero reports whether neither endpoint is set.
func (r Range[T]) IsZero() bool {
	return !r.Min.Set && !r.Max.Set
}

// SearchFilter constrains a query by duration (seconds) and creation date.
type SearchFilter struct {
	Duration  Range[float64]
	CreatedAt Range[time.Time]
}

// IsEmpty reports whether the filter imposes no constraint at all.
func (f SearchFilter) IsEmpty() bool {
	return f.Duration.IsZero() && f.CreatedAt.IsZero()
}
