// Package table provides the tabular data model of the acquisition layer: a
// materialized Table, a deferred Frame (a pipeline of operations evaluated on
// Collect), the LazyResult wrapper that keeps the deferred/materialized
// distinction, and the binary envelope codec used to round-trip either form
// through the result cache.
package table

import (
	"time"

	"github.com/humbldata/humbldata-go/pkg/errors"
)

// Table is a fully materialized, row-oriented table. Cell values hold one of
// string, int64, float64, bool, time.Time or nil, matching the column type.
type Table struct {
	Schema Schema  `json:"schema"`
	Rows   [][]any `json:"rows"`
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// Column returns all cell values of the named column in row order.
func (t *Table) Column(name string) ([]any, error) {
	idx := t.Schema.Index(name)
	if idx < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "column %q not found", name)
	}

	values := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}

	return values, nil
}

func cloneRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cloned := make([]any, len(row))
		copy(cloned, row)
		out[i] = cloned
	}

	return out
}

// compareCells orders two cell values of the same column. Numeric values are
// promoted to float64 so int and float cells compare naturally. Nil sorts
// before any value.
func compareCells(a, b any) (int, error) {
	if a == nil && b == nil {
		return 0, nil
	}

	if a == nil {
		return -1, nil
	}

	if b == nil {
		return 1, nil
	}

	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, errors.Newf(errors.ErrCodeInvalidType, "cannot compare %T with %T", a, b)
		}

		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, errors.Newf(errors.ErrCodeInvalidType, "cannot compare %T with %T", a, b)
		}

		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		default:
			return 0, nil
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, errors.Newf(errors.ErrCodeInvalidType, "cannot compare %T with %T", a, b)
		}

		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		default:
			return 1, nil
		}
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, errors.Newf(errors.ErrCodeInvalidType, "cannot compare %T with %T", a, b)
		}

		switch {
		case av.Before(bv):
			return -1, nil
		case av.After(bv):
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidType, "unsupported cell type %T", a)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
