package table

import "github.com/humbldata/humbldata-go/pkg/errors"

// Kind tags whether a LazyResult holds a deferred plan or a materialized
// table. The tag is preserved by the envelope codec.
type Kind byte

const (
	KindPlan  Kind = 1
	KindTable Kind = 2
)

// LazyResult is either a deferred frame or a materialized table. It is the
// tabular payload carried by every fetch outcome and every cache entry.
type LazyResult struct {
	kind  Kind
	frame *Frame
	table *Table
}

// NewPlanResult wraps a deferred frame.
func NewPlanResult(frame *Frame) *LazyResult {
	return &LazyResult{kind: KindPlan, frame: frame, table: nil}
}

// NewTableResult wraps an already materialized table.
func NewTableResult(t *Table) *LazyResult {
	return &LazyResult{kind: KindTable, frame: nil, table: t}
}

// Kind returns the deferred/materialized tag.
func (r *LazyResult) Kind() Kind {
	return r.kind
}

// IsLazy reports whether the result still holds an unevaluated plan.
func (r *LazyResult) IsLazy() bool {
	return r.kind == KindPlan
}

// Frame returns the deferred frame, or nil for a materialized result.
func (r *LazyResult) Frame() *Frame {
	return r.frame
}

// Schema returns the output schema without materializing a deferred plan.
func (r *LazyResult) Schema() (Schema, error) {
	if r.kind == KindTable {
		return r.table.Schema, nil
	}

	return r.frame.Schema()
}

// Collect returns the materialized table, evaluating the plan if needed.
func (r *LazyResult) Collect() (*Table, error) {
	switch r.kind {
	case KindTable:
		return r.table, nil
	case KindPlan:
		return r.frame.Collect()
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidType, "unknown result kind %d", r.kind)
	}
}
