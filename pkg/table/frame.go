package table

import (
	"sort"
	"time"

	"github.com/humbldata/humbldata-go/pkg/errors"
)

// OpKind enumerates the deferred operations a Frame can carry.
type OpKind string

const (
	OpSelect    OpKind = "select"
	OpFilter    OpKind = "filter"
	OpSort      OpKind = "sort"
	OpParseDate OpKind = "parse_date"
)

// Comparison operators accepted by OpFilter.
const (
	CmpEq = "eq"
	CmpNe = "ne"
	CmpLt = "lt"
	CmpLe = "le"
	CmpGt = "gt"
	CmpGe = "ge"
)

// Op is a single deferred operation. The zero fields not used by a kind are
// omitted from the serialized form.
type Op struct {
	Kind       OpKind   `json:"kind"`
	Columns    []string `json:"columns,omitempty"`
	Column     string   `json:"column,omitempty"`
	Compare    string   `json:"compare,omitempty"`
	Value      any      `json:"value,omitempty"`
	Descending bool     `json:"descending,omitempty"`
	Layout     string   `json:"layout,omitempty"`
	AsDatetime bool     `json:"as_datetime,omitempty"`
}

// Frame is a deferred tabular computation: a source table plus a pipeline of
// operations that are only applied when Collect is called. Frames are
// immutable; each builder method returns a new Frame sharing the source.
type Frame struct {
	source *Table
	ops    []Op
}

// NewFrame wraps a source table in a deferred frame with an empty pipeline.
func NewFrame(source *Table) *Frame {
	return &Frame{source: source, ops: nil}
}

// NewFrameWithOps rebuilds a frame from a decoded source and pipeline.
func NewFrameWithOps(source *Table, ops []Op) *Frame {
	return &Frame{source: source, ops: ops}
}

// Ops returns the deferred pipeline.
func (f *Frame) Ops() []Op {
	return f.ops
}

// Source returns the underlying source table.
func (f *Frame) Source() *Table {
	return f.source
}

func (f *Frame) with(op Op) *Frame {
	ops := make([]Op, len(f.ops), len(f.ops)+1)
	copy(ops, f.ops)

	return &Frame{source: f.source, ops: append(ops, op)}
}

// Select defers a projection onto the given columns, in the given order.
func (f *Frame) Select(columns ...string) *Frame {
	return f.with(Op{Kind: OpSelect, Columns: columns})
}

// Filter defers a row filter comparing the named column against value.
func (f *Frame) Filter(column, compare string, value any) *Frame {
	return f.with(Op{Kind: OpFilter, Column: column, Compare: compare, Value: value})
}

// Sort defers a stable sort on the named column.
func (f *Frame) Sort(column string, descending bool) *Frame {
	return f.with(Op{Kind: OpSort, Column: column, Descending: descending})
}

// ParseDate defers string-to-date coercion of the named column using the
// given layout. With asDatetime the column becomes a datetime column.
func (f *Frame) ParseDate(column, layout string, asDatetime bool) *Frame {
	return f.with(Op{Kind: OpParseDate, Column: column, Layout: layout, AsDatetime: asDatetime})
}

// Schema computes the frame's output schema without touching row data. Every
// operation carries its schema transform, so introspection stays cheap.
func (f *Frame) Schema() (Schema, error) {
	schema := f.source.Schema.Clone()

	for _, op := range f.ops {
		next, err := applyOpSchema(schema, op)
		if err != nil {
			return nil, err
		}

		schema = next
	}

	return schema, nil
}

// Collect evaluates the pipeline and returns a materialized table. The source
// is never mutated.
func (f *Frame) Collect() (*Table, error) {
	schema := f.source.Schema.Clone()
	rows := cloneRows(f.source.Rows)

	for _, op := range f.ops {
		nextSchema, nextRows, err := applyOp(schema, rows, op)
		if err != nil {
			return nil, err
		}

		schema, rows = nextSchema, nextRows
	}

	return &Table{Schema: schema, Rows: rows}, nil
}

func applyOpSchema(schema Schema, op Op) (Schema, error) {
	switch op.Kind {
	case OpSelect:
		out := make(Schema, 0, len(op.Columns))

		for _, name := range op.Columns {
			idx := schema.Index(name)
			if idx < 0 {
				return nil, errors.Newf(errors.ErrCodeInvalidParameter, "select: column %q not found", name)
			}

			out = append(out, schema[idx])
		}

		return out, nil
	case OpFilter, OpSort:
		if schema.Index(op.Column) < 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "%s: column %q not found", op.Kind, op.Column)
		}

		return schema, nil
	case OpParseDate:
		idx := schema.Index(op.Column)
		if idx < 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "parse_date: column %q not found", op.Column)
		}

		out := schema.Clone()
		if op.AsDatetime {
			out[idx].Type = ColumnDatetime
		} else {
			out[idx].Type = ColumnDate
		}

		return out, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown frame operation %q", op.Kind)
	}
}

func applyOp(schema Schema, rows [][]any, op Op) (Schema, [][]any, error) {
	outSchema, err := applyOpSchema(schema, op)
	if err != nil {
		return nil, nil, err
	}

	switch op.Kind {
	case OpSelect:
		indexes := make([]int, len(op.Columns))
		for i, name := range op.Columns {
			indexes[i] = schema.Index(name)
		}

		out := make([][]any, len(rows))
		for i, row := range rows {
			projected := make([]any, len(indexes))
			for j, idx := range indexes {
				projected[j] = row[idx]
			}

			out[i] = projected
		}

		return outSchema, out, nil
	case OpFilter:
		idx := schema.Index(op.Column)
		out := make([][]any, 0, len(rows))

		for _, row := range rows {
			keep, err := matchesFilter(row[idx], op.Compare, op.Value)
			if err != nil {
				return nil, nil, err
			}

			if keep {
				out = append(out, row)
			}
		}

		return outSchema, out, nil
	case OpSort:
		idx := schema.Index(op.Column)
		out := cloneRows(rows)

		var sortErr error

		sort.SliceStable(out, func(i, j int) bool {
			cmp, err := compareCells(out[i][idx], out[j][idx])
			if err != nil && sortErr == nil {
				sortErr = err
			}

			if op.Descending {
				return cmp > 0
			}

			return cmp < 0
		})

		if sortErr != nil {
			return nil, nil, sortErr
		}

		return outSchema, out, nil
	case OpParseDate:
		idx := schema.Index(op.Column)
		out := cloneRows(rows)

		for _, row := range out {
			parsed, err := parseDateCell(row[idx], op.Layout)
			if err != nil {
				return nil, nil, err
			}

			row[idx] = parsed
		}

		return outSchema, out, nil
	default:
		return nil, nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown frame operation %q", op.Kind)
	}
}

func matchesFilter(cell any, compare string, value any) (bool, error) {
	cmp, err := compareCells(cell, value)
	if err != nil {
		return false, err
	}

	switch compare {
	case CmpEq:
		return cmp == 0, nil
	case CmpNe:
		return cmp != 0, nil
	case CmpLt:
		return cmp < 0, nil
	case CmpLe:
		return cmp <= 0, nil
	case CmpGt:
		return cmp > 0, nil
	case CmpGe:
		return cmp >= 0, nil
	default:
		return false, errors.Newf(errors.ErrCodeInvalidParameter, "unknown comparison %q", compare)
	}
}

func parseDateCell(cell any, layout string) (any, error) {
	switch v := cell.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v, nil
	case string:
		parsed, err := time.Parse(layout, v)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidType, err, "cannot parse %q with layout %q", v, layout)
		}

		return parsed, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidType, "cannot parse %T as date", cell)
	}
}
