package table

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/humbldata/humbldata-go/pkg/errors"
)

// Envelope layout: 4-byte magic, 1-byte format version, 1-byte result kind,
// then a JSON payload. The magic and version let a future encoder reject
// stale payloads instead of misinterpreting them; decode failures are treated
// upstream as cache misses.
var envelopeMagic = []byte("HMBL")

// EnvelopeVersion is the current envelope format version.
const EnvelopeVersion byte = 1

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = time.RFC3339Nano
)

type envelopePayload struct {
	Schema Schema  `json:"schema"`
	Rows   [][]any `json:"rows"`
	Ops    []Op    `json:"ops,omitempty"`
}

// Encode serializes a LazyResult into a versioned binary envelope. A deferred
// plan is encoded as its source plus pipeline, not its evaluated rows.
func Encode(result *LazyResult) ([]byte, error) {
	var payload envelopePayload

	switch result.Kind() {
	case KindPlan:
		source := result.Frame().Source()

		ops, err := encodeOps(source.Schema, result.Frame().Ops())
		if err != nil {
			return nil, err
		}

		payload = envelopePayload{
			Schema: source.Schema,
			Rows:   encodeRows(source.Schema, source.Rows),
			Ops:    ops,
		}
	case KindTable:
		t, err := result.Collect()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeEncodeFailed, "collecting table for encoding", err)
		}

		payload = envelopePayload{
			Schema: t.Schema,
			Rows:   encodeRows(t.Schema, t.Rows),
			Ops:    nil,
		}
	default:
		return nil, errors.Newf(errors.ErrCodeEncodeFailed, "unknown result kind %d", result.Kind())
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncodeFailed, "marshaling envelope payload", err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(envelopeMagic)+2+len(body)))
	buf.Write(envelopeMagic)
	buf.WriteByte(EnvelopeVersion)
	buf.WriteByte(byte(result.Kind()))
	buf.Write(body)

	return buf.Bytes(), nil
}

// Decode parses a versioned binary envelope back into a LazyResult. Unknown
// magic, versions or kinds are rejected rather than guessed at.
func Decode(data []byte) (*LazyResult, error) {
	headerLen := len(envelopeMagic) + 2
	if len(data) < headerLen {
		return nil, errors.New(errors.ErrCodeEnvelopeCorrupt, "envelope too short")
	}

	if !bytes.Equal(data[:len(envelopeMagic)], envelopeMagic) {
		return nil, errors.New(errors.ErrCodeEnvelopeCorrupt, "bad envelope magic")
	}

	if version := data[len(envelopeMagic)]; version != EnvelopeVersion {
		return nil, errors.Newf(errors.ErrCodeEnvelopeVersionMismatch,
			"envelope version %d, expected %d", version, EnvelopeVersion)
	}

	kind := Kind(data[len(envelopeMagic)+1])
	if kind != KindPlan && kind != KindTable {
		return nil, errors.Newf(errors.ErrCodeEnvelopeCorrupt, "unknown envelope kind %d", kind)
	}

	var payload envelopePayload
	if err := json.Unmarshal(data[headerLen:], &payload); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailed, "unmarshaling envelope payload", err)
	}

	rows, err := decodeRows(payload.Schema, payload.Rows)
	if err != nil {
		return nil, err
	}

	source := &Table{Schema: payload.Schema, Rows: rows}

	if kind == KindPlan {
		ops, err := decodeOps(payload.Schema, payload.Ops)
		if err != nil {
			return nil, err
		}

		return NewPlanResult(NewFrameWithOps(source, ops)), nil
	}

	return NewTableResult(source), nil
}

// encodeOps canonicalizes filter values the same way cells are encoded: a
// time value becomes the layout string of its column's type at that stage of
// the pipeline, so the value survives the JSON payload. The walk tracks the
// schema through the ops because parse_date changes column types mid-plan.
func encodeOps(schema Schema, ops []Op) ([]Op, error) {
	out := make([]Op, len(ops))

	for i, op := range ops {
		if op.Kind == OpFilter {
			if ts, ok := op.Value.(time.Time); ok {
				idx := schema.Index(op.Column)
				if idx < 0 {
					return nil, errors.Newf(errors.ErrCodeEncodeFailed, "filter: column %q not found", op.Column)
				}

				switch schema[idx].Type {
				case ColumnDate:
					op.Value = ts.Format(dateLayout)
				case ColumnDatetime:
					op.Value = ts.Format(datetimeLayout)
				default:
					return nil, errors.Newf(errors.ErrCodeEncodeFailed,
						"filter: time value on %s column %q", schema[idx].Type, op.Column)
				}
			}
		}

		out[i] = op

		next, err := applyOpSchema(schema, op)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeEncodeFailed, "walking plan ops", err)
		}

		schema = next
	}

	return out, nil
}

// decodeOps restores canonical filter value types against the schema each op
// sees, mirroring decodeRows.
func decodeOps(schema Schema, ops []Op) ([]Op, error) {
	for i, op := range ops {
		if op.Kind == OpFilter && op.Value != nil {
			idx := schema.Index(op.Column)
			if idx < 0 {
				return nil, errors.Newf(errors.ErrCodeDecodeFailed, "filter: column %q not found", op.Column)
			}

			value, err := decodeCell(schema[idx].Type, op.Value)
			if err != nil {
				return nil, err
			}

			ops[i].Value = value
		}

		next, err := applyOpSchema(schema, ops[i])
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDecodeFailed, "walking plan ops", err)
		}

		schema = next
	}

	return ops, nil
}

// encodeRows converts cells to JSON-safe values. Dates and datetimes become
// layout-formatted strings; everything else marshals natively.
func encodeRows(schema Schema, rows [][]any) [][]any {
	out := make([][]any, len(rows))

	for i, row := range rows {
		encoded := make([]any, len(row))

		for j, cell := range row {
			if ts, ok := cell.(time.Time); ok && j < len(schema) {
				if schema[j].Type == ColumnDate {
					encoded[j] = ts.Format(dateLayout)
				} else {
					encoded[j] = ts.Format(datetimeLayout)
				}

				continue
			}

			encoded[j] = cell
		}

		out[i] = encoded
	}

	return out
}

// decodeRows restores canonical cell types from JSON-decoded values: JSON
// numbers back to int64 for int columns, layout strings back to time.Time.
func decodeRows(schema Schema, rows [][]any) ([][]any, error) {
	for _, row := range rows {
		if len(row) != len(schema) {
			return nil, errors.Newf(errors.ErrCodeDecodeFailed,
				"row width %d does not match schema width %d", len(row), len(schema))
		}

		for j, cell := range row {
			if cell == nil {
				continue
			}

			decoded, err := decodeCell(schema[j].Type, cell)
			if err != nil {
				return nil, err
			}

			row[j] = decoded
		}
	}

	return rows, nil
}

func decodeCell(colType ColumnType, cell any) (any, error) {
	switch colType {
	case ColumnInt:
		f, ok := cell.(float64)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeDecodeFailed, "int column holds %T", cell)
		}

		return int64(f), nil
	case ColumnFloat:
		f, ok := cell.(float64)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeDecodeFailed, "float column holds %T", cell)
		}

		return f, nil
	case ColumnBool:
		b, ok := cell.(bool)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeDecodeFailed, "bool column holds %T", cell)
		}

		return b, nil
	case ColumnDate:
		s, ok := cell.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeDecodeFailed, "date column holds %T", cell)
		}

		ts, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDecodeFailed, "parsing date cell", err)
		}

		return ts, nil
	case ColumnDatetime:
		s, ok := cell.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeDecodeFailed, "datetime column holds %T", cell)
		}

		ts, err := time.Parse(datetimeLayout, s)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDecodeFailed, "parsing datetime cell", err)
		}

		return ts, nil
	case ColumnString:
		s, ok := cell.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeDecodeFailed, "string column holds %T", cell)
		}

		return s, nil
	default:
		return nil, errors.Newf(errors.ErrCodeDecodeFailed, "unknown column type %q", colType)
	}
}
