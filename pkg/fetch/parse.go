package fetch

import (
	"sort"
	"time"

	"github.com/humbldata/humbldata-go/pkg/errors"
	"github.com/humbldata/humbldata-go/pkg/table"
)

// apiResponse is the standard upstream response body. Error responses carry
// Detail instead of Results.
type apiResponse struct {
	Results  []map[string]any `json:"results"`
	Warnings []Warning        `json:"warnings"`
	Extra    map[string]any   `json:"extra"`
	Detail   string           `json:"detail"`
}

// buildLazyResult converts raw upstream records into a deferred frame. Column
// order is alphabetical so identical payloads always yield identical tables.
// A string "date" column gets a deferred ParseDate step instead of an eager
// conversion, keeping the result lazy end to end.
func buildLazyResult(records []map[string]any) (*table.LazyResult, error) {
	schema, err := inferSchema(records)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, len(records))
	for i, record := range records {
		row := make([]any, len(schema))
		for j, col := range schema {
			cell, err := coerceCell(col.Type, record[col.Name])
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeUpstreamBadBody, err, "row %d column %q", i, col.Name)
			}

			row[j] = cell
		}

		rows[i] = row
	}

	frame := table.NewFrame(&table.Table{Schema: schema, Rows: rows})
	if layout, ok := dateColumnLayout(schema, records); ok {
		frame = frame.ParseDate("date", layout, layout == time.RFC3339Nano)
	}

	return table.NewPlanResult(frame), nil
}

// inferSchema derives the column set and types from the union of record keys.
// JSON numbers arrive as float64; a column whose values are all integral is
// narrowed to int.
func inferSchema(records []map[string]any) (table.Schema, error) {
	names := make(map[string]struct{})
	for _, record := range records {
		for name := range record {
			names[name] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}

	sort.Strings(sorted)

	schema := make(table.Schema, 0, len(sorted))
	for _, name := range sorted {
		colType, err := inferColumnType(name, records)
		if err != nil {
			return nil, err
		}

		schema = append(schema, table.Column{Name: name, Type: colType})
	}

	return schema, nil
}

func inferColumnType(name string, records []map[string]any) (table.ColumnType, error) {
	colType := table.ColumnType("")
	integral := true

	for _, record := range records {
		value, ok := record[name]
		if !ok || value == nil {
			continue
		}

		switch v := value.(type) {
		case string:
			if colType != "" && colType != table.ColumnString {
				return "", errors.Newf(errors.ErrCodeUpstreamBadBody, "column %q mixes types", name)
			}

			colType = table.ColumnString
		case bool:
			if colType != "" && colType != table.ColumnBool {
				return "", errors.Newf(errors.ErrCodeUpstreamBadBody, "column %q mixes types", name)
			}

			colType = table.ColumnBool
		case float64:
			if colType != "" && colType != table.ColumnFloat {
				return "", errors.Newf(errors.ErrCodeUpstreamBadBody, "column %q mixes types", name)
			}

			colType = table.ColumnFloat
			if v != float64(int64(v)) {
				integral = false
			}
		default:
			return "", errors.Newf(errors.ErrCodeUpstreamBadBody, "column %q has unsupported value type %T", name, value)
		}
	}

	if colType == "" {
		colType = table.ColumnString
	}

	if colType == table.ColumnFloat && integral {
		return table.ColumnInt, nil
	}

	return colType, nil
}

func coerceCell(colType table.ColumnType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch colType {
	case table.ColumnInt:
		v, ok := value.(float64)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidType, "expected number, got %T", value)
		}

		return int64(v), nil
	case table.ColumnFloat:
		v, ok := value.(float64)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidType, "expected number, got %T", value)
		}

		return v, nil
	case table.ColumnString:
		v, ok := value.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidType, "expected string, got %T", value)
		}

		return v, nil
	case table.ColumnBool:
		v, ok := value.(bool)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidType, "expected bool, got %T", value)
		}

		return v, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidType, "unsupported column type %q", colType)
	}
}

// dateColumnLayout reports whether the records carry a string "date" column
// and which layout its values use, based on the first non-empty value.
func dateColumnLayout(schema table.Schema, records []map[string]any) (string, bool) {
	idx := schema.Index("date")
	if idx < 0 || schema[idx].Type != table.ColumnString {
		return "", false
	}

	for _, record := range records {
		value, ok := record["date"].(string)
		if !ok || value == "" {
			continue
		}

		if len(value) == len("2006-01-02") {
			return "2006-01-02", true
		}

		return time.RFC3339Nano, true
	}

	return "", false
}
