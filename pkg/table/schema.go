package table

// ColumnType identifies the logical type of a column. Cell values are stored
// as any; the column type decides how cells are compared, coerced and encoded.
type ColumnType string

const (
	ColumnString   ColumnType = "string"
	ColumnInt      ColumnType = "int"
	ColumnFloat    ColumnType = "float"
	ColumnBool     ColumnType = "bool"
	ColumnDate     ColumnType = "date"
	ColumnDatetime ColumnType = "datetime"
)

// Column describes a single named, typed column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is the ordered list of columns of a table or frame.
type Schema []Column

// Index returns the position of the named column, or -1 when absent.
func (s Schema) Index(name string) int {
	for i, col := range s {
		if col.Name == name {
			return i
		}
	}

	return -1
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, col := range s {
		names[i] = col.Name
	}

	return names
}

// Clone returns an independent copy of the schema.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	copy(out, s)

	return out
}
