package schema

// DataType is the normalized column type. Every vendor's catalog types are
// mapped onto this closed set; a type that cannot be mapped is an error,
// never a silent default.
type DataType int

const (
	DataTypeInteger DataType = iota
	DataTypeBigInteger
	DataTypeDecimal
	DataTypeString
	DataTypeBoolean
	DataTypeDate
	DataTypeBlob
	DataTypeClob
)

func (t DataType) String() string {
	switch t {
	case DataTypeInteger:
		return "INTEGER"
	case DataTypeBigInteger:
		return "BIG_INTEGER"
	case DataTypeDecimal:
		return "DECIMAL"
	case DataTypeString:
		return "STRING"
	case DataTypeBoolean:
		return "BOOLEAN"
	case DataTypeDate:
		return "DATE"
	case DataTypeBlob:
		return "BLOB"
	case DataTypeClob:
		return "CLOB"
	default:
		return "UNKNOWN"
	}
}

// AutoNumberStartUnknown marks an autonumbered column whose start value the
// catalog does not expose.
const AutoNumberStartUnknown = -1

// Column describes a single table column. Columns are created once during
// introspection and never mutated afterwards.
type Column struct {
	Name         string
	Type         DataType
	Width        int // display width / precision
	Scale        int
	Nullable     bool
	DefaultValue string
	PrimaryKey   bool

	// AutoNumbered is true when the database generates this column's values.
	// AutoNumberStart is the configured first value, or
	// AutoNumberStartUnknown when the catalog does not report one.
	AutoNumbered    bool
	AutoNumberStart int
}

// Index describes a table index. Columns are in ordinal order, the physical
// column order of the index, which is significant.
type Index struct {
	Name    string
	Unique  bool
	Columns []string
}
